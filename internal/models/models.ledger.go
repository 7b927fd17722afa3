// FilePath: internal/models/models.ledger.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger actions recorded in the points history
const (
	ActionLeakageReport = "LEAKAGE_REPORT"
	ActionLedgerRepair  = "LEDGER_REPAIR"
)

// PointsHistoryEntry is an append-only ledger row. The sum of a user's entries
// is the authoritative point balance.
type PointsHistoryEntry struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Points      int64     `json:"points" db:"points"`
	Action      string    `json:"action" db:"action"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// UserStats is the aggregate view of a user's ledger.
type UserStats struct {
	UserID                string    `json:"user_id" db:"user_id"`
	Points                int64     `json:"points" db:"points"`
	TotalLeakagesReported int64     `json:"total_leakages_reported" db:"total_leakages_reported"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// Achievement is a catalog entry administered outside the service.
type Achievement struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	Description    string `json:"description" db:"description"`
	PointsRequired int64  `json:"points_required" db:"points_required"`
}

// UserAchievement is created exactly once per (UserID, AchievementID).
type UserAchievement struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	AchievementID string    `json:"achievement_id" db:"achievement_id"`
	AchievedAt    time.Time `json:"achieved_at" db:"achieved_at"`
}

// EarnedAchievement joins a UserAchievement with its catalog entry.
type EarnedAchievement struct {
	UserAchievement
	Name           string `json:"name" db:"name"`
	Description    string `json:"description" db:"description"`
	PointsRequired int64  `json:"points_required" db:"points_required"`
}

// UsageDelta is the reward or penalty for one day of consumption measured
// against the rolling average. At most one of Reward and Penalty is non-zero.
type UsageDelta struct {
	CurrentDaily float64         `json:"current_daily"`
	AverageDaily float64         `json:"average_daily"`
	Diff         float64         `json:"diff"`
	Reward       decimal.Decimal `json:"reward"`
	Penalty      decimal.Decimal `json:"penalty"`
}

// UsageBalance holds the monotonically increasing accumulators of the open
// billing period.
type UsageBalance struct {
	UserID           string          `json:"user_id" db:"user_id"`
	PeriodStart      time.Time       `json:"period_start" db:"period_start"`
	MonthlyRewards   decimal.Decimal `json:"monthly_rewards" db:"monthly_rewards"`
	MonthlyPenalties decimal.Decimal `json:"monthly_penalties" db:"monthly_penalties"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// Net returns rewards minus penalties for the period.
func (b *UsageBalance) Net() decimal.Decimal {
	return b.MonthlyRewards.Sub(b.MonthlyPenalties)
}

type LeaderboardEntry struct {
	Rank                  int    `json:"rank"`
	UserID                string `json:"user_id" db:"user_id"`
	Points                int64  `json:"points" db:"points"`
	TotalLeakagesReported int64  `json:"total_leakages_reported" db:"total_leakages_reported"`
}
