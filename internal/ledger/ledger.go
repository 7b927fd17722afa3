// FilePath: internal/ledger/ledger.go

// Package ledger owns user points, the append-only points history,
// achievements and the monthly usage balance.
//
// Stats are always written first and are the user-visible balance. The
// history is a secondary write: if it fails the reward stands, the failure is
// reported as a ledger inconsistency and Reconcile can later append a repair
// entry so that sum(history) == stats.points holds again.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hydrozen/leakwatch/internal/achievement"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// PointsForLeakage is awarded for every verified leak report.
const PointsForLeakage int64 = 50

// Observer receives ledger side effects. Every method may be a no-op.
type Observer interface {
	PointsAwarded(userID string, points int64)
	Inconsistency(write string, err error)
	AchievementUnlocked(userID string, a models.Achievement)
}

type nopObserver struct{}

func (nopObserver) PointsAwarded(string, int64)                    {}
func (nopObserver) Inconsistency(string, error)                    {}
func (nopObserver) AchievementUnlocked(string, models.Achievement) {}

// RewardResult is the outcome of a reward application. Inconsistencies holds
// secondary writes that failed after the stats increment succeeded.
type RewardResult struct {
	Stats           *models.UserStats    `json:"stats"`
	Unlocked        []models.Achievement `json:"unlocked_achievements"`
	Inconsistencies []error              `json:"-"`
}

// UsageResult is the outcome of ApplyUsageDelta.
type UsageResult struct {
	Delta   models.UsageDelta    `json:"delta"`
	Balance *models.UsageBalance `json:"balance"`
}

// ReconcileResult reports the drift found between stats and history.
type ReconcileResult struct {
	UserID        string `json:"user_id"`
	StatsPoints   int64  `json:"stats_points"`
	HistoryPoints int64  `json:"history_points"`
	Repaired      int64  `json:"repaired"`
}

// Ledger applies rewards and usage deltas against the repositories.
type Ledger struct {
	stats        repository.LedgerRepository
	achievements repository.AchievementRepository
	usage        repository.UsageBalanceRepository
	observer     Observer
	now          func() time.Time
}

// New creates a Ledger. observer may be nil.
func New(stats repository.LedgerRepository, achievements repository.AchievementRepository, usage repository.UsageBalanceRepository, observer Observer) *Ledger {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Ledger{
		stats:        stats,
		achievements: achievements,
		usage:        usage,
		observer:     observer,
		now:          time.Now,
	}
}

// ApplyLeakReward credits PointsForLeakage and one reported leak to userID,
// records the history entry and unlocks achievements. A non-nil report is
// stored in the same transaction as the stats increment, so a failed credit
// never leaves a verified report behind.
//
// Only the report and stats write is fatal. Every later failure is logged,
// reported to the observer and returned in RewardResult.Inconsistencies.
func (l *Ledger) ApplyLeakReward(ctx context.Context, userID string, report *models.LeakReport) (*RewardResult, error) {
	if userID == "" {
		return nil, errors.NewValidationError("user id is required", nil)
	}

	var stats *models.UserStats
	var err error
	if report != nil {
		if report.UserID != userID {
			return nil, errors.NewValidationError("report belongs to another user", nil)
		}
		stats, err = l.stats.RecordVerifiedReport(ctx, report, PointsForLeakage, 1)
	} else {
		stats, err = l.stats.IncrementStats(ctx, userID, PointsForLeakage, 1)
	}
	if err != nil {
		if errors.IsDuplicate(err) {
			return nil, err
		}
		return nil, errors.NewDatabaseError("failed to update user stats", err)
	}
	l.observer.PointsAwarded(userID, PointsForLeakage)
	nuts.L.Infof("[Ledger] Awarded %d points to user %s (total %d)", PointsForLeakage, userID, stats.Points)

	result := &RewardResult{Stats: stats}

	description := "Verified water leakage report"
	if report != nil {
		description = fmt.Sprintf("Verified water leakage report %s", report.ID)
	}
	entry := &models.PointsHistoryEntry{
		ID:          nuts.NID("ph", 12),
		UserID:      userID,
		Points:      PointsForLeakage,
		Action:      models.ActionLeakageReport,
		Description: description,
		CreatedAt:   l.now(),
	}
	if err := l.stats.AppendHistory(ctx, entry); err != nil {
		result.Inconsistencies = append(result.Inconsistencies, l.inconsistency("points_history", userID, err))
	}

	unlocked, errs := l.unlock(ctx, *stats)
	result.Unlocked = unlocked
	result.Inconsistencies = append(result.Inconsistencies, errs...)
	return result, nil
}

// EvaluateAchievements re-runs the evaluator against the current stats of
// userID. It is safe to call any number of times.
func (l *Ledger) EvaluateAchievements(ctx context.Context, userID string) ([]models.Achievement, error) {
	stats, err := l.stats.GetStats(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load user stats", err)
	}
	unlocked, errs := l.unlock(ctx, *stats)
	if len(errs) > 0 {
		return unlocked, errs[0]
	}
	return unlocked, nil
}

// AchievementProgress is how far a user is towards one catalog achievement.
type AchievementProgress struct {
	models.Achievement
	Progress float64 `json:"progress"`
}

// NextAchievement returns the cheapest achievement userID has not earned yet
// with the progress of stats towards it, or nil once the catalog is complete.
func (l *Ledger) NextAchievement(ctx context.Context, stats models.UserStats) (*AchievementProgress, error) {
	catalog, err := l.achievements.Catalog(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load achievement catalog", err)
	}
	earned, err := l.achievements.EarnedIDs(ctx, stats.UserID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load earned achievements", err)
	}
	next := achievement.Next(catalog, earned)
	if next == nil {
		return nil, nil
	}
	return &AchievementProgress{Achievement: *next, Progress: achievement.Progress(stats, *next)}, nil
}

func (l *Ledger) unlock(ctx context.Context, stats models.UserStats) ([]models.Achievement, []error) {
	catalog, err := l.achievements.Catalog(ctx)
	if err != nil {
		return nil, []error{l.inconsistency("achievements", stats.UserID, err)}
	}
	earned, err := l.achievements.EarnedIDs(ctx, stats.UserID)
	if err != nil {
		return nil, []error{l.inconsistency("achievements", stats.UserID, err)}
	}

	var unlocked []models.Achievement
	var errs []error
	for _, a := range achievement.Evaluate(stats, catalog, earned) {
		err := l.achievements.Award(ctx, &models.UserAchievement{
			ID:            nuts.NID("ua", 12),
			UserID:        stats.UserID,
			AchievementID: a.ID,
			AchievedAt:    l.now(),
		})
		switch {
		case err == nil:
			unlocked = append(unlocked, a)
			l.observer.AchievementUnlocked(stats.UserID, a)
			nuts.L.Infof("[Ledger] User %s unlocked achievement %s", stats.UserID, a.Name)
		case errors.IsDuplicate(err):
			// a concurrent reward got there first
		default:
			errs = append(errs, l.inconsistency("user_achievements", stats.UserID, err))
		}
	}
	return unlocked, errs
}

func (l *Ledger) inconsistency(write, userID string, err error) error {
	l.observer.Inconsistency(write, err)
	nuts.L.Errorf("[Ledger] Inconsistent ledger for user %s, %s write failed: %v", userID, write, err)
	return errors.NewLedgerInconsistencyError(fmt.Sprintf("%s write failed", write), err).
		WithDetails(map[string]string{"user_id": userID, "write": write})
}

// ApplyUsageDelta adds the reward or penalty for one day of consumption to
// the open period of userID. Points are not affected.
func (l *Ledger) ApplyUsageDelta(ctx context.Context, userID string, currentDaily, averageDaily float64) (*UsageResult, error) {
	if userID == "" {
		return nil, errors.NewValidationError("user id is required", nil)
	}
	if invalidUsage(currentDaily) || invalidUsage(averageDaily) {
		return nil, errors.NewValidationError("usage values must be finite and non-negative", nil)
	}

	delta := UsageDelta(currentDaily, averageDaily)
	balance, err := l.usage.Accumulate(ctx, userID, delta.Reward, delta.Penalty)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to update usage balance", err)
	}
	nuts.L.Infof("[Ledger] Usage delta for user %s: diff=%.2f reward=%s penalty=%s", userID, delta.Diff, delta.Reward, delta.Penalty)
	return &UsageResult{Delta: delta, Balance: balance}, nil
}

func invalidUsage(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// UsageBalance returns the open period of userID.
func (l *Ledger) UsageBalance(ctx context.Context, userID string) (*models.UsageBalance, error) {
	b, err := l.usage.Get(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load usage balance", err)
	}
	return b, nil
}

// ClosePeriod is the billing rollover trigger. It returns the closed balance
// and starts a new period at the first day of the current month.
func (l *Ledger) ClosePeriod(ctx context.Context, userID string) (*models.UsageBalance, error) {
	now := l.now()
	next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	closed, err := l.usage.Reset(ctx, userID, next)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to close usage period", err)
	}
	nuts.L.Infof("[Ledger] Closed usage period for user %s: rewards=%s penalties=%s", userID, closed.MonthlyRewards, closed.MonthlyPenalties)
	return closed, nil
}

// Reconcile compares the stats balance with the history sum of userID and
// appends a LEDGER_REPAIR entry for any drift.
func (l *Ledger) Reconcile(ctx context.Context, userID string) (*ReconcileResult, error) {
	stats, err := l.stats.GetStats(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load user stats", err)
	}
	sum, err := l.stats.SumHistory(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to sum points history", err)
	}

	result := &ReconcileResult{UserID: userID, StatsPoints: stats.Points, HistoryPoints: sum}
	drift := stats.Points - sum
	if drift == 0 {
		return result, nil
	}

	entry := &models.PointsHistoryEntry{
		ID:          nuts.NID("ph", 12),
		UserID:      userID,
		Points:      drift,
		Action:      models.ActionLedgerRepair,
		Description: fmt.Sprintf("Repair of %d points missing from history", drift),
		CreatedAt:   l.now(),
	}
	if err := l.stats.AppendHistory(ctx, entry); err != nil {
		return nil, errors.NewDatabaseError("failed to append repair entry", err)
	}
	result.Repaired = drift
	nuts.L.Warnf("[Ledger] Repaired %d points of history drift for user %s", drift, userID)
	return result, nil
}

// Stats returns the aggregate stats of userID.
func (l *Ledger) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	s, err := l.stats.GetStats(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load user stats", err)
	}
	return s, nil
}

// History returns a page of the points history of userID, newest first.
func (l *Ledger) History(ctx context.Context, userID string, q models.PageQuery) ([]*models.PointsHistoryEntry, error) {
	q.Normalize()
	h, err := l.stats.ListHistory(ctx, userID, q.Offset, q.Limit)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load points history", err)
	}
	return h, nil
}

// Achievements returns the achievements userID has earned.
func (l *Ledger) Achievements(ctx context.Context, userID string) ([]*models.EarnedAchievement, error) {
	a, err := l.achievements.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load achievements", err)
	}
	return a, nil
}

// Leaderboard returns the top users by points.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	top, err := l.stats.TopUsers(ctx, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load leaderboard", err)
	}
	return top, nil
}
