// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"io"
	"time"

	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/shopspring/decimal"
)

// SnapshotStore is the read side of the realtime telemetry store. The writer
// is owned by the telemetry collaborator.
type SnapshotStore interface {
	// Latest returns the latest snapshot of a node, or nil if the node has not
	// reported yet.
	Latest(ctx context.Context, nodeID string) (*models.SensorSnapshot, error)
	// Subscribe registers fn for every new snapshot of nodeID. The returned
	// cancel func must be called on teardown.
	Subscribe(ctx context.Context, nodeID string, fn func(*models.SensorSnapshot)) (cancel func(), err error)
}

// SnapshotWriter stores and publishes a raw node payload.
type SnapshotWriter interface {
	Put(ctx context.Context, nodeID string, raw []byte) error
}

// ImageStore is the object-store collaborator for leak photos.
type ImageStore interface {
	// Upload stores the image and returns a stable public URL.
	Upload(ctx context.Context, name, contentType string, content io.Reader) (string, error)
}

// LeakReportRepository persists verified leak reports
type LeakReportRepository interface {
	Create(ctx context.Context, report *models.LeakReport) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*models.LeakReport, error)
	ListRecent(ctx context.Context, limit int) ([]*models.LeakReport, error)
	CountVerifiedByImageHash(ctx context.Context, sha256 string) (int64, error)
}

// LedgerRepository owns user stats and the append-only points history.
// IncrementStats must be an atomic increment in the backing store.
// RecordVerifiedReport stores a verified report and credits its author in one
// transaction: on error neither the report nor the increment is visible.
type LedgerRepository interface {
	IncrementStats(ctx context.Context, userID string, points, leakages int64) (*models.UserStats, error)
	RecordVerifiedReport(ctx context.Context, report *models.LeakReport, points, leakages int64) (*models.UserStats, error)
	AppendHistory(ctx context.Context, entry *models.PointsHistoryEntry) error
	GetStats(ctx context.Context, userID string) (*models.UserStats, error)
	SumHistory(ctx context.Context, userID string) (int64, error)
	ListHistory(ctx context.Context, userID string, offset, limit int) ([]*models.PointsHistoryEntry, error)
	TopUsers(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}

// AchievementRepository holds the static catalog and the earned records.
// Award fails with a duplicate error when the pair already exists.
type AchievementRepository interface {
	Catalog(ctx context.Context) ([]models.Achievement, error)
	EarnedIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	Award(ctx context.Context, ua *models.UserAchievement) error
	ListByUser(ctx context.Context, userID string) ([]*models.EarnedAchievement, error)
}

// UsageBalanceRepository holds the monthly reward/penalty accumulators
type UsageBalanceRepository interface {
	Accumulate(ctx context.Context, userID string, reward, penalty decimal.Decimal) (*models.UsageBalance, error)
	Get(ctx context.Context, userID string) (*models.UsageBalance, error)
	Reset(ctx context.Context, userID string, periodStart time.Time) (*models.UsageBalance, error)
}

// AlertRepository persists escalated alerts
type AlertRepository interface {
	CreatePending(ctx context.Context, alert *models.Alert) error
	ListRecent(ctx context.Context, limit int) ([]*models.Alert, error)
}
