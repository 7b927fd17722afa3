// FilePath: internal/repository/postgres/postgres.ledger.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/hydrozen/leakwatch/internal/database"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
)

type LedgerRepo struct {
	PostgresBaseRepo
}

func NewLedgerRepository(db database.DB) *LedgerRepo {
	return &LedgerRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

const incrementStatsQuery = `
	INSERT INTO user_stats (user_id, points, total_leakages_reported, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		points = user_stats.points + EXCLUDED.points,
		total_leakages_reported = user_stats.total_leakages_reported + EXCLUDED.total_leakages_reported,
		updated_at = NOW()
	RETURNING user_id, points, total_leakages_reported, updated_at`

// IncrementStats adds to the user's counters in a single statement, so
// concurrent rewards never lose an update.
func (r *LedgerRepo) IncrementStats(ctx context.Context, userID string, points, leakages int64) (*models.UserStats, error) {
	stats := &models.UserStats{}
	if err := r.db.GetDB().GetContext(ctx, stats, incrementStatsQuery, userID, points, leakages); err != nil {
		return nil, errors.NewDatabaseError("failed to increment user stats", err)
	}
	return stats, nil
}

// RecordVerifiedReport inserts the report and increments its author's stats
// in one transaction.
func (r *LedgerRepo) RecordVerifiedReport(ctx context.Context, report *models.LeakReport, points, leakages int64) (*models.UserStats, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO leak_reports (
			id, user_id, image_url, image_sha256, status,
			verification_confidence, verification_description,
			points_awarded, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = tx.ExecContext(ctx, query,
		report.ID, report.UserID, report.ImageURL, report.ImageSHA256, report.Status,
		report.VerificationConfidence, report.VerificationDescription,
		report.PointsAwarded, report.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.NewDuplicateError("leak report already exists", err)
		}
		return nil, errors.NewDatabaseError("failed to create leak report", err)
	}

	stats := &models.UserStats{}
	if err := tx.GetContext(ctx, stats, incrementStatsQuery, report.UserID, points, leakages); err != nil {
		return nil, errors.NewDatabaseError("failed to increment user stats", err)
	}

	if err := r.Commit(tx); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *LedgerRepo) AppendHistory(ctx context.Context, entry *models.PointsHistoryEntry) error {
	query := `
		INSERT INTO points_history (id, user_id, points, action, description, created_at)
		VALUES (:id, :user_id, :points, :action, :description, :created_at)`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, entry); err != nil {
		if isUniqueViolation(err) {
			return errors.NewDuplicateError("points history entry already exists", err)
		}
		return errors.NewDatabaseError("failed to append points history", err)
	}
	return nil
}

func (r *LedgerRepo) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	stats := &models.UserStats{}
	query := `SELECT user_id, points, total_leakages_reported, updated_at FROM user_stats WHERE user_id = $1`

	err := r.db.GetDB().GetContext(ctx, stats, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.UserStats{UserID: userID}, nil
		}
		return nil, errors.NewDatabaseError("failed to get user stats", err)
	}
	return stats, nil
}

func (r *LedgerRepo) SumHistory(ctx context.Context, userID string) (int64, error) {
	var sum int64
	query := `SELECT COALESCE(SUM(points), 0) FROM points_history WHERE user_id = $1`
	if err := r.db.GetDB().GetContext(ctx, &sum, query, userID); err != nil {
		return 0, errors.NewDatabaseError("failed to sum points history", err)
	}
	return sum, nil
}

func (r *LedgerRepo) ListHistory(ctx context.Context, userID string, offset, limit int) ([]*models.PointsHistoryEntry, error) {
	entries := []*models.PointsHistoryEntry{}
	query := `
		SELECT * FROM points_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.GetDB().SelectContext(ctx, &entries, query, userID, limit, offset); err != nil {
		return nil, errors.NewDatabaseError("failed to list points history", err)
	}
	return entries, nil
}

func (r *LedgerRepo) TopUsers(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	entries := []*models.LeaderboardEntry{}
	query := `
		SELECT user_id, points, total_leakages_reported
		FROM user_stats
		ORDER BY points DESC, user_id ASC
		LIMIT $1`

	if err := r.db.GetDB().SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, errors.NewDatabaseError("failed to load leaderboard", err)
	}
	for i, e := range entries {
		e.Rank = i + 1
	}
	return entries, nil
}
