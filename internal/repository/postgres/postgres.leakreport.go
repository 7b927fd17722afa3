// FilePath: internal/repository/postgres/postgres.leakreport.go
package postgres

import (
	"context"

	"github.com/hydrozen/leakwatch/internal/database"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
)

type LeakReportRepo struct {
	PostgresBaseRepo
}

func NewLeakReportRepository(db database.DB) *LeakReportRepo {
	return &LeakReportRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *LeakReportRepo) Create(ctx context.Context, report *models.LeakReport) error {
	query := `
		INSERT INTO leak_reports (
			id, user_id, image_url, image_sha256, status,
			verification_confidence, verification_description,
			points_awarded, created_at
		) VALUES (
			:id, :user_id, :image_url, :image_sha256, :status,
			:verification_confidence, :verification_description,
			:points_awarded, :created_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, report)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewDuplicateError("leak report already exists", err)
		}
		return errors.NewDatabaseError("failed to create leak report", err)
	}
	return nil
}

func (r *LeakReportRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*models.LeakReport, error) {
	reports := []*models.LeakReport{}
	query := `
		SELECT * FROM leak_reports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.GetDB().SelectContext(ctx, &reports, query, userID, limit, offset); err != nil {
		return nil, errors.NewDatabaseError("failed to list leak reports", err)
	}
	return reports, nil
}

func (r *LeakReportRepo) ListRecent(ctx context.Context, limit int) ([]*models.LeakReport, error) {
	reports := []*models.LeakReport{}
	query := `
		SELECT * FROM leak_reports
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.GetDB().SelectContext(ctx, &reports, query, models.ReportVerified, limit); err != nil {
		return nil, errors.NewDatabaseError("failed to list recent leak reports", err)
	}
	return reports, nil
}

func (r *LeakReportRepo) CountVerifiedByImageHash(ctx context.Context, sha256 string) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM leak_reports WHERE image_sha256 = $1 AND status = $2`
	if err := r.db.GetDB().GetContext(ctx, &n, query, sha256, models.ReportVerified); err != nil {
		return 0, errors.NewDatabaseError("failed to count leak reports by image", err)
	}
	return n, nil
}
