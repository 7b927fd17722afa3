// FilePath: internal/repository/postgres/postgres.alert.go
package postgres

import (
	"context"
	"time"

	"github.com/hydrozen/leakwatch/internal/database"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
)

type AlertRepo struct {
	PostgresBaseRepo
}

func NewAlertRepository(db database.DB) *AlertRepo {
	return &AlertRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

// alertRow flattens the node pair into columns
type alertRow struct {
	ID               string                   `db:"id"`
	CreatedAt        time.Time                `db:"created_at"`
	LocationLabel    string                   `db:"location_label"`
	Severity         models.Severity          `db:"severity"`
	MetricDifference float64                  `db:"metric_difference"`
	Variant          models.ClassifierVariant `db:"variant"`
	NodeA            string                   `db:"node_a"`
	NodeB            string                   `db:"node_b"`
	Status           models.AlertStatus       `db:"status"`
}

func toAlertRow(a *models.Alert) alertRow {
	return alertRow{
		ID:               a.ID,
		CreatedAt:        a.CreatedAt,
		LocationLabel:    a.LocationLabel,
		Severity:         a.Severity,
		MetricDifference: a.MetricDifference,
		Variant:          a.Variant,
		NodeA:            a.SourceNodes.NodeA,
		NodeB:            a.SourceNodes.NodeB,
		Status:           a.Status,
	}
}

func (row alertRow) toAlert() *models.Alert {
	return &models.Alert{
		ID:               row.ID,
		CreatedAt:        row.CreatedAt,
		LocationLabel:    row.LocationLabel,
		Severity:         row.Severity,
		MetricDifference: row.MetricDifference,
		Variant:          row.Variant,
		SourceNodes:      models.NodePair{NodeA: row.NodeA, NodeB: row.NodeB},
		Status:           row.Status,
	}
}

func (r *AlertRepo) CreatePending(ctx context.Context, alert *models.Alert) error {
	row := toAlertRow(alert)
	row.Status = models.AlertPending
	query := `
		INSERT INTO leak_alerts (
			id, created_at, location_label, severity, metric_difference,
			variant, node_a, node_b, status
		) VALUES (
			:id, :created_at, :location_label, :severity, :metric_difference,
			:variant, :node_a, :node_b, :status
		)`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return errors.NewDuplicateError("alert already escalated", err)
		}
		return errors.NewDatabaseError("failed to store alert", err)
	}
	return nil
}

func (r *AlertRepo) ListRecent(ctx context.Context, limit int) ([]*models.Alert, error) {
	rows := []alertRow{}
	query := `SELECT * FROM leak_alerts ORDER BY created_at DESC LIMIT $1`
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.NewDatabaseError("failed to list alerts", err)
	}
	alerts := make([]*models.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, row.toAlert())
	}
	return alerts, nil
}
