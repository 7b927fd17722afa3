package leakservice

import (
	"context"

	"github.com/hydrozen/leakwatch/internal/anomaly"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
)

// CurrentAlert returns the monitor's view of the node pair
func (s *LeakService) CurrentAlert(ctx context.Context) models.AlertState {
	return s.Monitor.State()
}

// RefreshAlert re-reads both nodes from the snapshot store and classifies
func (s *LeakService) RefreshAlert(ctx context.Context) (models.AlertState, error) {
	return s.Monitor.Evaluate(ctx)
}

// EscalateCurrent hands the active alert to maintenance
func (s *LeakService) EscalateCurrent(ctx context.Context) (*models.Alert, error) {
	state := s.Monitor.State()
	if state.Alert == nil {
		return nil, errors.NewValidationError("there is no active alert to escalate", nil)
	}
	return s.Escalator.Escalate(ctx, state.Alert, state.NodeA, state.NodeB)
}

// RecentAlerts lists escalated alerts, newest first
func (s *LeakService) RecentAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultRecentLimit
	}
	alerts, err := s.Alerts.ListRecent(ctx, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list alerts", err)
	}
	return alerts, nil
}

// SubscribeAlerts streams alert and clear events until ctx is done
func (s *LeakService) SubscribeAlerts(ctx context.Context) <-chan anomaly.Event {
	return s.Monitor.Subscribe(ctx)
}
