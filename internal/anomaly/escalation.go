// FilePath: internal/anomaly/escalation.go
package anomaly

import (
	"context"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/notify"
	"github.com/hydrozen/leakwatch/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Escalation results reported to the observer
const (
	EscalationSent          = "sent"
	EscalationNotifyFailed  = "notify_failed"
	EscalationPersistFailed = "persist_failed"
)

// Escalator hands an alert to the maintenance team and records it.
type Escalator struct {
	notifier notify.Notifier
	alerts   repository.AlertRepository
	// OnResult, if set, is called with one of the Escalation* results.
	OnResult func(result string)
}

func NewEscalator(notifier notify.Notifier, alerts repository.AlertRepository) *Escalator {
	return &Escalator{notifier: notifier, alerts: alerts}
}

// Escalate notifies first and only persists a pending alert once the
// notification went out. There is exactly one attempt.
//
// A notification failure returns a notification error and nothing is stored.
// A persistence failure after a successful notification returns a ledger
// inconsistency error: maintenance was told but no record exists.
func (e *Escalator) Escalate(ctx context.Context, alert *models.Alert, a, b *models.SensorSnapshot) (*models.Alert, error) {
	if alert == nil {
		return nil, errors.NewValidationError("no alert to escalate", nil)
	}

	if err := e.notifier.Notify(ctx, notify.Escalation{Alert: alert, Node1: a, Node2: b}); err != nil {
		nuts.L.Errorf("[Escalation] Failed to notify maintenance about alert %s: %v", alert.ID, err)
		e.report(EscalationNotifyFailed)
		return nil, errors.NewNotificationError("failed to notify maintenance", err)
	}

	pending := *alert
	pending.Status = models.AlertPending
	if err := e.alerts.CreatePending(ctx, &pending); err != nil {
		nuts.L.Errorf("[Escalation] Maintenance notified about alert %s but it could not be stored: %v", alert.ID, err)
		e.report(EscalationPersistFailed)
		return nil, errors.NewLedgerInconsistencyError("alert was sent but could not be stored", err).
			WithDetails(map[string]string{"alert_id": alert.ID})
	}

	nuts.L.Infof("[Escalation] Alert %s escalated (%s at %s)", alert.ID, alert.Severity, alert.LocationLabel)
	e.report(EscalationSent)
	return &pending, nil
}

func (e *Escalator) report(result string) {
	if e.OnResult != nil {
		e.OnResult(result)
	}
}
