// FilePath: internal/events/events.go
package events

import (
	"strconv"

	"github.com/hydrozen/leakwatch/internal/anomaly"
	"github.com/hydrozen/leakwatch/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Domain events emitted on the bus
const (
	ReportProcessed     = "report.processed"
	DuplicateImage      = "report.duplicate_image"
	PointsAwarded       = "points.awarded"
	AchievementUnlocked = "achievement.unlocked"
	LedgerInconsistency = "ledger.inconsistency"
	AlertRaised         = "alert.raised"
	AlertCleared        = "alert.cleared"
	AlertEscalation     = "alert.escalation"
)

// All lists every event the bus emits
var All = []string{
	ReportProcessed,
	DuplicateImage,
	PointsAwarded,
	AchievementUnlocked,
	LedgerInconsistency,
	AlertRaised,
	AlertCleared,
	AlertEscalation,
}

// Labels is the payload of every event
type Labels map[string]string

// Bus fans domain events out to listeners. It satisfies the ledger and
// pipeline observer interfaces so the core packages stay unaware of metrics.
type Bus struct {
	events *nuts.EventEmitter
}

func NewBus() *Bus {
	return &Bus{events: nuts.NewEventEmitter()}
}

// On registers handler for event under listenerID
func (b *Bus) On(event, listenerID string, handler func(event string, labels Labels)) {
	b.events.On(event, listenerID, func(args ...interface{}) {
		if len(args) == 0 {
			return
		}
		if labels, ok := args[0].(Labels); ok {
			handler(event, labels)
		}
	})
}

// OnAll registers handler for every event in All
func (b *Bus) OnAll(listenerID string, handler func(event string, labels Labels)) {
	for _, event := range All {
		b.On(event, listenerID, handler)
	}
}

func (b *Bus) emit(event string, labels Labels) {
	b.events.Emit(event, labels)
}

// pipeline observer

func (b *Bus) ReportProcessed(outcome string) {
	b.emit(ReportProcessed, Labels{"outcome": outcome})
}

func (b *Bus) DuplicateImage(userID, sha string) {
	b.emit(DuplicateImage, Labels{"user_id": userID, "sha256": sha})
}

// ledger observer

func (b *Bus) PointsAwarded(userID string, points int64) {
	b.emit(PointsAwarded, Labels{"user_id": userID, "points": strconv.FormatInt(points, 10)})
}

func (b *Bus) Inconsistency(write string, err error) {
	labels := Labels{"write": write}
	if err != nil {
		labels["error"] = err.Error()
	}
	b.emit(LedgerInconsistency, labels)
}

func (b *Bus) AchievementUnlocked(userID string, a models.Achievement) {
	b.emit(AchievementUnlocked, Labels{"user_id": userID, "achievement_id": a.ID})
}

// anomaly hooks

// MonitorEvent is meant for anomaly.MonitorOptions.OnEvent
// Superseding alerts for an unchanged condition are not re-emitted.
func (b *Bus) MonitorEvent(ev anomaly.Event) {
	if ev.Type == anomaly.EventUpdate {
		return
	}
	if ev.Type == anomaly.EventClear || ev.State.Alert == nil {
		b.emit(AlertCleared, Labels{})
		return
	}
	b.emit(AlertRaised, Labels{
		"alert_id": ev.State.Alert.ID,
		"severity": string(ev.State.Alert.Severity),
		"location": ev.State.Alert.LocationLabel,
	})
}

// EscalationResult is meant for anomaly.Escalator.OnResult
func (b *Bus) EscalationResult(result string) {
	b.emit(AlertEscalation, Labels{"result": result})
}
