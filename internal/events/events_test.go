package events

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/hydrozen/leakwatch/internal/anomaly"
	"github.com/hydrozen/leakwatch/internal/models"
)

type received struct {
	event  string
	labels Labels
}

func listen(t *testing.T, b *Bus, event string) <-chan received {
	t.Helper()
	ch := make(chan received, 8)
	b.On(event, "test_listener", func(event string, labels Labels) {
		ch <- received{event: event, labels: labels}
	})
	return ch
}

func wait(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	return received{}
}

func TestObserverMethodsEmitLabels(t *testing.T) {
	b := NewBus()
	points := listen(t, b, PointsAwarded)
	inconsistent := listen(t, b, LedgerInconsistency)
	unlocked := listen(t, b, AchievementUnlocked)
	processed := listen(t, b, ReportProcessed)

	b.PointsAwarded("usr_1", 50)
	b.Inconsistency("history", stderrors.New("boom"))
	b.AchievementUnlocked("usr_1", models.Achievement{ID: "ach_first_drop"})
	b.ReportProcessed("verified")

	if r := wait(t, points); r.labels["points"] != "50" || r.labels["user_id"] != "usr_1" {
		t.Errorf("points labels = %v", r.labels)
	}
	if r := wait(t, inconsistent); r.labels["write"] != "history" || r.labels["error"] != "boom" {
		t.Errorf("inconsistency labels = %v", r.labels)
	}
	if r := wait(t, unlocked); r.labels["achievement_id"] != "ach_first_drop" {
		t.Errorf("achievement labels = %v", r.labels)
	}
	if r := wait(t, processed); r.event != ReportProcessed || r.labels["outcome"] != "verified" {
		t.Errorf("processed = %+v", r)
	}
}

func TestMonitorEvents(t *testing.T) {
	b := NewBus()
	raised := listen(t, b, AlertRaised)
	cleared := listen(t, b, AlertCleared)

	b.MonitorEvent(anomaly.Event{Type: anomaly.EventUpdate, State: models.AlertState{
		Alert: &models.Alert{ID: "alt_0", Severity: models.SeverityHigh, LocationLabel: "Kitchen"},
	}})
	b.MonitorEvent(anomaly.Event{Type: anomaly.EventAlert, State: models.AlertState{
		Alert: &models.Alert{ID: "alt_1", Severity: models.SeverityHigh, LocationLabel: "Kitchen"},
	}})
	b.MonitorEvent(anomaly.Event{Type: anomaly.EventClear})

	if r := wait(t, raised); r.labels["alert_id"] != "alt_1" || r.labels["severity"] != "high" || r.labels["location"] != "Kitchen" {
		t.Errorf("raised labels = %v", r.labels)
	}
	wait(t, cleared)
}
