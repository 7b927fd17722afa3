package anomaly

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/notify"
	"github.com/hydrozen/leakwatch/internal/repository/memory"
)

func newTestMonitor(store *memory.SnapshotStore, minConsecutive int) *Monitor {
	c := NewClassifier(models.VariantHumidityPressure, map[string]string{"n1": "Kitchen", "n2": "Bathroom"})
	return NewMonitor(store, c, "n1", "n2", MonitorOptions{MinConsecutive: minConsecutive})
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMonitorRaisesAndClearsAlert(t *testing.T) {
	store := memory.NewSnapshotStore()
	m := newTestMonitor(store, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Subscribe(ctx)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// wait for both subscriptions
	deadline := time.Now().Add(2 * time.Second)
	for {
		store.Set(snap("n1", 50, 1000))
		store.Set(snap("n2", 50, 1000))
		if m.State().NodeA != nil && m.State().NodeB != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitor never received snapshots")
		}
		time.Sleep(10 * time.Millisecond)
	}

	store.Set(snap("n1", 75, 1000))
	ev := waitEvent(t, events)
	if ev.Type != EventAlert || ev.State.Alert.Severity != models.SeverityHigh {
		t.Fatalf("expected high alert, got %+v", ev)
	}
	if ev.State.Alert.LocationLabel != "Kitchen" {
		t.Fatalf("expected Kitchen, got %s", ev.State.Alert.LocationLabel)
	}

	store.Set(snap("n1", 52, 1000))
	ev = waitEvent(t, events)
	if ev.Type != EventClear || ev.State.Alert != nil {
		t.Fatalf("expected clear event, got %+v", ev)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestMonitorUpdateIgnoresForeignNodes(t *testing.T) {
	m := newTestMonitor(memory.NewSnapshotStore(), 1)
	m.Update(snap("n9", 99, 1000))
	if s := m.State(); s.NodeA != nil || s.NodeB != nil {
		t.Fatalf("foreign node stored: %+v", s)
	}
}

func TestMonitorMinConsecutive(t *testing.T) {
	m := newTestMonitor(memory.NewSnapshotStore(), 3)
	m.Update(snap("n2", 40, 1000))
	m.Update(snap("n1", 70, 1000))
	if m.State().Alert != nil {
		t.Fatal("alert raised after one breach")
	}
	m.Update(snap("n1", 71, 1000))
	if m.State().Alert != nil {
		t.Fatal("alert raised after two breaches")
	}
	m.Update(snap("n1", 72, 1000))
	if m.State().Alert == nil {
		t.Fatal("expected alert after three breaches")
	}
	m.Update(snap("n1", 41, 1000))
	if s := m.State(); s.Alert != nil || s.Breaches != 0 {
		t.Fatalf("expected reset after recovery, got %+v", s)
	}
}

func TestMonitorSupersedesAlertWhileConditionHolds(t *testing.T) {
	m := newTestMonitor(memory.NewSnapshotStore(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Subscribe(ctx)

	m.Update(snap("n2", 40, 1000))
	m.Update(snap("n1", 70, 1000))
	first := m.State().Alert
	if ev := waitEvent(t, events); ev.Type != EventAlert {
		t.Fatalf("expected alert event, got %s", ev.Type)
	}

	m.Update(snap("n1", 71, 1000))
	second := m.State().Alert
	if first == nil || second == nil || first.ID == second.ID {
		t.Fatalf("expected a new alert, got %v / %v", first, second)
	}
	if first.MetricDifference != 30 || second.MetricDifference != 31 {
		t.Fatalf("alerts must not be mutated, got %v / %v", first.MetricDifference, second.MetricDifference)
	}
	ev := waitEvent(t, events)
	if ev.Type != EventUpdate || ev.State.Alert.ID != second.ID {
		t.Fatalf("expected update event for the new alert, got %+v", ev)
	}

	m.Update(snap("n1", 58, 1000))
	if ev := waitEvent(t, events); ev.Type != EventAlert || ev.State.Alert.Severity != models.SeverityMedium {
		t.Fatalf("severity change is a new condition, got %+v", ev)
	}
}

func TestMonitorEvaluate(t *testing.T) {
	store := memory.NewSnapshotStore()
	m := newTestMonitor(store, 1)

	state, err := m.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if state.Alert != nil {
		t.Fatal("no alert expected without snapshots")
	}

	store.Set(snap("n1", 50, 1000))
	store.Set(snap("n2", 50, 1012))
	state, err = m.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if state.Alert == nil || state.Alert.Severity != models.SeverityLow {
		t.Fatalf("expected low pressure alert, got %+v", state.Alert)
	}

	store.Fail("Latest", stderrors.New("redis down"))
	if _, err := m.Evaluate(context.Background()); err == nil {
		t.Fatal("expected store failure")
	}
}

type stubNotifier struct {
	err   error
	calls int
}

func (n *stubNotifier) Notify(_ context.Context, _ notify.Escalation) error {
	n.calls++
	return n.err
}

func TestEscalateNotifiesThenPersists(t *testing.T) {
	n := &stubNotifier{}
	alerts := memory.NewAlertRepository()
	e := NewEscalator(n, alerts)
	var results []string
	e.OnResult = func(r string) { results = append(results, r) }

	alert := ClassifyHumidity(snap("n1", 75, 1000), snap("n2", 40, 1000))
	alert.ID = "alt_1"

	pending, err := e.Escalate(context.Background(), alert, nil, nil)
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if pending.Status != models.AlertPending {
		t.Fatalf("expected pending status, got %s", pending.Status)
	}
	stored, _ := alerts.ListRecent(context.Background(), 10)
	if len(stored) != 1 || stored[0].ID != "alt_1" {
		t.Fatalf("unexpected stored alerts %+v", stored)
	}
	if alert.Status != models.AlertTransient {
		t.Fatal("input alert must not be mutated")
	}
	if len(results) != 1 || results[0] != EscalationSent {
		t.Fatalf("unexpected results %v", results)
	}
}

func TestEscalateNotifyFailureStoresNothing(t *testing.T) {
	n := &stubNotifier{err: stderrors.New("smtp down")}
	alerts := memory.NewAlertRepository()
	e := NewEscalator(n, alerts)

	alert := ClassifyHumidity(snap("n1", 75, 1000), snap("n2", 40, 1000))
	_, err := e.Escalate(context.Background(), alert, nil, nil)
	if errors.TypeOf(err) != errors.ErrorTypeNotification {
		t.Fatalf("expected notification error, got %v", err)
	}
	if n.calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", n.calls)
	}
	stored, _ := alerts.ListRecent(context.Background(), 10)
	if len(stored) != 0 {
		t.Fatal("nothing may be persisted when notification fails")
	}
}

func TestEscalatePersistFailure(t *testing.T) {
	alerts := memory.NewAlertRepository()
	alerts.Fail("CreatePending", stderrors.New("db down"))
	e := NewEscalator(&stubNotifier{}, alerts)

	alert := ClassifyHumidity(snap("n1", 75, 1000), snap("n2", 40, 1000))
	if _, err := e.Escalate(context.Background(), alert, nil, nil); !errors.IsLedgerInconsistency(err) {
		t.Fatalf("expected ledger inconsistency, got %v", err)
	}
}

func TestEscalateWithoutAlert(t *testing.T) {
	e := NewEscalator(&stubNotifier{}, memory.NewAlertRepository())
	if _, err := e.Escalate(context.Background(), nil, nil, nil); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub(1)
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx)

	h.Publish(Event{Type: EventAlert})
	h.Publish(Event{Type: EventClear})

	if ev := <-ch; ev.Type != EventAlert {
		t.Fatalf("expected first event, got %s", ev.Type)
	}
	select {
	case ev := <-ch:
		t.Fatalf("expected dropped event, got %s", ev.Type)
	default:
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for h.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
