// FilePath: internal/anomaly/monitor.go
package anomaly

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/repository"
	nuts "github.com/vaudience/go-nuts"
	"golang.org/x/sync/errgroup"
)

// EventType is the kind of change pushed to monitor subscribers
type EventType string

const (
	// EventAlert is a newly raised condition or a change of severity or location
	EventAlert EventType = "alert"
	// EventUpdate is a new alert superseding the previous one for the same condition
	EventUpdate EventType = "update"
	EventClear  EventType = "clear"
)

// Event is pushed to subscribers whenever the active alert changes.
type Event struct {
	Type  EventType         `json:"type"`
	State models.AlertState `json:"state"`
}

// MonitorOptions tunes the realtime monitor
type MonitorOptions struct {
	// MinConsecutive is the number of consecutive breaching evaluations
	// required before an alert is raised. Values below 1 mean 1.
	MinConsecutive int
	// OnEvent is called for every published event.
	OnEvent func(Event)
}

// Monitor keeps the latest snapshot of a node pair and re-classifies on
// every update of either node.
type Monitor struct {
	store      repository.SnapshotStore
	classifier *Classifier
	nodeA      string
	nodeB      string
	opts       MonitorOptions
	hub        *Hub

	mu       sync.RWMutex
	a, b     *models.SensorSnapshot
	current  *models.Alert
	breaches int
	updated  time.Time
}

func NewMonitor(store repository.SnapshotStore, classifier *Classifier, nodeA, nodeB string, opts MonitorOptions) *Monitor {
	if opts.MinConsecutive < 1 {
		opts.MinConsecutive = 1
	}
	return &Monitor{
		store:      store,
		classifier: classifier,
		nodeA:      nodeA,
		nodeB:      nodeB,
		opts:       opts,
		hub:        NewHub(16),
	}
}

// Run subscribes to both nodes and blocks until ctx is done. Subscriptions
// are cancelled on return.
func (m *Monitor) Run(ctx context.Context) error {
	cancelA, err := m.store.Subscribe(ctx, m.nodeA, func(s *models.SensorSnapshot) { m.Update(s) })
	if err != nil {
		return fmt.Errorf("failed to subscribe to node %s: %w", m.nodeA, err)
	}
	defer cancelA()
	cancelB, err := m.store.Subscribe(ctx, m.nodeB, func(s *models.SensorSnapshot) { m.Update(s) })
	if err != nil {
		return fmt.Errorf("failed to subscribe to node %s: %w", m.nodeB, err)
	}
	defer cancelB()

	if _, err := m.Evaluate(ctx); err != nil {
		nuts.L.Warnf("[Monitor] Initial evaluation failed: %v", err)
	}
	nuts.L.Infof("[Monitor] Watching node pair %s / %s", m.nodeA, m.nodeB)

	<-ctx.Done()
	m.hub.Close()
	nuts.L.Infof("[Monitor] Stopped watching node pair %s / %s", m.nodeA, m.nodeB)
	return nil
}

// Evaluate fetches the latest snapshot of both nodes concurrently and
// classifies them.
func (m *Monitor) Evaluate(ctx context.Context) (models.AlertState, error) {
	var a, b *models.SensorSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = m.store.Latest(gctx, m.nodeA)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = m.store.Latest(gctx, m.nodeB)
		return err
	})
	if err := g.Wait(); err != nil {
		return m.State(), err
	}

	m.mu.Lock()
	if a != nil {
		m.a = a
	}
	if b != nil {
		m.b = b
	}
	ev := m.reclassifyLocked()
	state := m.stateLocked()
	m.mu.Unlock()

	m.publish(ev)
	return state, nil
}

// Update records a new snapshot for one of the monitored nodes. Snapshots of
// other nodes are ignored.
func (m *Monitor) Update(s *models.SensorSnapshot) {
	if s == nil {
		return
	}
	m.mu.Lock()
	switch s.NodeID {
	case m.nodeA:
		m.a = s
	case m.nodeB:
		m.b = s
	default:
		m.mu.Unlock()
		return
	}
	ev := m.reclassifyLocked()
	m.mu.Unlock()

	m.publish(ev)
}

func (m *Monitor) reclassifyLocked() *Event {
	m.updated = time.Now()
	alert := m.classifier.Classify(m.a, m.b)
	if alert == nil {
		m.breaches = 0
		if m.current == nil {
			return nil
		}
		m.current = nil
		return &Event{Type: EventClear, State: m.stateLocked()}
	}

	m.breaches++
	if m.breaches < m.opts.MinConsecutive {
		return nil
	}
	// alerts are never mutated, every evaluation supersedes the previous one
	evType := EventAlert
	if m.current != nil && m.current.Severity == alert.Severity && m.current.LocationLabel == alert.LocationLabel {
		evType = EventUpdate
	}
	m.current = alert
	return &Event{Type: evType, State: m.stateLocked()}
}

func (m *Monitor) stateLocked() models.AlertState {
	return models.AlertState{
		Alert:     m.current,
		NodeA:     m.a,
		NodeB:     m.b,
		Breaches:  m.breaches,
		UpdatedAt: m.updated,
	}
}

// State returns the current alert state.
func (m *Monitor) State() models.AlertState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

// Subscribe returns a channel of alert events that is closed when ctx is
// done or the monitor stops.
func (m *Monitor) Subscribe(ctx context.Context) <-chan Event {
	return m.hub.Subscribe(ctx)
}

func (m *Monitor) publish(ev *Event) {
	if ev == nil {
		return
	}
	switch ev.Type {
	case EventAlert:
		a := ev.State.Alert
		nuts.L.Warnf("[Monitor] %s severity leak suspected at %s (difference %.1f)", a.Severity, a.LocationLabel, a.MetricDifference)
	case EventClear:
		nuts.L.Infof("[Monitor] Leak condition cleared for %s / %s", m.nodeA, m.nodeB)
	}
	if m.opts.OnEvent != nil {
		m.opts.OnEvent(*ev)
	}
	m.hub.Publish(*ev)
}
