package leakservice

import (
	"context"

	"github.com/hydrozen/leakwatch/internal/anomaly"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/events"
	"github.com/hydrozen/leakwatch/internal/ledger"
	"github.com/hydrozen/leakwatch/internal/repository"
	"github.com/hydrozen/leakwatch/internal/verification"
)

// Pinger is implemented by backing stores that can report their health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Components are the collaborators the service is assembled from
type Components struct {
	Reports   repository.LeakReportRepository
	Alerts    repository.AlertRepository
	Pipeline  *verification.Pipeline
	Ledger    *ledger.Ledger
	Monitor   *anomaly.Monitor
	Escalator *anomaly.Escalator
	Events    *events.Bus
	// Health checks keyed by dependency name
	Health map[string]Pinger
}

// LeakService is the single entry point used by the HTTP resources
type LeakService struct {
	Reports   repository.LeakReportRepository
	Alerts    repository.AlertRepository
	Pipeline  *verification.Pipeline
	Ledger    *ledger.Ledger
	Monitor   *anomaly.Monitor
	Escalator *anomaly.Escalator
	Events    *events.Bus
	health    map[string]Pinger
}

// New creates a new LeakService instance
func New(c Components) *LeakService {
	return &LeakService{
		Reports:   c.Reports,
		Alerts:    c.Alerts,
		Pipeline:  c.Pipeline,
		Ledger:    c.Ledger,
		Monitor:   c.Monitor,
		Escalator: c.Escalator,
		Events:    c.Events,
		health:    c.Health,
	}
}

// Validate checks if all required components are initialized
func (s *LeakService) Validate() error {
	if s.Reports == nil {
		return ErrMissingComponent("reports")
	}
	if s.Alerts == nil {
		return ErrMissingComponent("alerts")
	}
	if s.Pipeline == nil {
		return ErrMissingComponent("pipeline")
	}
	if s.Ledger == nil {
		return ErrMissingComponent("ledger")
	}
	if s.Monitor == nil {
		return ErrMissingComponent("monitor")
	}
	if s.Escalator == nil {
		return ErrMissingComponent("escalator")
	}
	return nil
}

// Health pings every registered dependency and returns the failing ones
func (s *LeakService) Health(ctx context.Context) map[string]string {
	status := make(map[string]string, len(s.health))
	for name, p := range s.health {
		if err := p.Ping(ctx); err != nil {
			status[name] = err.Error()
			continue
		}
		status[name] = "ok"
	}
	return status
}

func ErrMissingComponent(name string) error {
	return errors.NewInternalError("missing component: "+name, nil)
}
