package monitoring

import (
	"net/http"
	"strconv"

	"github.com/hydrozen/leakwatch/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	nuts "github.com/vaudience/go-nuts"
)

const namespace = "leakwatch"

// Config holds monitoring configuration
type Config struct {
	MetricsEnabled bool
}

// Service turns domain events into prometheus counters on a private registry
type Service struct {
	config   Config
	registry *prometheus.Registry

	reports         *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	escalations     *prometheus.CounterVec
	inconsistencies *prometheus.CounterVec
	events          *prometheus.CounterVec
	points          prometheus.Counter
	duplicates      prometheus.Counter
}

// NewService creates a new monitoring service
func NewService(config Config) *Service {
	s := &Service{
		config:   config,
		registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Leak report submissions by outcome.",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Raised leak alerts by severity.",
		}, []string{"severity"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Alert escalations by result.",
		}, []string{"result"}),
		inconsistencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_inconsistencies_total",
			Help:      "Secondary ledger writes that failed after the primary write succeeded.",
		}, []string{"write"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events seen on the bus.",
		}, []string{"event"}),
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points credited to users.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_images_total",
			Help:      "Accepted reports whose image was already rewarded before.",
		}),
	}
	s.registry.MustRegister(
		s.reports, s.alerts, s.escalations, s.inconsistencies, s.events, s.points, s.duplicates,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Attach records every event emitted on bus
func (s *Service) Attach(bus *events.Bus) {
	bus.OnAll("monitoring", s.RecordEvent)
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels events.Labels) {
	s.events.WithLabelValues(eventName).Inc()

	switch eventName {
	case events.ReportProcessed:
		s.reports.WithLabelValues(labels["outcome"]).Inc()
	case events.DuplicateImage:
		s.duplicates.Inc()
	case events.PointsAwarded:
		if n, err := strconv.ParseInt(labels["points"], 10, 64); err == nil && n > 0 {
			s.points.Add(float64(n))
		}
	case events.LedgerInconsistency:
		s.inconsistencies.WithLabelValues(labels["write"]).Inc()
		nuts.L.Warnf("[Monitoring] Ledger inconsistency on %s write: %s", labels["write"], labels["error"])
	case events.AlertRaised:
		s.alerts.WithLabelValues(labels["severity"]).Inc()
	case events.AlertEscalation:
		s.escalations.WithLabelValues(labels["result"]).Inc()
	}
}

// Handler serves the private registry, or 404 when metrics are disabled
func (s *Service) Handler() http.Handler {
	if !s.config.MetricsEnabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Registry exposes the underlying registry
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}
