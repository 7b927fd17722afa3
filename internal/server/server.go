// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydrozen/leakwatch/api"
	"github.com/hydrozen/leakwatch/api/middleware"
	"github.com/hydrozen/leakwatch/internal/anomaly"
	"github.com/hydrozen/leakwatch/internal/config"
	"github.com/hydrozen/leakwatch/internal/database"
	"github.com/hydrozen/leakwatch/internal/events"
	"github.com/hydrozen/leakwatch/internal/leakservice"
	"github.com/hydrozen/leakwatch/internal/ledger"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/monitoring"
	"github.com/hydrozen/leakwatch/internal/notify"
	"github.com/hydrozen/leakwatch/internal/repository"
	"github.com/hydrozen/leakwatch/internal/repository/files"
	"github.com/hydrozen/leakwatch/internal/repository/memory"
	"github.com/hydrozen/leakwatch/internal/repository/postgres"
	"github.com/hydrozen/leakwatch/internal/repository/redis"
	"github.com/hydrozen/leakwatch/internal/telemetry"
	"github.com/hydrozen/leakwatch/internal/verification"
	nuts "github.com/vaudience/go-nuts"
)

const startupTimeout = 10 * time.Second

// stores groups the repositories selected by the database driver
type stores struct {
	reports      repository.LeakReportRepository
	stats        repository.LedgerRepository
	achievements repository.AchievementRepository
	usage        repository.UsageBalanceRepository
	alerts       repository.AlertRepository
	snapshots    repository.SnapshotStore
}

// Server represents our HTTP server
type Server struct {
	config     *config.Config
	srv        *http.Server
	router     *api.Router
	service    *leakservice.LeakService
	monitoring *monitoring.Service
	bridge     *telemetry.Bridge

	// closers run in reverse order on shutdown
	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New creates a new server instance and wires all components. Connection
// failures of required backends are fatal.
func New(cfg *config.Config) *Server {
	s := &Server{config: cfg}

	bus := events.NewBus()
	s.monitoring = monitoring.NewService(monitoring.Config{MetricsEnabled: cfg.Monitoring.MetricsEnabled})
	s.monitoring.Attach(bus)
	s.setupEventHandlers(bus)

	health := map[string]leakservice.Pinger{}
	st := s.initStores(health)

	images, err := files.NewImageRepository(files.FileConfig{
		BasePath:      cfg.FileStore.BasePath,
		PublicBaseURL: cfg.FileStore.PublicBaseURL,
	})
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to initialize image storage: %v", err)
	}

	verifier := verification.NewClient(verification.ClientConfig{
		APIKey:  cfg.Verification.APIKey,
		BaseURL: cfg.Verification.BaseURL,
		Model:   cfg.Verification.Model,
		Referer: cfg.Verification.Referer,
		Title:   cfg.Verification.Title,
		Timeout: cfg.Verification.Timeout,
	})

	led := ledger.New(st.stats, st.achievements, st.usage, bus)
	pipeline := verification.NewPipeline(images, verifier, st.reports, led, bus)

	classifier := anomaly.NewClassifier(models.ClassifierVariant(cfg.Anomaly.Variant), cfg.Anomaly.Labels)
	monitor := anomaly.NewMonitor(st.snapshots, classifier, cfg.Anomaly.NodeA, cfg.Anomaly.NodeB, anomaly.MonitorOptions{
		MinConsecutive: cfg.Anomaly.MinConsecutive,
		OnEvent:        bus.MonitorEvent,
	})
	escalator := anomaly.NewEscalator(s.initNotifier(), st.alerts)
	escalator.OnResult = bus.EscalationResult

	s.service = leakservice.New(leakservice.Components{
		Reports:   st.reports,
		Alerts:    st.alerts,
		Pipeline:  pipeline,
		Ledger:    led,
		Monitor:   monitor,
		Escalator: escalator,
		Events:    bus,
		Health:    health,
	})
	if err := s.service.Validate(); err != nil {
		nuts.L.Fatalf("[Server] Invalid service setup: %v", err)
	}

	if cfg.MQTT.Broker != "" {
		s.bridge = telemetry.NewBridge(cfg.MQTT, st.snapshots)
	}

	s.router = api.NewRouter(s.service, s.initAuth(), api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        s.monitoring.Handler(),
		ImagesDir:      images.BasePath(),
	})

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Start begins listening for requests and blocks until shutdown
func (s *Server) Start() error {
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	s.closers = append(s.closers, closerFunc(func() error { stopMonitor(); return nil }))

	go func() {
		if err := s.service.Monitor.Run(monitorCtx); err != nil {
			nuts.L.Errorf("[Server] Anomaly monitor stopped: %v", err)
		}
	}()

	if s.bridge != nil {
		if err := s.bridge.Start(); err != nil {
			// the snapshot store can still be fed by other publishers
			nuts.L.Errorf("[Server] Telemetry bridge unavailable: %v", err)
		} else {
			s.closers = append(s.closers, closerFunc(func() error { s.bridge.Stop(); return nil }))
		}
	}

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			nuts.L.Warnf("[Server] Error releasing resource: %v", err)
		}
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// initStores selects the repositories for the configured driver. Postgres
// mode keeps telemetry snapshots in redis; memory mode keeps everything in
// process.
func (s *Server) initStores(health map[string]leakservice.Pinger) stores {
	cfg := s.config
	if cfg.Database.Driver == config.DriverMemory {
		nuts.L.Warnf("[Server] Using in-memory storage, data is lost on restart")
		reports := memory.NewLeakReportRepository()
		return stores{
			reports:      reports,
			stats:        memory.NewLedgerRepository(reports),
			achievements: memory.NewAchievementRepository(memory.DefaultCatalog()),
			usage:        memory.NewUsageBalanceRepository(),
			alerts:       memory.NewAlertRepository(),
			snapshots:    memory.NewSnapshotStore(),
		}
	}

	db := initAppDB(cfg.Database)
	s.closers = append(s.closers, db)
	health["database"] = db

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := database.Migrate(ctx, db); err != nil {
			nuts.L.Fatalf("[Server] Failed to migrate database: %v", err)
		}
	}

	client := redis.NewClient(cfg.Redis)
	s.closers = append(s.closers, client)
	snapshots := redis.NewSnapshotStore(client, cfg.Redis.KeyPrefix)
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := snapshots.Ping(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to reach redis: %v", err)
	}
	health["redis"] = snapshots

	return stores{
		reports:      postgres.NewLeakReportRepository(db),
		stats:        postgres.NewLedgerRepository(db),
		achievements: postgres.NewAchievementRepository(db),
		usage:        postgres.NewUsageBalanceRepository(db),
		alerts:       postgres.NewAlertRepository(db),
		snapshots:    snapshots,
	}
}

func (s *Server) initNotifier() notify.Notifier {
	cfg := s.config.Notification
	switch cfg.Channel {
	case notify.ChannelEmail:
		return notify.NewEmailNotifier(notify.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
		})
	case notify.ChannelKafka:
		n := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		s.closers = append(s.closers, n)
		return n
	default:
		nuts.L.Warnf("[Server] Notification channel %q, escalations are only logged", cfg.Channel)
		return notify.LogNotifier{}
	}
}

// initAuth uses keycloak when configured. Without keycloak only memory mode
// is allowed to fall back to header based development auth.
func (s *Server) initAuth() middleware.Authenticator {
	cfg := s.config
	if cfg.Keycloak.URL != "" {
		return middleware.NewKeycloakMiddleware(middleware.KeycloakConfig{
			URL:          cfg.Keycloak.URL,
			Realm:        cfg.Keycloak.Realm,
			ClientID:     cfg.Keycloak.ClientID,
			ClientSecret: cfg.Keycloak.ClientSecret,
		})
	}
	if cfg.Database.Driver != config.DriverMemory {
		nuts.L.Fatalf("[Server] Keycloak is required outside of memory mode")
	}
	nuts.L.Warnf("[Server] Keycloak not configured, trusting %s headers", middleware.DevUserHeader)
	return middleware.DevMiddleware{}
}

// setupEventHandlers logs the events operators care about
func (s *Server) setupEventHandlers(bus *events.Bus) {
	bus.On(events.LedgerInconsistency, "server-log", func(event string, labels events.Labels) {
		nuts.L.Errorf("[Events] Ledger inconsistency on %s write: %s", labels["write"], labels["error"])
	})
	bus.On(events.AchievementUnlocked, "server-log", func(event string, labels events.Labels) {
		nuts.L.Infof("[Events] User %s unlocked %s", labels["user_id"], labels["achievement_id"])
	})
	bus.On(events.AlertRaised, "server-log", func(event string, labels events.Labels) {
		nuts.L.Warnf("[Events] Leak alert %s raised at %s (%s)", labels["alert_id"], labels["location"], labels["severity"])
	})
}

func initAppDB(cfg config.DatabaseConfig) database.DB {
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping database: %v", err)
	}
	return db
}
