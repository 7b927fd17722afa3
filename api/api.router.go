package api

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hydrozen/leakwatch/api/middleware"
	"github.com/hydrozen/leakwatch/api/resources"
	_ "github.com/hydrozen/leakwatch/docs"
	"github.com/hydrozen/leakwatch/internal/leakservice"
	"github.com/swaggo/swag"
	nuts "github.com/vaudience/go-nuts"
)

const RoleAdmin = "admin"

// RouterOptions carries the pieces of the HTTP surface that are not part of
// the leak service itself
type RouterOptions struct {
	AllowedOrigins []string
	Metrics        http.Handler
	// ImagesDir is served read-only under /images/ when set
	ImagesDir string
}

type Router struct {
	router    *mux.Router
	auth      middleware.Authenticator
	resources *resources.Resources
	opts      RouterOptions
}

func NewRouter(svc *leakservice.LeakService, auth middleware.Authenticator, opts RouterOptions) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      auth,
		resources: resources.NewResources(svc, opts.AllowedOrigins),
		opts:      opts,
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// Public routes
	if r.opts.Metrics != nil {
		r.router.Handle("/metrics", r.opts.Metrics).Methods(http.MethodGet)
	}
	r.router.HandleFunc("/swagger/doc.json", serveSwagger).Methods(http.MethodGet)
	if r.opts.ImagesDir != "" {
		r.router.PathPrefix("/images/").Handler(
			http.StripPrefix("/images/", http.FileServer(http.Dir(r.opts.ImagesDir))),
		).Methods(http.MethodGet)
	}

	// API version prefix
	api := r.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	// Reports
	reports := protected.PathPrefix("/reports").Subrouter()
	reports.HandleFunc("", r.resources.Reports.ListReports).Methods(http.MethodGet)
	reports.HandleFunc("", r.resources.Reports.SubmitReport).Methods(http.MethodPost)
	reports.HandleFunc("/recent", r.resources.Reports.RecentReports).Methods(http.MethodGet)

	// Alerts
	alerts := protected.PathPrefix("/alerts").Subrouter()
	alerts.HandleFunc("/current", r.resources.Alerts.CurrentAlert).Methods(http.MethodGet)
	alerts.HandleFunc("/escalate", r.resources.Alerts.EscalateAlert).Methods(http.MethodPost)
	alerts.HandleFunc("/recent", r.resources.Alerts.RecentAlerts).Methods(http.MethodGet)
	alerts.HandleFunc("/stream", r.resources.Alerts.StreamAlerts).Methods(http.MethodGet)

	// Me
	me := protected.PathPrefix("/me").Subrouter()
	me.HandleFunc("", r.resources.Users.GetProfile).Methods(http.MethodGet)
	me.HandleFunc("/stats", r.resources.Users.GetStats).Methods(http.MethodGet)
	me.HandleFunc("/points-history", r.resources.Users.GetPointsHistory).Methods(http.MethodGet)
	me.HandleFunc("/achievements", r.resources.Users.GetAchievements).Methods(http.MethodGet)
	me.HandleFunc("/usage", r.resources.Users.GetUsage).Methods(http.MethodGet)
	me.HandleFunc("/usage", r.resources.Users.RecordUsage).Methods(http.MethodPost)
	me.HandleFunc("/reconcile", r.resources.Users.Reconcile).Methods(http.MethodPost)

	protected.HandleFunc("/leaderboard", r.resources.Users.Leaderboard).Methods(http.MethodGet)

	// Admin
	admin := protected.PathPrefix("/users").Subrouter()
	admin.Use(middleware.RequireRoles(RoleAdmin))
	admin.HandleFunc("/{id}/usage/close", r.resources.Users.ClosePeriod).Methods(http.MethodPost)
}

// Handler wraps the router with recovery, access logging and CORS
func (r *Router) Handler() http.Handler {
	origins := r.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", middleware.DevUserHeader, middleware.DevRolesHeader}),
	)
	var h http.Handler = r.router
	h = cors(h)
	h = handlers.LoggingHandler(os.Stdout, h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return h
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

func serveSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		nuts.L.Errorf("[API] Failed to render swagger doc: %v", err)
		http.Error(w, "swagger doc unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}
