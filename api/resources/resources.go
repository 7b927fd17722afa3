// FilePath: api/resources/resources.go
package resources

import (
	"net/http"

	"github.com/hydrozen/leakwatch/internal/leakservice"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Reports     *ReportHandlers
	Alerts      *AlertHandlers
	Users       *UserHandlers
	HealthCheck func(w http.ResponseWriter, r *http.Request)
}

// NewResources creates a new Resources instance
func NewResources(svc *leakservice.LeakService, allowedOrigins []string) *Resources {
	res := &Resources{
		Reports: &ReportHandlers{leakservice: svc},
		Alerts:  NewAlertHandlers(svc, allowedOrigins),
		Users:   &UserHandlers{leakservice: svc},
	}
	res.HealthCheck = healthCheck(svc)
	return res
}

// @Summary Health check
// @Description Reports the service version and the status of every backing store
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func healthCheck(svc *leakservice.LeakService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		deps := svc.Health(r.Context())
		status, code := "ok", http.StatusOK
		for _, s := range deps {
			if s != "ok" {
				status, code = "degraded", http.StatusServiceUnavailable
				break
			}
		}
		respondWithJSON(w, code, map[string]interface{}{
			"status":       status,
			"version":      versionString(),
			"dependencies": deps,
		})
	}
}
