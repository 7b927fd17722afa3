// FilePath: api/resources/api.resource.users.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/leakservice"
	"github.com/hydrozen/leakwatch/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// UserHandlers encapsulates the ledger HTTP handlers of the caller
type UserHandlers struct {
	leakservice *leakservice.LeakService
}

// @Summary Own profile
// @Description Stats, earned achievements and the open usage period
// @Tags me
// @Produce json
// @Success 200 {object} leakservice.Profile
// @Router /me [get]
// @Security BearerAuth
func (h *UserHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	profile, err := h.leakservice.Profile(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

// @Summary Own stats
// @Tags me
// @Produce json
// @Success 200 {object} models.UserStats
// @Router /me/stats [get]
// @Security BearerAuth
func (h *UserHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	stats, err := h.leakservice.Stats(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// @Summary Own points history
// @Tags me
// @Produce json
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Success 200 {array} models.PointsHistoryEntry
// @Router /me/points-history [get]
// @Security BearerAuth
func (h *UserHandlers) GetPointsHistory(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	var q models.PageQuery
	if err := decodeQuery(&q, r); err != nil {
		respondWithError(w, err, requestID)
		return
	}
	history, err := h.leakservice.PointsHistory(r.Context(), user.ID, q)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, history)
}

// @Summary Own achievements
// @Tags me
// @Produce json
// @Success 200 {array} models.EarnedAchievement
// @Router /me/achievements [get]
// @Security BearerAuth
func (h *UserHandlers) GetAchievements(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	earned, err := h.leakservice.Achievements(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, earned)
}

// @Summary Record daily usage
// @Description Apply one day of water consumption against the rolling average
// @Tags me
// @Accept json
// @Produce json
// @Param usage body models.UsageQuery true "Daily consumption in litres"
// @Success 200 {object} ledger.UsageResult
// @Failure 400 {object} errors.APIError
// @Router /me/usage [post]
// @Security BearerAuth
func (h *UserHandlers) RecordUsage(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	var q models.UsageQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err), requestID)
		return
	}
	result, err := h.leakservice.RecordUsage(r.Context(), user.ID, q)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// @Summary Open usage period
// @Tags me
// @Produce json
// @Success 200 {object} models.UsageBalance
// @Router /me/usage [get]
// @Security BearerAuth
func (h *UserHandlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	balance, err := h.leakservice.UsageBalance(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, balance)
}

// @Summary Reconcile own ledger
// @Description Repair drift between the points balance and the points history
// @Tags me
// @Produce json
// @Success 200 {object} ledger.ReconcileResult
// @Router /me/reconcile [post]
// @Security BearerAuth
func (h *UserHandlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	result, err := h.leakservice.Reconcile(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// @Summary Leaderboard
// @Tags users
// @Produce json
// @Param limit query int false "Number of users (default 10, max 100)"
// @Success 200 {array} models.LeaderboardEntry
// @Router /leaderboard [get]
// @Security BearerAuth
func (h *UserHandlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	var q limitQuery
	if err := decodeQuery(&q, r); err != nil {
		respondWithError(w, err, requestID)
		return
	}
	top, err := h.leakservice.Leaderboard(r.Context(), q.Limit)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, top)
}

// @Summary Close a usage period
// @Description Billing rollover: returns the closed balance and starts a new period
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.UsageBalance
// @Failure 403 {object} errors.APIError
// @Router /users/{id}/usage/close [post]
// @Security BearerAuth
func (h *UserHandlers) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	closed, err := h.leakservice.ClosePeriod(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, closed)
}
