// FilePath: api/resources/api.resource.reports.go
package resources

import (
	"net/http"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/leakservice"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/verification"
	nuts "github.com/vaudience/go-nuts"
)

// multipart overhead allowed on top of the image itself
const formOverhead = 1 << 20

// ReportHandlers encapsulates the leak report HTTP handlers
type ReportHandlers struct {
	leakservice *leakservice.LeakService
}

// @Summary Submit a leak photo
// @Description Upload a photo of a suspected leak. Verified leaks earn points.
// @Tags reports
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Leak photo (image/*, max 5 MB)"
// @Success 201 {object} verification.Outcome "verified report"
// @Success 200 {object} verification.Outcome "rejected by the acceptance policy"
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 502 {object} errors.APIError
// @Router /reports [post]
// @Security BearerAuth
func (h *ReportHandlers) SubmitReport(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, verification.MaxImageBytes+formOverhead)
	if err := r.ParseMultipartForm(verification.MaxImageBytes); err != nil {
		respondWithError(w, errors.NewValidationError("image must be 5 MB or smaller", err), requestID)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, errors.NewValidationError("missing image upload", err), requestID)
		return
	}
	defer file.Close()

	outcome, err := h.leakservice.SubmitReport(r.Context(), user.ID, &models.ImageFile{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	if outcome.Accepted() {
		respondWithJSON(w, http.StatusCreated, outcome)
		return
	}
	respondWithJSON(w, http.StatusOK, outcome)
}

// @Summary List own reports
// @Description Get a paginated list of the caller's verified reports
// @Tags reports
// @Produce json
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Success 200 {array} models.LeakReport
// @Router /reports [get]
// @Security BearerAuth
func (h *ReportHandlers) ListReports(w http.ResponseWriter, r *http.Request) {
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

	reports, err := h.leakservice.ListReports(r.Context(), user.ID, q)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, reports)
}

// @Summary Community feed
// @Description Recently verified leaks. Reporter and photo are only visible to the owner and admins.
// @Tags reports
// @Produce json
// @Param limit query int false "Number of reports (default 20, max 100)"
// @Success 200 {array} models.LeakReport
// @Router /reports/recent [get]
// @Security BearerAuth
func (h *ReportHandlers) RecentReports(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	var q limitQuery
	if err := decodeQuery(&q, r); err != nil {
		respondWithError(w, err, requestID)
		return
	}

	reports, err := h.leakservice.RecentLeaks(r.Context(), user.ID, user.Roles, q.Limit)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, reports)
}
