package leakservice

import (
	"context"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/verification"
	"github.com/itsatony/struccy"
	nuts "github.com/vaudience/go-nuts"
)

// Roles used for field level read access on reports
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

const defaultRecentLimit = 20

// SubmitReport runs the verification pipeline for one uploaded image
func (s *LeakService) SubmitReport(ctx context.Context, userID string, file *models.ImageFile) (*verification.Outcome, error) {
	if userID == "" {
		return nil, errors.NewAuthError("user not authenticated", nil)
	}
	return s.Pipeline.SubmitReport(ctx, userID, file)
}

// ListReports returns the reports of userID, newest first
func (s *LeakService) ListReports(ctx context.Context, userID string, q models.PageQuery) ([]*models.LeakReport, error) {
	q.Normalize()
	reports, err := s.Reports.ListByUser(ctx, userID, q.Offset, q.Limit)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list reports", err)
	}
	return reports, nil
}

// RecentLeaks is the community feed of verified reports. Fields are filtered
// by read access: other users' reports hide the reporter and the photo.
func (s *LeakService) RecentLeaks(ctx context.Context, viewerID string, roles []string, limit int) ([]*models.LeakReport, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultRecentLimit
	}
	reports, err := s.Reports.ListRecent(ctx, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list recent reports", err)
	}

	filtered := make([]*models.LeakReport, 0, len(reports))
	for _, report := range reports {
		filtered = append(filtered, filterReport(report, viewerRoles(report, viewerID, roles)))
	}
	return filtered, nil
}

func viewerRoles(report *models.LeakReport, viewerID string, roles []string) []string {
	out := append([]string{}, roles...)
	if viewerID != "" && report.UserID == viewerID {
		out = append(out, RoleOwner)
	}
	return out
}

func filterReport(report *models.LeakReport, roles []string) *models.LeakReport {
	filteredMap, err := struccy.StructToMapFieldsWithReadXS(report, roles)
	if err == nil {
		filtered := &models.LeakReport{}
		if _, err = struccy.MergeMapStringFieldsToStruct(filtered, filteredMap, roles); err == nil {
			return filtered
		}
	}
	nuts.L.Warnf("[LeakService] Failed to filter report %s, returning public fields: %v", report.ID, err)
	return publicReport(report)
}

// publicReport keeps only the fields readable by everyone
func publicReport(r *models.LeakReport) *models.LeakReport {
	return &models.LeakReport{
		ID:                      r.ID,
		Status:                  r.Status,
		VerificationConfidence:  r.VerificationConfidence,
		VerificationDescription: r.VerificationDescription,
		PointsAwarded:           r.PointsAwarded,
		CreatedAt:               r.CreatedAt,
	}
}
