// FilePath: internal/verification/pipeline.go

// Package verification turns an uploaded photo into a verified leak report.
package verification

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/ledger"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Acceptance policy
const (
	MaxImageBytes       int64 = 5 << 20
	AcceptanceThreshold       = 0.7
)

// Verifier is the image verdict collaborator.
type Verifier interface {
	Verify(ctx context.Context, imageURL string) (models.Verdict, error)
}

// Rewarder credits a verified report to its author.
type Rewarder interface {
	ApplyLeakReward(ctx context.Context, userID string, report *models.LeakReport) (*ledger.RewardResult, error)
}

// Outcome is the result of one submission. Exactly one of Report and
// Rejection is set.
type Outcome struct {
	Report          *models.LeakReport   `json:"report,omitempty"`
	Rejection       *models.Rejection    `json:"rejection,omitempty"`
	Stats           *models.UserStats    `json:"stats,omitempty"`
	Unlocked        []models.Achievement `json:"unlocked_achievements,omitempty"`
	Duplicate       bool                 `json:"duplicate_image,omitempty"`
	Inconsistencies []error              `json:"-"`
}

// Accepted reports whether the submission produced a verified report.
func (o *Outcome) Accepted() bool {
	return o.Report != nil
}

// Observer receives pipeline outcomes.
type Observer interface {
	ReportProcessed(outcome string)
	DuplicateImage(userID, sha string)
}

// Pipeline outcomes reported to the observer
const (
	OutcomeVerified  = "verified"
	OutcomeRejected  = "rejected"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Pipeline runs validation, upload, verdict, policy and reward strictly in
// sequence.
type Pipeline struct {
	images   repository.ImageStore
	verifier Verifier
	reports  repository.LeakReportRepository
	rewarder Rewarder
	observer Observer
	now      func() time.Time
}

// NewPipeline creates a Pipeline. observer may be nil.
func NewPipeline(images repository.ImageStore, verifier Verifier, reports repository.LeakReportRepository, rewarder Rewarder, observer Observer) *Pipeline {
	return &Pipeline{
		images:   images,
		verifier: verifier,
		reports:  reports,
		rewarder: rewarder,
		observer: observer,
		now:      time.Now,
	}
}

// ValidateImage checks the declared type and size of file. It performs no I/O.
func ValidateImage(file *models.ImageFile) error {
	if file == nil || file.Content == nil {
		return errors.NewValidationError("an image file is required", nil)
	}
	if !strings.HasPrefix(strings.ToLower(file.MimeType), "image/") {
		return errors.NewValidationError(fmt.Sprintf("invalid file type %q, an image is required", file.MimeType), nil)
	}
	if file.Size <= 0 {
		return errors.NewValidationError("image file is empty", nil)
	}
	if file.Size > MaxImageBytes {
		return errors.NewValidationError(fmt.Sprintf("image is %d bytes, the limit is 5MB", file.Size), nil).
			WithDetails(map[string]int64{"size": file.Size, "max_size": MaxImageBytes})
	}
	return nil
}

// Accept is the acceptance policy.
func Accept(v models.Verdict) bool {
	return v.IsLeakage && v.Confidence > AcceptanceThreshold
}

// SubmitReport validates, stores and verifies an image and, when the verdict
// passes the policy, records a verified report and rewards userID.
//
// A rejected image is not an error: the outcome carries a Rejection. The
// verified report and the stats increment commit together or not at all. A
// context cancelled before that write leaves no report behind.
func (p *Pipeline) SubmitReport(ctx context.Context, userID string, file *models.ImageFile) (*Outcome, error) {
	if userID == "" {
		p.report(OutcomeInvalid)
		return nil, errors.NewValidationError("user id is required", nil)
	}
	if err := ValidateImage(file); err != nil {
		p.report(OutcomeInvalid)
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(file.Content, MaxImageBytes+1))
	if err != nil {
		p.report(OutcomeFailed)
		return nil, errors.NewValidationError("failed to read image", err)
	}
	if int64(len(data)) > MaxImageBytes {
		p.report(OutcomeInvalid)
		return nil, errors.NewValidationError("image exceeds the 5MB limit", nil)
	}
	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	imageURL, err := p.images.Upload(ctx, objectName(userID, file.Name, p.now()), file.MimeType, bytes.NewReader(data))
	if err != nil {
		p.report(p.failure(ctx))
		nuts.L.Errorf("[Pipeline] Upload failed for user %s: %v", userID, err)
		return nil, errors.NewUploadError("failed to upload image", err)
	}

	verdict, err := p.verifier.Verify(ctx, imageURL)
	if err != nil {
		p.report(p.failure(ctx))
		nuts.L.Errorf("[Pipeline] Verification failed for user %s: %v", userID, err)
		if errors.IsVerificationService(err) {
			return nil, err
		}
		return nil, errors.NewVerificationServiceError("image verification failed", 0, err)
	}

	if !Accept(verdict) {
		p.report(OutcomeRejected)
		nuts.L.Infof("[Pipeline] Image from user %s rejected (leak=%t, confidence=%.2f)", userID, verdict.IsLeakage, verdict.Confidence)
		return &Outcome{Rejection: &models.Rejection{Reason: verdict.Description, Verdict: verdict}}, nil
	}

	if err := ctx.Err(); err != nil {
		p.report(OutcomeCancelled)
		return nil, errors.NewCancelledError("submission cancelled before the report was stored", err)
	}

	outcome := &Outcome{}
	if n, err := p.reports.CountVerifiedByImageHash(ctx, sha); err != nil {
		nuts.L.Warnf("[Pipeline] Could not check image hash for duplicates: %v", err)
	} else if n > 0 {
		outcome.Duplicate = true
		nuts.L.Warnf("[Pipeline] User %s submitted an image already verified %d time(s) (sha256 %s)", userID, n, sha)
		if p.observer != nil {
			p.observer.DuplicateImage(userID, sha)
		}
	}

	report := &models.LeakReport{
		ID:                      nuts.NID("lr", 12),
		UserID:                  userID,
		ImageURL:                imageURL,
		ImageSHA256:             sha,
		Status:                  models.ReportVerified,
		VerificationConfidence:  verdict.Confidence,
		VerificationDescription: verdict.Description,
		PointsAwarded:           ledger.PointsForLeakage,
		CreatedAt:               p.now(),
	}
	// report and stats are written in one transaction; once it starts the
	// write runs to completion
	reward, err := p.rewarder.ApplyLeakReward(context.WithoutCancel(ctx), userID, report)
	if err != nil {
		p.report(OutcomeFailed)
		nuts.L.Errorf("[Pipeline] Failed to record verified report for user %s: %v", userID, err)
		return nil, err
	}
	outcome.Report = report
	outcome.Stats = reward.Stats
	outcome.Unlocked = reward.Unlocked
	outcome.Inconsistencies = reward.Inconsistencies

	p.report(OutcomeVerified)
	nuts.L.Infof("[Pipeline] Verified leak report %s for user %s (confidence %.2f)", report.ID, userID, verdict.Confidence)
	return outcome, nil
}

func (p *Pipeline) failure(ctx context.Context) string {
	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	return OutcomeFailed
}

func (p *Pipeline) report(outcome string) {
	if p.observer != nil {
		p.observer.ReportProcessed(outcome)
	}
}

func objectName(userID, name string, now time.Time) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" || len(ext) > 5 {
		ext = ".img"
	}
	return fmt.Sprintf("leakage-reports/%s/%d%s", userID, now.UnixMilli(), ext)
}
