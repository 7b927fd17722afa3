package verification

import (
	"bytes"
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/ledger"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/repository/memory"
)

type stubVerifier struct {
	verdict models.Verdict
	err     error
	calls   int
}

func (v *stubVerifier) Verify(_ context.Context, _ string) (models.Verdict, error) {
	v.calls++
	return v.verdict, v.err
}

type countingObserver struct {
	mu         sync.Mutex
	outcomes   map[string]int
	duplicates int
}

func (o *countingObserver) ReportProcessed(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string]int)
	}
	o.outcomes[outcome]++
}

func (o *countingObserver) DuplicateImage(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.duplicates++
}

type pipelineFixture struct {
	images   *memory.ImageStore
	verifier *stubVerifier
	reports  *memory.LeakReportRepository
	stats    *memory.LedgerRepository
	observer *countingObserver
	pipeline *Pipeline
}

func newPipelineFixture(verdict models.Verdict) *pipelineFixture {
	f := &pipelineFixture{
		images:   memory.NewImageStore(),
		verifier: &stubVerifier{verdict: verdict},
		reports:  memory.NewLeakReportRepository(),
		observer: &countingObserver{},
	}
	f.stats = memory.NewLedgerRepository(f.reports)
	l := ledger.New(f.stats, memory.NewAchievementRepository(memory.DefaultCatalog()), memory.NewUsageBalanceRepository(), nil)
	f.pipeline = NewPipeline(f.images, f.verifier, f.reports, l, f.observer)
	return f
}

func image(content string) *models.ImageFile {
	return &models.ImageFile{
		Name:     "leak.jpg",
		MimeType: "image/jpeg",
		Size:     int64(len(content)),
		Content:  bytes.NewReader([]byte(content)),
	}
}

var leakVerdict = models.Verdict{IsLeakage: true, Confidence: 0.9, Description: "water dripping from pipe"}

func TestSubmitReportAccepted(t *testing.T) {
	f := newPipelineFixture(leakVerdict)

	out, err := f.pipeline.SubmitReport(context.Background(), "u1", image("jpeg-bytes"))
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	if !out.Accepted() || out.Rejection != nil {
		t.Fatalf("expected accepted outcome, got %+v", out)
	}
	if out.Report.Status != models.ReportVerified || out.Report.PointsAwarded != ledger.PointsForLeakage {
		t.Fatalf("unexpected report %+v", out.Report)
	}
	if out.Stats.Points != 50 || out.Stats.TotalLeakagesReported != 1 {
		t.Fatalf("unexpected stats %+v", out.Stats)
	}
	if len(out.Unlocked) != 1 || out.Unlocked[0].ID != "ach_first_drop" {
		t.Fatalf("expected first achievement, got %+v", out.Unlocked)
	}
	if f.images.Count() != 1 || f.verifier.calls != 1 {
		t.Fatalf("expected one upload and one verdict, got %d/%d", f.images.Count(), f.verifier.calls)
	}
	if f.observer.outcomes[OutcomeVerified] != 1 {
		t.Fatalf("observer not told: %+v", f.observer.outcomes)
	}
}

func TestSubmitReportRejectedByPolicy(t *testing.T) {
	f := newPipelineFixture(models.Verdict{IsLeakage: true, Confidence: 0.7, Description: "maybe a stain"})

	out, err := f.pipeline.SubmitReport(context.Background(), "u1", image("jpeg-bytes"))
	if err != nil {
		t.Fatalf("rejection is not an error: %v", err)
	}
	if out.Accepted() || out.Rejection == nil || out.Rejection.Reason != "maybe a stain" {
		t.Fatalf("expected rejection with reason, got %+v", out)
	}
	reports, _ := f.reports.ListByUser(context.Background(), "u1", 0, 10)
	if len(reports) != 0 {
		t.Fatal("no report may be stored on rejection")
	}
	stats, _ := f.stats.GetStats(context.Background(), "u1")
	if stats.Points != 0 {
		t.Fatal("no points on rejection")
	}
}

func TestSubmitReportValidationBeforeIO(t *testing.T) {
	cases := []struct {
		name string
		file *models.ImageFile
	}{
		{"oversized", &models.ImageFile{Name: "big.jpg", MimeType: "image/jpeg", Size: 6 << 20, Content: bytes.NewReader(nil)}},
		{"not an image", &models.ImageFile{Name: "doc.pdf", MimeType: "application/pdf", Size: 10, Content: bytes.NewReader([]byte("x"))}},
		{"missing", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newPipelineFixture(leakVerdict)
			_, err := f.pipeline.SubmitReport(context.Background(), "u1", tc.file)
			if !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if f.images.Count() != 0 || f.verifier.calls != 0 {
				t.Fatalf("no I/O allowed on invalid input, got %d uploads, %d verdicts", f.images.Count(), f.verifier.calls)
			}
		})
	}
}

func TestSubmitReportUnderstatedSizeIsCaught(t *testing.T) {
	f := newPipelineFixture(leakVerdict)
	big := bytes.Repeat([]byte("x"), int(MaxImageBytes)+10)
	file := &models.ImageFile{Name: "lie.jpg", MimeType: "image/jpeg", Size: 100, Content: bytes.NewReader(big)}

	if _, err := f.pipeline.SubmitReport(context.Background(), "u1", file); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.images.Count() != 0 {
		t.Fatal("oversized content must not be uploaded")
	}
}

func TestSubmitReportUploadFailure(t *testing.T) {
	f := newPipelineFixture(leakVerdict)
	f.images.Fail("Upload", stderrors.New("bucket unavailable"))

	_, err := f.pipeline.SubmitReport(context.Background(), "u1", image("jpeg-bytes"))
	if !errors.IsUpload(err) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if f.verifier.calls != 0 {
		t.Fatal("verdict must not be requested after a failed upload")
	}
}

func TestSubmitReportVerificationFailure(t *testing.T) {
	f := newPipelineFixture(leakVerdict)
	f.verifier.err = errors.NewVerificationServiceError("timeout", 504, nil)

	_, err := f.pipeline.SubmitReport(context.Background(), "u1", image("jpeg-bytes"))
	if !errors.IsVerificationService(err) {
		t.Fatalf("expected verification service error, got %v", err)
	}
	reports, _ := f.reports.ListByUser(context.Background(), "u1", 0, 10)
	if len(reports) != 0 {
		t.Fatal("no report may exist after a failed verification")
	}
}

func TestSubmitReportCancelledLeavesNoReport(t *testing.T) {
	f := newPipelineFixture(leakVerdict)
	ctx, cancel := context.WithCancel(context.Background())
	f.pipeline.verifier = verifierFunc(func(context.Context, string) (models.Verdict, error) {
		cancel()
		return leakVerdict, nil
	})

	_, err := f.pipeline.SubmitReport(ctx, "u1", image("jpeg-bytes"))
	if !errors.IsCancelled(err) || !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled error wrapping context.Canceled, got %v", err)
	}
	if f.observer.outcomes[OutcomeCancelled] != 1 {
		t.Fatalf("observer not told: %+v", f.observer.outcomes)
	}
	reports, _ := f.reports.ListByUser(context.Background(), "u1", 0, 10)
	if len(reports) != 0 {
		t.Fatal("cancelled submission left a report")
	}
}

type verifierFunc func(ctx context.Context, imageURL string) (models.Verdict, error)

func (fn verifierFunc) Verify(ctx context.Context, imageURL string) (models.Verdict, error) {
	return fn(ctx, imageURL)
}

func TestSubmitReportDuplicateImageStillRewarded(t *testing.T) {
	f := newPipelineFixture(leakVerdict)
	ctx := context.Background()

	if _, err := f.pipeline.SubmitReport(ctx, "u1", image("same-bytes")); err != nil {
		t.Fatal(err)
	}
	out, err := f.pipeline.SubmitReport(ctx, "u1", image("same-bytes"))
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	if !out.Duplicate || f.observer.duplicates != 1 {
		t.Fatalf("duplicate not flagged: %+v", out)
	}
	if out.Stats.Points != 100 {
		t.Fatalf("duplicate images are still rewarded, got %d points", out.Stats.Points)
	}
}

func TestSubmitReportHistoryFailureSurfacesInconsistency(t *testing.T) {
	f := newPipelineFixture(leakVerdict)
	f.stats.Fail("AppendHistory", stderrors.New("write timeout"))

	out, err := f.pipeline.SubmitReport(context.Background(), "u1", image("jpeg-bytes"))
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	if len(out.Inconsistencies) != 1 || !errors.IsLedgerInconsistency(out.Inconsistencies[0]) {
		t.Fatalf("expected one inconsistency, got %v", out.Inconsistencies)
	}
	if out.Stats.Points != 50 {
		t.Fatalf("points must stand, got %d", out.Stats.Points)
	}
}

func TestSubmitReportStatsFailureStoresNoReport(t *testing.T) {
	f := newPipelineFixture(leakVerdict)
	ctx := context.Background()
	f.stats.Fail("IncrementStats", stderrors.New("connection reset"))

	if _, err := f.pipeline.SubmitReport(ctx, "u1", image("jpeg-bytes")); err == nil {
		t.Fatal("expected error when stats cannot be credited")
	}
	reports, _ := f.reports.ListByUser(ctx, "u1", 0, 10)
	if len(reports) != 0 {
		t.Fatalf("a failed credit must not leave a verified report, got %d", len(reports))
	}
	stats, _ := f.stats.GetStats(ctx, "u1")
	if stats.Points != 0 || stats.TotalLeakagesReported != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	f.stats.Fail("IncrementStats", nil)
	out, err := f.pipeline.SubmitReport(ctx, "u1", image("jpeg-bytes"))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if out.Duplicate {
		t.Fatal("a retry after a failed credit is not a duplicate image")
	}
	reports, _ = f.reports.ListByUser(ctx, "u1", 0, 10)
	stats, _ = f.stats.GetStats(ctx, "u1")
	if int64(len(reports)) != stats.TotalLeakagesReported || stats.TotalLeakagesReported != 1 || stats.Points != 50 {
		t.Fatalf("reports (%d) and stats %+v diverge", len(reports), stats)
	}
}

func TestSubmitReportReportWriteFailureCreditsNothing(t *testing.T) {
	f := newPipelineFixture(leakVerdict)
	ctx := context.Background()
	f.reports.Fail("Create", stderrors.New("disk full"))

	if _, err := f.pipeline.SubmitReport(ctx, "u1", image("jpeg-bytes")); err == nil {
		t.Fatal("expected error when the report cannot be stored")
	}
	stats, _ := f.stats.GetStats(ctx, "u1")
	if stats.Points != 0 || stats.TotalLeakagesReported != 0 {
		t.Fatalf("no credit without a stored report, got %+v", stats)
	}
	if f.observer.outcomes[OutcomeFailed] != 1 {
		t.Fatalf("observer not told: %+v", f.observer.outcomes)
	}
}
