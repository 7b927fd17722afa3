package leakservice

import (
	"bytes"
	"context"
	"testing"

	"github.com/hydrozen/leakwatch/internal/anomaly"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/events"
	"github.com/hydrozen/leakwatch/internal/ledger"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/notify"
	"github.com/hydrozen/leakwatch/internal/repository/memory"
	"github.com/hydrozen/leakwatch/internal/verification"
)

type fixedVerifier struct{ verdict models.Verdict }

func (v fixedVerifier) Verify(context.Context, string) (models.Verdict, error) {
	return v.verdict, nil
}

type fixture struct {
	svc       *LeakService
	snapshots *memory.SnapshotStore
	alerts    *memory.AlertRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := events.NewBus()
	reports := memory.NewLeakReportRepository()
	alerts := memory.NewAlertRepository()
	snapshots := memory.NewSnapshotStore()
	l := ledger.New(memory.NewLedgerRepository(reports), memory.NewAchievementRepository(memory.DefaultCatalog()), memory.NewUsageBalanceRepository(), bus)
	pipeline := verification.NewPipeline(memory.NewImageStore(), fixedVerifier{models.Verdict{IsLeakage: true, Confidence: 0.95, Description: "water leak under sink"}}, reports, l, bus)
	monitor := anomaly.NewMonitor(snapshots, anomaly.NewClassifier(models.VariantHumidityPressure, map[string]string{"node1": "Kitchen"}), "node1", "node2", anomaly.MonitorOptions{})

	svc := New(Components{
		Reports:   reports,
		Alerts:    alerts,
		Pipeline:  pipeline,
		Ledger:    l,
		Monitor:   monitor,
		Escalator: anomaly.NewEscalator(notify.LogNotifier{}, alerts),
		Events:    bus,
		Health:    map[string]Pinger{},
	})
	if err := svc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &fixture{svc: svc, snapshots: snapshots, alerts: alerts}
}

func jpeg() *models.ImageFile {
	data := []byte("fake-jpeg")
	return &models.ImageFile{Name: "leak.jpg", MimeType: "image/jpeg", Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func TestValidateMissingComponent(t *testing.T) {
	if err := New(Components{}).Validate(); err == nil {
		t.Fatal("expected missing component error")
	}
}

func TestSubmitReportAndProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SubmitReport(ctx, "", jpeg()); errors.TypeOf(err) != errors.ErrorTypeAuth {
		t.Fatalf("expected auth error, got %v", err)
	}

	outcome, err := f.svc.SubmitReport(ctx, "usr_1", jpeg())
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	if !outcome.Accepted() {
		t.Fatalf("expected accepted outcome, got %+v", outcome)
	}

	p, err := f.svc.Profile(ctx, "usr_1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Stats.Points != ledger.PointsForLeakage || p.Stats.TotalLeakagesReported != 1 {
		t.Errorf("stats = %+v", p.Stats)
	}
	if len(p.Achievements) != 1 || p.Achievements[0].AchievementID != "ach_first_drop" {
		t.Errorf("achievements = %+v", p.Achievements)
	}
	if p.Next == nil || p.Next.ID != "ach_water_guardian" || p.Next.Progress != 0.2 {
		t.Errorf("next achievement = %+v", p.Next)
	}

	reports, err := f.svc.ListReports(ctx, "usr_1", models.PageQuery{})
	if err != nil || len(reports) != 1 {
		t.Fatalf("ListReports = %v, %v", reports, err)
	}

	recent, err := f.svc.RecentLeaks(ctx, "usr_2", nil, 0)
	if err != nil {
		t.Fatalf("RecentLeaks: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != reports[0].ID {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestPublicReportHidesReporter(t *testing.T) {
	r := publicReport(&models.LeakReport{ID: "rpt_1", UserID: "usr_1", ImageURL: "http://x/y.jpg", Status: models.ReportVerified})
	if r.UserID != "" || r.ImageURL != "" || r.ID != "rpt_1" || r.Status != models.ReportVerified {
		t.Errorf("publicReport = %+v", r)
	}
}

func TestViewerRolesAddsOwner(t *testing.T) {
	report := &models.LeakReport{UserID: "usr_1"}
	if roles := viewerRoles(report, "usr_1", []string{"user"}); len(roles) != 2 || roles[1] != RoleOwner {
		t.Errorf("roles = %v", roles)
	}
	if roles := viewerRoles(report, "usr_2", []string{"user"}); len(roles) != 1 {
		t.Errorf("roles = %v", roles)
	}
}

func TestEscalateCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.EscalateCurrent(ctx); !errors.IsValidation(err) {
		t.Fatalf("expected validation error without alert, got %v", err)
	}

	f.snapshots.Set(&models.SensorSnapshot{NodeID: "node1", Humidity: 80, Pressure: 1000})
	f.snapshots.Set(&models.SensorSnapshot{NodeID: "node2", Humidity: 50, Pressure: 1000})
	state, err := f.svc.RefreshAlert(ctx)
	if err != nil {
		t.Fatalf("RefreshAlert: %v", err)
	}
	if state.Alert == nil || state.Alert.Severity != models.SeverityHigh {
		t.Fatalf("state = %+v", state)
	}

	alert, err := f.svc.EscalateCurrent(ctx)
	if err != nil {
		t.Fatalf("EscalateCurrent: %v", err)
	}
	if alert.Status != models.AlertPending || alert.LocationLabel != "Kitchen" {
		t.Errorf("alert = %+v", alert)
	}
	stored, err := f.svc.RecentAlerts(ctx, 0)
	if err != nil || len(stored) != 1 {
		t.Fatalf("RecentAlerts = %v, %v", stored, err)
	}
}

func TestUsageAndClosePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RecordUsage(ctx, "usr_1", models.UsageQuery{CurrentDaily: 350, AverageDaily: 300})
	if err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if !res.Delta.Penalty.Equal(res.Balance.MonthlyPenalties) || res.Delta.Penalty.IsZero() {
		t.Errorf("usage result = %+v", res)
	}

	if _, err := f.svc.ClosePeriod(ctx, ""); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	closed, err := f.svc.ClosePeriod(ctx, "usr_1")
	if err != nil {
		t.Fatalf("ClosePeriod: %v", err)
	}
	if closed.MonthlyPenalties.IsZero() {
		t.Errorf("closed balance lost penalties: %+v", closed)
	}
	open, err := f.svc.UsageBalance(ctx, "usr_1")
	if err != nil || !open.MonthlyPenalties.IsZero() {
		t.Errorf("open balance = %+v, %v", open, err)
	}
}
