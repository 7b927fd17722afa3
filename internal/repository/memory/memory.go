// FilePath: internal/repository/memory/memory.go

// Package memory provides in-process implementations of the repository
// interfaces. It backs the "memory" database driver for local development and
// is used as the fake store in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/repository"
	"github.com/shopspring/decimal"
	nuts "github.com/vaudience/go-nuts"
)

// Failures lets tests force an error out of a single operation. The key is
// the operation name, e.g. "AppendHistory".
type Failures struct {
	mu  sync.Mutex
	set map[string]error
}

// Fail makes every call of op return err until cleared with a nil err.
func (f *Failures) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set == nil {
		f.set = make(map[string]error)
	}
	if err == nil {
		delete(f.set, op)
		return
	}
	f.set[op] = err
}

func (f *Failures) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set[op]
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// LeakReportRepository

type LeakReportRepository struct {
	Failures
	mu      sync.RWMutex
	reports []*models.LeakReport
}

func NewLeakReportRepository() *LeakReportRepository {
	return &LeakReportRepository{}
}

var _ repository.LeakReportRepository = (*LeakReportRepository)(nil)

func (r *LeakReportRepository) Create(ctx context.Context, report *models.LeakReport) error {
	if err := r.check("Create"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existsLocked(report.ID) {
		return errors.NewDuplicateError("leak report already exists", nil)
	}
	r.insertLocked(report)
	return nil
}

func (r *LeakReportRepository) existsLocked(id string) bool {
	for _, existing := range r.reports {
		if existing.ID == id {
			return true
		}
	}
	return false
}

func (r *LeakReportRepository) insertLocked(report *models.LeakReport) {
	stored := *report
	r.reports = append(r.reports, &stored)
}

func (r *LeakReportRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*models.LeakReport, error) {
	if err := r.check("ListByUser"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.LeakReport
	for i := len(r.reports) - 1; i >= 0; i-- {
		if r.reports[i].UserID == userID {
			cp := *r.reports[i]
			out = append(out, &cp)
		}
	}
	return page(out, offset, limit), nil
}

func (r *LeakReportRepository) ListRecent(ctx context.Context, limit int) ([]*models.LeakReport, error) {
	if err := r.check("ListRecent"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.LeakReport
	for i := len(r.reports) - 1; i >= 0; i-- {
		if r.reports[i].Status == models.ReportVerified {
			cp := *r.reports[i]
			out = append(out, &cp)
		}
	}
	return page(out, 0, limit), nil
}

func (r *LeakReportRepository) CountVerifiedByImageHash(ctx context.Context, sha256 string) (int64, error) {
	if err := r.check("CountVerifiedByImageHash"); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, rep := range r.reports {
		if rep.ImageSHA256 == sha256 && rep.Status == models.ReportVerified {
			n++
		}
	}
	return n, nil
}

// LedgerRepository

// LedgerRepository keeps stats and history. Verified reports are written into
// reports together with the stats increment.
type LedgerRepository struct {
	Failures
	mu      sync.Mutex
	reports *LeakReportRepository
	stats   map[string]*models.UserStats
	history []*models.PointsHistoryEntry
	now     func() time.Time
}

// NewLedgerRepository creates a ledger that records verified reports into
// reports. A nil reports gets a private repository.
func NewLedgerRepository(reports *LeakReportRepository) *LedgerRepository {
	if reports == nil {
		reports = NewLeakReportRepository()
	}
	return &LedgerRepository{
		reports: reports,
		stats:   make(map[string]*models.UserStats),
		now:     time.Now,
	}
}

var _ repository.LedgerRepository = (*LedgerRepository)(nil)

func (r *LedgerRepository) IncrementStats(ctx context.Context, userID string, points, leakages int64) (*models.UserStats, error) {
	if err := r.check("IncrementStats"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.incrementLocked(userID, points, leakages), nil
}

// RecordVerifiedReport fails before touching either store, so a failure
// leaves neither the report nor the increment behind. Failures injected on
// "IncrementStats" or on the report repository's "Create" apply here too.
func (r *LedgerRepository) RecordVerifiedReport(ctx context.Context, report *models.LeakReport, points, leakages int64) (*models.UserStats, error) {
	for _, op := range []string{"RecordVerifiedReport", "IncrementStats"} {
		if err := r.check(op); err != nil {
			return nil, err
		}
	}
	if err := r.reports.check("Create"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports.mu.Lock()
	defer r.reports.mu.Unlock()
	if r.reports.existsLocked(report.ID) {
		return nil, errors.NewDuplicateError("leak report already exists", nil)
	}
	r.reports.insertLocked(report)
	return r.incrementLocked(report.UserID, points, leakages), nil
}

func (r *LedgerRepository) incrementLocked(userID string, points, leakages int64) *models.UserStats {
	s, ok := r.stats[userID]
	if !ok {
		s = &models.UserStats{UserID: userID}
		r.stats[userID] = s
	}
	s.Points += points
	s.TotalLeakagesReported += leakages
	s.UpdatedAt = r.now()
	cp := *s
	return &cp
}

func (r *LedgerRepository) AppendHistory(ctx context.Context, entry *models.PointsHistoryEntry) error {
	if err := r.check("AppendHistory"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *entry
	if stored.ID == "" {
		stored.ID = nuts.NID("ph", 12)
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	r.history = append(r.history, &stored)
	return nil
}

func (r *LedgerRepository) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	if err := r.check("GetStats"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[userID]
	if !ok {
		return &models.UserStats{UserID: userID}, nil
	}
	cp := *s
	return &cp, nil
}

func (r *LedgerRepository) SumHistory(ctx context.Context, userID string) (int64, error) {
	if err := r.check("SumHistory"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, h := range r.history {
		if h.UserID == userID {
			sum += h.Points
		}
	}
	return sum, nil
}

func (r *LedgerRepository) ListHistory(ctx context.Context, userID string, offset, limit int) ([]*models.PointsHistoryEntry, error) {
	if err := r.check("ListHistory"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PointsHistoryEntry
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].UserID == userID {
			cp := *r.history[i]
			out = append(out, &cp)
		}
	}
	return page(out, offset, limit), nil
}

func (r *LedgerRepository) TopUsers(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	if err := r.check("TopUsers"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	all := make([]*models.LeaderboardEntry, 0, len(r.stats))
	for _, s := range r.stats {
		all = append(all, &models.LeaderboardEntry{
			UserID:                s.UserID,
			Points:                s.Points,
			TotalLeakagesReported: s.TotalLeakagesReported,
		})
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Points != all[j].Points {
			return all[i].Points > all[j].Points
		}
		return all[i].UserID < all[j].UserID
	})
	out := page(all, 0, limit)
	for i, e := range out {
		e.Rank = i + 1
	}
	return out, nil
}

// AchievementRepository

type AchievementRepository struct {
	Failures
	mu      sync.RWMutex
	catalog []models.Achievement
	earned  []*models.UserAchievement
}

// NewAchievementRepository creates a repository seeded with catalog.
func NewAchievementRepository(catalog []models.Achievement) *AchievementRepository {
	return &AchievementRepository{catalog: catalog}
}

var _ repository.AchievementRepository = (*AchievementRepository)(nil)

// DefaultCatalog is the seed catalog used in memory mode.
func DefaultCatalog() []models.Achievement {
	return []models.Achievement{
		{ID: "ach_first_drop", Name: "First Drop", Description: "Report your first verified leak", PointsRequired: 50},
		{ID: "ach_water_guardian", Name: "Water Guardian", Description: "Collect 250 points", PointsRequired: 250},
		{ID: "ach_leak_hunter", Name: "Leak Hunter", Description: "Collect 500 points", PointsRequired: 500},
		{ID: "ach_hydro_hero", Name: "Hydro Hero", Description: "Collect 1000 points", PointsRequired: 1000},
	}
}

func (r *AchievementRepository) Catalog(ctx context.Context) ([]models.Achievement, error) {
	if err := r.check("Catalog"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Achievement, len(r.catalog))
	copy(out, r.catalog)
	return out, nil
}

func (r *AchievementRepository) EarnedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	if err := r.check("EarnedIDs"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]struct{})
	for _, ua := range r.earned {
		if ua.UserID == userID {
			out[ua.AchievementID] = struct{}{}
		}
	}
	return out, nil
}

func (r *AchievementRepository) Award(ctx context.Context, ua *models.UserAchievement) error {
	if err := r.check("Award"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.earned {
		if existing.UserID == ua.UserID && existing.AchievementID == ua.AchievementID {
			return errors.NewDuplicateError("achievement already earned", nil)
		}
	}
	stored := *ua
	r.earned = append(r.earned, &stored)
	return nil
}

func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]*models.EarnedAchievement, error) {
	if err := r.check("ListByUser"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	byID := make(map[string]models.Achievement, len(r.catalog))
	for _, a := range r.catalog {
		byID[a.ID] = a
	}
	var out []*models.EarnedAchievement
	for _, ua := range r.earned {
		if ua.UserID != userID {
			continue
		}
		a := byID[ua.AchievementID]
		out = append(out, &models.EarnedAchievement{
			UserAchievement: *ua,
			Name:            a.Name,
			Description:     a.Description,
			PointsRequired:  a.PointsRequired,
		})
	}
	return out, nil
}

// UsageBalanceRepository

type UsageBalanceRepository struct {
	Failures
	mu       sync.Mutex
	balances map[string]*models.UsageBalance
	now      func() time.Time
}

func NewUsageBalanceRepository() *UsageBalanceRepository {
	return &UsageBalanceRepository{
		balances: make(map[string]*models.UsageBalance),
		now:      time.Now,
	}
}

var _ repository.UsageBalanceRepository = (*UsageBalanceRepository)(nil)

func (r *UsageBalanceRepository) current(userID string) *models.UsageBalance {
	b, ok := r.balances[userID]
	if !ok {
		now := r.now()
		b = &models.UsageBalance{
			UserID:           userID,
			PeriodStart:      time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
			MonthlyRewards:   decimal.Zero,
			MonthlyPenalties: decimal.Zero,
			UpdatedAt:        now,
		}
		r.balances[userID] = b
	}
	return b
}

func (r *UsageBalanceRepository) Accumulate(ctx context.Context, userID string, reward, penalty decimal.Decimal) (*models.UsageBalance, error) {
	if err := r.check("Accumulate"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.current(userID)
	b.MonthlyRewards = b.MonthlyRewards.Add(reward)
	b.MonthlyPenalties = b.MonthlyPenalties.Add(penalty)
	b.UpdatedAt = r.now()
	cp := *b
	return &cp, nil
}

func (r *UsageBalanceRepository) Get(ctx context.Context, userID string) (*models.UsageBalance, error) {
	if err := r.check("Get"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.current(userID)
	return &cp, nil
}

func (r *UsageBalanceRepository) Reset(ctx context.Context, userID string, periodStart time.Time) (*models.UsageBalance, error) {
	if err := r.check("Reset"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	closed := *r.current(userID)
	r.balances[userID] = &models.UsageBalance{
		UserID:           userID,
		PeriodStart:      periodStart,
		MonthlyRewards:   decimal.Zero,
		MonthlyPenalties: decimal.Zero,
		UpdatedAt:        r.now(),
	}
	return &closed, nil
}

// AlertRepository

type AlertRepository struct {
	Failures
	mu     sync.RWMutex
	alerts []*models.Alert
}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{}
}

var _ repository.AlertRepository = (*AlertRepository)(nil)

func (r *AlertRepository) CreatePending(ctx context.Context, alert *models.Alert) error {
	if err := r.check("CreatePending"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *alert
	stored.Status = models.AlertPending
	r.alerts = append(r.alerts, &stored)
	return nil
}

func (r *AlertRepository) ListRecent(ctx context.Context, limit int) ([]*models.Alert, error) {
	if err := r.check("ListRecent"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Alert
	for i := len(r.alerts) - 1; i >= 0; i-- {
		cp := *r.alerts[i]
		out = append(out, &cp)
	}
	return page(out, 0, limit), nil
}
