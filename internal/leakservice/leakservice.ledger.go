package leakservice

import (
	"context"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/ledger"
	"github.com/hydrozen/leakwatch/internal/models"
	"golang.org/x/sync/errgroup"
)

// Profile is the dashboard view of one user
type Profile struct {
	Stats        *models.UserStats           `json:"stats"`
	Achievements []*models.EarnedAchievement `json:"achievements"`
	Usage        *models.UsageBalance        `json:"usage"`
	// Next is nil once every achievement is earned
	Next *ledger.AchievementProgress `json:"next_achievement"`
}

// Profile loads stats, achievements and the open usage period concurrently,
// then the progress towards the next achievement
func (s *LeakService) Profile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, errors.NewAuthError("user not authenticated", nil)
	}
	p := &Profile{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p.Stats, err = s.Ledger.Stats(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		p.Achievements, err = s.Ledger.Achievements(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		p.Usage, err = s.Ledger.UsageBalance(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	next, err := s.Ledger.NextAchievement(ctx, *p.Stats)
	if err != nil {
		return nil, err
	}
	p.Next = next
	return p, nil
}

func (s *LeakService) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	return s.Ledger.Stats(ctx, userID)
}

func (s *LeakService) PointsHistory(ctx context.Context, userID string, q models.PageQuery) ([]*models.PointsHistoryEntry, error) {
	return s.Ledger.History(ctx, userID, q)
}

func (s *LeakService) Achievements(ctx context.Context, userID string) ([]*models.EarnedAchievement, error) {
	return s.Ledger.Achievements(ctx, userID)
}

// RecordUsage applies one day of consumption to the user's open period
func (s *LeakService) RecordUsage(ctx context.Context, userID string, q models.UsageQuery) (*ledger.UsageResult, error) {
	return s.Ledger.ApplyUsageDelta(ctx, userID, q.CurrentDaily, q.AverageDaily)
}

func (s *LeakService) UsageBalance(ctx context.Context, userID string) (*models.UsageBalance, error) {
	return s.Ledger.UsageBalance(ctx, userID)
}

// ClosePeriod is the billing rollover trigger for userID
func (s *LeakService) ClosePeriod(ctx context.Context, userID string) (*models.UsageBalance, error) {
	if userID == "" {
		return nil, errors.NewValidationError("user id is required", nil)
	}
	return s.Ledger.ClosePeriod(ctx, userID)
}

func (s *LeakService) Reconcile(ctx context.Context, userID string) (*ledger.ReconcileResult, error) {
	return s.Ledger.Reconcile(ctx, userID)
}

func (s *LeakService) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	return s.Ledger.Leaderboard(ctx, limit)
}
