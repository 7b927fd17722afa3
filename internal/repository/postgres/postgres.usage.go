// FilePath: internal/repository/postgres/postgres.usage.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/hydrozen/leakwatch/internal/database"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/shopspring/decimal"
)

type UsageBalanceRepo struct {
	PostgresBaseRepo
}

func NewUsageBalanceRepository(db database.DB) *UsageBalanceRepo {
	return &UsageBalanceRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

const usageColumns = `user_id, period_start, monthly_rewards, monthly_penalties, updated_at`

func (r *UsageBalanceRepo) Accumulate(ctx context.Context, userID string, reward, penalty decimal.Decimal) (*models.UsageBalance, error) {
	balance := &models.UsageBalance{}
	query := `
		INSERT INTO usage_balances (user_id, period_start, monthly_rewards, monthly_penalties, updated_at)
		VALUES ($1, date_trunc('month', NOW()), $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			monthly_rewards = usage_balances.monthly_rewards + EXCLUDED.monthly_rewards,
			monthly_penalties = usage_balances.monthly_penalties + EXCLUDED.monthly_penalties,
			updated_at = NOW()
		RETURNING ` + usageColumns

	if err := r.db.GetDB().GetContext(ctx, balance, query, userID, reward, penalty); err != nil {
		return nil, errors.NewDatabaseError("failed to accumulate usage balance", err)
	}
	return balance, nil
}

func (r *UsageBalanceRepo) Get(ctx context.Context, userID string) (*models.UsageBalance, error) {
	balance := &models.UsageBalance{}
	query := `SELECT ` + usageColumns + ` FROM usage_balances WHERE user_id = $1`

	err := r.db.GetDB().GetContext(ctx, balance, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			now := time.Now()
			return &models.UsageBalance{
				UserID:           userID,
				PeriodStart:      time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
				MonthlyRewards:   decimal.Zero,
				MonthlyPenalties: decimal.Zero,
			}, nil
		}
		return nil, errors.NewDatabaseError("failed to get usage balance", err)
	}
	return balance, nil
}

// Reset reads the open period and zeroes it in one transaction, returning the
// closed balance.
func (r *UsageBalanceRepo) Reset(ctx context.Context, userID string, periodStart time.Time) (*models.UsageBalance, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	closed := &models.UsageBalance{}
	err = tx.GetContext(ctx, closed, `SELECT `+usageColumns+` FROM usage_balances WHERE user_id = $1 FOR UPDATE`, userID)
	switch {
	case err == sql.ErrNoRows:
		closed = &models.UsageBalance{UserID: userID, PeriodStart: periodStart, MonthlyRewards: decimal.Zero, MonthlyPenalties: decimal.Zero}
	case err != nil:
		return nil, errors.NewDatabaseError("failed to read usage balance", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_balances (user_id, period_start, monthly_rewards, monthly_penalties, updated_at)
		VALUES ($1, $2, 0, 0, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			period_start = EXCLUDED.period_start,
			monthly_rewards = 0,
			monthly_penalties = 0,
			updated_at = NOW()`, userID, periodStart)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to reset usage balance", err)
	}
	if err := r.Commit(tx); err != nil {
		return nil, err
	}
	return closed, nil
}
