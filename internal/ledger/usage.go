// FilePath: internal/ledger/usage.go
package ledger

import (
	"math"

	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/shopspring/decimal"
)

// Usage delta steps. Consumption above the rolling average is penalised per
// started 50 units, savings are rewarded per full 25 units.
const (
	PenaltyStep   = 50.0
	PenaltyAmount = 10
	RewardStep    = 25.0
	RewardAmount  = 5
)

// UsageDelta computes the reward or penalty for one day of consumption.
//
//	diff > 0: penalty = ceil(diff/50) * 10
//	diff < 0: reward  = floor(|diff|/25) * 5
//	diff = 0: neither
func UsageDelta(currentDaily, averageDaily float64) models.UsageDelta {
	diff := currentDaily - averageDaily
	delta := models.UsageDelta{
		CurrentDaily: currentDaily,
		AverageDaily: averageDaily,
		Diff:         diff,
		Reward:       decimal.Zero,
		Penalty:      decimal.Zero,
	}
	switch {
	case diff > 0:
		steps := math.Ceil(diff / PenaltyStep)
		delta.Penalty = decimal.NewFromFloat(steps).Mul(decimal.NewFromInt(PenaltyAmount))
	case diff < 0:
		steps := math.Floor(math.Abs(diff) / RewardStep)
		delta.Reward = decimal.NewFromFloat(steps).Mul(decimal.NewFromInt(RewardAmount))
	}
	return delta
}
