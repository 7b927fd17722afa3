package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestUsageDelta(t *testing.T) {
	cases := []struct {
		name             string
		current, average float64
		reward, penalty  int64
	}{
		{"equal", 300, 300, 0, 0},
		{"over by 50", 350, 300, 0, 10},
		{"over by 1", 301, 300, 0, 10},
		{"over by 51", 351, 300, 0, 20},
		{"under by 50", 250, 300, 10, 0},
		{"under by 24", 276, 300, 0, 0},
		{"under by 25", 275, 300, 5, 0},
		{"under by 74", 226, 300, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := UsageDelta(tc.current, tc.average)
			if !d.Reward.Equal(decimal.NewFromInt(tc.reward)) {
				t.Fatalf("reward: expected %d, got %s", tc.reward, d.Reward)
			}
			if !d.Penalty.Equal(decimal.NewFromInt(tc.penalty)) {
				t.Fatalf("penalty: expected %d, got %s", tc.penalty, d.Penalty)
			}
			if !d.Reward.IsZero() && !d.Penalty.IsZero() {
				t.Fatal("reward and penalty are mutually exclusive")
			}
			if d.Diff != tc.current-tc.average {
				t.Fatalf("diff: expected %v, got %v", tc.current-tc.average, d.Diff)
			}
		})
	}
}
