// Package achievement decides which catalog achievements a user has newly earned.
package achievement

import (
	"sort"

	"github.com/hydrozen/leakwatch/internal/models"
)

// Evaluate returns the achievements that stats qualifies for and that are not
// in alreadyEarned, in ascending PointsRequired order (ties by ID).
//
// It has no side effects: calling it again with the same inputs returns the
// same list, and once the caller has recorded the result in alreadyEarned the
// next call returns nothing.
func Evaluate(stats models.UserStats, catalog []models.Achievement, alreadyEarned map[string]struct{}) []models.Achievement {
	ordered := sorted(catalog)

	var unlocked []models.Achievement
	for _, a := range ordered {
		if stats.Points < a.PointsRequired {
			break
		}
		if _, earned := alreadyEarned[a.ID]; earned {
			continue
		}
		unlocked = append(unlocked, a)
	}
	return unlocked
}

// Next returns the first achievement in catalog order that is not in
// alreadyEarned, or nil.
func Next(catalog []models.Achievement, alreadyEarned map[string]struct{}) *models.Achievement {
	for _, a := range sorted(catalog) {
		if _, earned := alreadyEarned[a.ID]; !earned {
			return &a
		}
	}
	return nil
}

func sorted(catalog []models.Achievement) []models.Achievement {
	ordered := make([]models.Achievement, len(catalog))
	copy(ordered, catalog)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].PointsRequired != ordered[j].PointsRequired {
			return ordered[i].PointsRequired < ordered[j].PointsRequired
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// Progress returns how far stats is towards a, in [0, 1].
func Progress(stats models.UserStats, a models.Achievement) float64 {
	if a.PointsRequired <= 0 {
		return 1
	}
	p := float64(stats.Points) / float64(a.PointsRequired)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}
