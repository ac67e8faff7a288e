// Package score computes the bounded 0-100 productivity score.
package score

import (
	"math"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// Category multipliers applied to the active ratio.
const (
	MultiplierProductive    = 1.2
	MultiplierSocial        = 0.7
	MultiplierEntertainment = 0.5
	MultiplierDefault       = 1.0
)

// Multiplier returns the scoring weight for a dominant category.
func Multiplier(cat activity.Category) float64 {
	switch cat {
	case activity.CategoryProductive:
		return MultiplierProductive
	case activity.CategorySocial:
		return MultiplierSocial
	case activity.CategoryEntertainment:
		return MultiplierEntertainment
	default:
		return MultiplierDefault
	}
}

// Score returns round(clamp(active/(active+idle) * 100 * multiplier, 0, 100)).
// A zero or negative denominator yields 0. Inputs are minutes, but any
// consistent unit gives the same result.
func Score(activeMinutes, idleMinutes, multiplier float64) int {
	total := activeMinutes + idleMinutes
	if total <= 0 || activeMinutes <= 0 {
		return 0
	}
	weighted := activeMinutes / total * 100 * multiplier
	if math.IsNaN(weighted) {
		return 0
	}
	weighted = math.Max(0, math.Min(100, weighted))
	return int(math.Round(weighted))
}

// Dominant returns the category with the most minutes. Ties resolve in the
// order of activity.Categories; an empty or all-zero map yields CategoryOther.
func Dominant(minutes map[activity.Category]float64) activity.Category {
	best := activity.CategoryOther
	bestMinutes := 0.0
	for _, cat := range activity.Categories {
		if m := minutes[cat]; m > bestMinutes {
			best, bestMinutes = cat, m
		}
	}
	return best
}

// Band names the score range used in narratives.
type Band string

const (
	BandExcellent Band = "excellent"
	BandGood      Band = "good"
	BandModerate  Band = "moderate"
	BandLow       Band = "low"
)

// BandFor classifies a score: excellent >= 80, good >= 60, moderate >= 40.
func BandFor(score int) Band {
	switch {
	case score >= 80:
		return BandExcellent
	case score >= 60:
		return BandGood
	case score >= 40:
		return BandModerate
	default:
		return BandLow
	}
}
