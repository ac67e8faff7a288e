// Package classify maps activity observations onto productivity categories
// using an ordered, curated lookup table.
package classify

import (
	"strings"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// Classifier holds a lookup table. The zero value is not usable; use New or
// the package-level Classify which uses Rules and BrowserHints.
type Classifier struct {
	tiers []Tier
	hints []string
}

// New creates a Classifier over the given tiers and fallback keyword hints.
// Patterns are normalised to lower case once here.
func New(tiers []Tier, hints []string) *Classifier {
	c := &Classifier{
		tiers: make([]Tier, len(tiers)),
		hints: make([]string, 0, len(hints)),
	}
	for i, t := range tiers {
		nt := t
		nt.Patterns = make([]Pattern, len(t.Patterns))
		for j, p := range t.Patterns {
			nt.Patterns[j] = Pattern{Match: normalize(p.Match), Category: p.Category}
		}
		c.tiers[i] = nt
	}
	for _, h := range hints {
		c.hints = append(c.hints, normalize(h))
	}
	return c
}

var defaultClassifier = New(Rules, BrowserHints)

// Classify classifies obs against the default table.
func Classify(obs activity.Observation) activity.Classification {
	return defaultClassifier.Classify(obs)
}

// Classify returns the category of obs. Tiers are scanned in order and the
// first substring hit wins. Unmatched names fall back to browser hints and
// finally to CategoryOther at the lowest confidence.
func (c *Classifier) Classify(obs activity.Observation) activity.Classification {
	if obs.Kind == activity.KindBackground {
		return result(activity.CategoryNeutral, ConfidenceNeutral)
	}

	name := normalize(obs.Name)
	if name == "" {
		name = normalize(obs.URL)
	}
	if name == "" {
		return result(activity.CategoryOther, ConfidenceUnknown)
	}

	for _, tier := range c.tiers {
		for _, p := range tier.Patterns {
			if p.Match != "" && strings.Contains(name, p.Match) {
				return result(p.Category, tier.Confidence)
			}
		}
	}

	for _, h := range c.hints {
		if h != "" && strings.Contains(name, h) {
			return result(activity.CategoryProductive, ConfidenceHeuristic)
		}
	}

	return result(activity.CategoryOther, ConfidenceUnknown)
}

// IsProductive reports whether time in cat counts toward productive minutes.
// Only social and entertainment time is unproductive.
func IsProductive(cat activity.Category) bool {
	switch cat {
	case activity.CategorySocial, activity.CategoryEntertainment:
		return false
	default:
		return true
	}
}

func result(cat activity.Category, confidence float64) activity.Classification {
	return activity.Classification{
		Category:   cat,
		Productive: IsProductive(cat),
		Confidence: confidence,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
