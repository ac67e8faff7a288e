package watcher

import (
	"fmt"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/score"
)

// Compare detects notable changes between the previous bucket (nil for the
// first one) and the current one. It checks for critical, warning, and
// info-level changes.
func Compare(prev *activity.Summary, curr activity.Summary, th Thresholds) []Alert {
	th = th.withDefaults()
	var alerts []Alert

	alerts = append(alerts, compareCritical(curr, th)...)
	alerts = append(alerts, compareWarning(prev, curr, th)...)
	alerts = append(alerts, compareInfo(prev, curr)...)

	return alerts
}

// compareCritical detects critical-level conditions.
func compareCritical(curr activity.Summary, th Thresholds) []Alert {
	if curr.ProductivityScore >= th.LowScore {
		return nil
	}
	return []Alert{{
		Level:   LevelCritical,
		Title:   fmt.Sprintf("Low productivity %s", bucketLabel(curr)),
		Message: fmt.Sprintf("Score %d/100 with %.0f productive of %.0f minutes", curr.ProductivityScore, curr.ProductiveMinutes, curr.TotalMinutes),
		Time:    curr.BucketEnd,
	}}
}

// compareWarning detects warning-level changes.
func compareWarning(prev *activity.Summary, curr activity.Summary, th Thresholds) []Alert {
	var alerts []Alert

	// Score fell sharply against the previous bucket.
	if prev != nil {
		if drop := prev.ProductivityScore - curr.ProductivityScore; drop >= th.ScoreDrop {
			alerts = append(alerts, Alert{
				Level:   LevelWarning,
				Title:   "Productivity dropped",
				Message: fmt.Sprintf("Score fell from %d to %d (-%d)", prev.ProductivityScore, curr.ProductivityScore, drop),
				Time:    curr.BucketEnd,
			})
		}
	}

	// Idle time dominated the bucket.
	if curr.TotalMinutes > 0 {
		share := curr.IdleMinutes / curr.TotalMinutes
		if share > th.IdleShare {
			alerts = append(alerts, Alert{
				Level:   LevelWarning,
				Title:   fmt.Sprintf("Mostly idle %s", bucketLabel(curr)),
				Message: fmt.Sprintf("Idle for %.0f of %.0f minutes (%.0f%%)", curr.IdleMinutes, curr.TotalMinutes, share*100),
				Time:    curr.BucketEnd,
			})
		}
	}

	// A distracting activity took more time than productive work.
	if top, ok := topDistraction(curr); ok && curr.UnproductiveMinutes > curr.ProductiveMinutes {
		alerts = append(alerts, Alert{
			Level:   LevelWarning,
			Title:   fmt.Sprintf("Distraction: %s", top.Name),
			Message: fmt.Sprintf("%.0f minutes of %s, %.0f unproductive in total", top.Minutes, top.Category, curr.UnproductiveMinutes),
			Time:    curr.BucketEnd,
		})
	}

	return alerts
}

// compareInfo detects informational changes.
func compareInfo(prev *activity.Summary, curr activity.Summary) []Alert {
	currBand := score.BandFor(curr.ProductivityScore)
	if currBand != score.BandExcellent {
		return nil
	}
	if prev != nil && score.BandFor(prev.ProductivityScore) == score.BandExcellent {
		return nil
	}
	return []Alert{{
		Level:   LevelInfo,
		Title:   fmt.Sprintf("Excellent bucket %s", bucketLabel(curr)),
		Message: fmt.Sprintf("Score %d/100", curr.ProductivityScore),
		Time:    curr.BucketEnd,
	}}
}

// topDistraction returns the longest social or entertainment activity.
func topDistraction(s activity.Summary) (activity.AppRecord, bool) {
	var best activity.AppRecord
	found := false
	for _, r := range s.TopActivities {
		if r.Category != activity.CategorySocial && r.Category != activity.CategoryEntertainment {
			continue
		}
		if !found || r.Minutes > best.Minutes {
			best, found = r, true
		}
	}
	return best, found
}
