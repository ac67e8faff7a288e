// Package watcher follows the closed buckets of a tracking session and
// emits alerts when productivity drops or idle time dominates.
package watcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// Alert levels.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Alert represents a notable event detected in a bucket summary.
type Alert struct {
	Level   string // "info", "warning", "critical"
	Title   string
	Message string
	Time    time.Time
}

// Thresholds tune when alerts fire. Zero fields take the defaults.
type Thresholds struct {
	LowScore  int     // critical when a bucket scores below this
	ScoreDrop int     // warning when the score falls by at least this much
	IdleShare float64 // warning when idle minutes exceed this share of the bucket
	MinActive float64 // buckets with fewer minutes than this are ignored
}

// DefaultThresholds are used for zero-valued Thresholds fields.
var DefaultThresholds = Thresholds{
	LowScore:  40,
	ScoreDrop: 20,
	IdleShare: 0.5,
	MinActive: 5,
}

func (t Thresholds) withDefaults() Thresholds {
	if t.LowScore <= 0 {
		t.LowScore = DefaultThresholds.LowScore
	}
	if t.ScoreDrop <= 0 {
		t.ScoreDrop = DefaultThresholds.ScoreDrop
	}
	if t.IdleShare <= 0 {
		t.IdleShare = DefaultThresholds.IdleShare
	}
	if t.MinActive <= 0 {
		t.MinActive = DefaultThresholds.MinActive
	}
	return t
}

// Watcher compares each closed bucket against the previous one and emits
// alerts through alertFn.
type Watcher struct {
	mu            sync.Mutex
	thresholds    Thresholds
	previous      *activity.Summary
	alertFn       func(Alert)     // callback for emitting alerts
	lastAlertKeys map[string]bool // dedup: suppress repeated identical alerts
}

// New creates a Watcher.
func New(th Thresholds, alertFn func(Alert)) *Watcher {
	return &Watcher{
		thresholds:    th.withDefaults(),
		alertFn:       alertFn,
		lastAlertKeys: make(map[string]bool),
	}
}

// Observe records a closed bucket and returns the alerts it raised. Buckets
// too short to judge are skipped and do not replace the previous bucket.
// Identical alerts are suppressed until the underlying numbers change.
func (w *Watcher) Observe(curr activity.Summary) []Alert {
	w.mu.Lock()
	defer w.mu.Unlock()

	if curr.TotalMinutes < w.thresholds.MinActive {
		return nil
	}

	raw := Compare(w.previous, curr, w.thresholds)

	currentKeys := make(map[string]bool, len(raw))
	var alerts []Alert
	for _, a := range raw {
		key := a.Level + ":" + a.Title + ":" + a.Message
		currentKeys[key] = true
		if !w.lastAlertKeys[key] {
			alerts = append(alerts, a)
		}
	}
	w.lastAlertKeys = currentKeys

	prev := curr
	w.previous = &prev

	if w.alertFn != nil {
		for _, a := range alerts {
			w.alertFn(a)
		}
	}
	return alerts
}

func bucketLabel(s activity.Summary) string {
	return fmt.Sprintf("%s-%s", s.BucketStart.Format("15:04"), s.BucketEnd.Format("15:04"))
}
