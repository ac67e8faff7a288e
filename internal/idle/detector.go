// Package idle tracks time since the last user input and classifies the user
// as idle or active against a threshold.
package idle

import (
	"sync"
	"time"
)

// DefaultThreshold is the inactivity duration after which a user is idle.
const DefaultThreshold = 5 * time.Minute

// Detector records the timestamp of the most recent input. It is safe for
// concurrent use because input callbacks may arrive from listener goroutines.
type Detector struct {
	mu        sync.Mutex
	threshold time.Duration
	lastInput time.Time
}

// NewDetector returns a Detector with the given threshold. A negative
// threshold is treated as zero.
func NewDetector(threshold time.Duration) *Detector {
	if threshold < 0 {
		threshold = 0
	}
	return &Detector{threshold: threshold}
}

// Threshold returns the configured idle threshold.
func (d *Detector) Threshold() time.Duration {
	return d.threshold
}

// RecordInput marks now as the time of the most recent user input.
// Out-of-order timestamps never move the marker backwards.
func (d *Detector) RecordInput(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if now.After(d.lastInput) {
		d.lastInput = now
	}
}

// Reset forces the last-input marker to now, even if it moves backwards.
// Used to seed a fresh session.
func (d *Detector) Reset(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastInput = now
}

// LastInput returns the time of the most recent input.
func (d *Detector) LastInput() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastInput
}

// IdleFor returns how long the user has been without input at now.
func (d *Detector) IdleFor(now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastInput.IsZero() {
		return 0
	}
	return now.Sub(d.lastInput)
}

// IsIdle reports whether now - lastInput exceeds the threshold.
func (d *Detector) IsIdle(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastInput.IsZero() {
		return false
	}
	return now.Sub(d.lastInput) > d.threshold
}
