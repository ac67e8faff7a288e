// Package aggregate folds per-tick classifications into time buckets and
// emits an immutable Summary when a bucket closes.
package aggregate

import (
	"sort"
	"time"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/score"
)

// DefaultBucketSize is the aggregation window.
const DefaultBucketSize = time.Hour

// Aggregator accumulates one bucket at a time. It is not safe for concurrent
// use; the tracker serialises access.
type Aggregator struct {
	size time.Duration
	loc  *time.Location

	start        time.Time
	apps         map[string]*activity.AppRecord
	catMinutes   map[activity.Category]float64
	active       float64
	idle         float64
	productive   float64
	unproductive float64
}

// New creates an Aggregator whose first bucket contains start. Bucket size
// must evenly divide 24h; anything else falls back to DefaultBucketSize.
// Boundaries are aligned to local midnight in loc (time.Local when nil).
func New(start time.Time, size time.Duration, loc *time.Location) *Aggregator {
	if !ValidBucketSize(size) {
		size = DefaultBucketSize
	}
	if loc == nil {
		loc = time.Local
	}
	a := &Aggregator{size: size, loc: loc}
	a.reset(a.BucketStart(start))
	return a
}

// ValidBucketSize reports whether size is positive and divides a day evenly.
func ValidBucketSize(size time.Duration) bool {
	return size > 0 && (24*time.Hour)%size == 0
}

// BucketStart returns the start of the bucket containing t.
func (a *Aggregator) BucketStart(t time.Time) time.Time {
	t = t.In(a.loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.loc)
	n := t.Sub(midnight) / a.size
	return midnight.Add(n * a.size)
}

// Start returns the start of the current bucket.
func (a *Aggregator) Start() time.Time {
	return a.start
}

// NextBoundary returns the instant the current bucket closes.
func (a *Aggregator) NextBoundary() time.Time {
	next := a.BucketStart(a.start.Add(a.size))
	if !next.After(a.start) {
		next = a.start.Add(a.size)
	}
	return next
}

// Record adds d of active time spent on name.
func (a *Aggregator) Record(name string, c activity.Classification, d time.Duration) {
	if d <= 0 {
		return
	}
	minutes := d.Minutes()

	rec, ok := a.apps[name]
	if !ok {
		rec = &activity.AppRecord{
			Name:       name,
			Productive: c.Productive,
			Category:   c.Category,
			Confidence: c.Confidence,
		}
		a.apps[name] = rec
	}
	rec.Minutes += minutes

	a.active += minutes
	a.catMinutes[c.Category] += minutes
	if c.Productive {
		a.productive += minutes
	} else {
		a.unproductive += minutes
	}
}

// RecordIdle adds d of idle time to the current bucket.
func (a *Aggregator) RecordIdle(d time.Duration) {
	if d <= 0 {
		return
	}
	a.idle += d.Minutes()
}

// Empty reports whether nothing has been recorded in the current bucket.
func (a *Aggregator) Empty() bool {
	return a.active == 0 && a.idle == 0
}

// Rollover closes the current bucket if now lies in a later bucket. It
// returns false when there is no boundary to cross (which makes repeated
// calls for the same boundary no-ops) or when the closed bucket was empty.
func (a *Aggregator) Rollover(now time.Time) (activity.Summary, bool) {
	boundary := a.BucketStart(now)
	if !boundary.After(a.start) {
		return activity.Summary{}, false
	}
	return a.close(boundary)
}

// Flush closes the current bucket early at now, used when a session stops.
func (a *Aggregator) Flush(now time.Time) (activity.Summary, bool) {
	if now.Before(a.start) {
		now = a.start
	}
	return a.close(now)
}

// Live returns the running totals of the open bucket without closing it.
func (a *Aggregator) Live(now time.Time) activity.Summary {
	return a.build(now)
}

// Top returns up to n records of the open bucket by descending minutes.
// n <= 0 returns all records.
func (a *Aggregator) Top(n int) []activity.AppRecord {
	recs := a.sorted()
	if n > 0 && len(recs) > n {
		recs = recs[:n]
	}
	return recs
}

func (a *Aggregator) close(end time.Time) (activity.Summary, bool) {
	if a.Empty() {
		a.reset(end)
		return activity.Summary{}, false
	}
	s := a.build(end)
	a.reset(end)
	return s, true
}

func (a *Aggregator) build(end time.Time) activity.Summary {
	sc := score.Score(a.active, a.idle, score.Multiplier(score.Dominant(a.catMinutes)))
	apps := a.sorted()
	s := activity.Summary{
		BucketStart:         a.start,
		BucketEnd:           end,
		TotalMinutes:        a.active + a.idle,
		ActiveMinutes:       a.active,
		IdleMinutes:         a.idle,
		ProductiveMinutes:   a.productive,
		UnproductiveMinutes: a.unproductive,
		ProductivityScore:   sc,
		TopActivities:       apps,
	}
	s.Narrative = Narrative(s)
	return s
}

func (a *Aggregator) sorted() []activity.AppRecord {
	out := make([]activity.AppRecord, 0, len(a.apps))
	for _, rec := range a.apps {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Minutes != out[j].Minutes {
			return out[i].Minutes > out[j].Minutes
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (a *Aggregator) reset(start time.Time) {
	a.start = start
	a.apps = make(map[string]*activity.AppRecord)
	a.catMinutes = make(map[activity.Category]float64)
	a.active, a.idle = 0, 0
	a.productive, a.unproductive = 0, 0
}
