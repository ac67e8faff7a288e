package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/aggregate"
	"github.com/blackwell-systems/worktrack/internal/classify"
	"github.com/blackwell-systems/worktrack/internal/idle"
	"github.com/blackwell-systems/worktrack/internal/score"
	"github.com/blackwell-systems/worktrack/internal/source"
)

// Default sampler settings.
const (
	FineInterval      = 10 * time.Second
	CoarseInterval    = 60 * time.Second
	DefaultRecentSize = 10
	liveTopN          = 5
)

// TickState describes how a tick's elapsed time was accounted.
type TickState string

const (
	TickActive      TickState = "active"
	TickIdle        TickState = "idle"
	TickUnavailable TickState = "unavailable" // activity source failed
)

// TickResult is what one Tick did.
type TickResult struct {
	State     TickState
	Elapsed   time.Duration
	Summaries []activity.Summary // buckets closed by this tick, oldest first
	SourceErr error
}

// Sampler owns the tracker state for one session: running totals, the
// current activity and the bucket aggregator. Elapsed time is measured
// between ticks, so a delayed tick is accounted in full.
type Sampler struct {
	detector   *idle.Detector
	src        source.ActivitySource
	classifier *classify.Classifier
	recentSize int

	mu          sync.Mutex
	agg         *aggregate.Aggregator
	start       time.Time
	end         time.Time
	lastTick    time.Time
	lastState   TickState
	totalActive time.Duration
	totalIdle   time.Duration
	catMinutes  map[activity.Category]float64
	current     *activity.CurrentActivity
	recent      []activity.CurrentActivity
}

// NewSampler creates a sampler whose clock starts at start. The detector
// must already be seeded so the first tick is not idle.
func NewSampler(start time.Time, det *idle.Detector, src source.ActivitySource, cl *classify.Classifier, agg *aggregate.Aggregator, recentSize int) *Sampler {
	if cl == nil {
		cl = classify.New(classify.Rules, classify.BrowserHints)
	}
	if recentSize <= 0 {
		recentSize = DefaultRecentSize
	}
	return &Sampler{
		detector:   det,
		src:        src,
		classifier: cl,
		recentSize: recentSize,
		agg:        agg,
		start:      start,
		lastTick:   start,
		lastState:  TickActive,
		catMinutes: make(map[activity.Category]float64),
	}
}

// Tick accounts the time since the previous tick. When the user is active
// the activity source is queried outside the state lock; a source failure
// counts the interval as idle and records no activity.
func (s *Sampler) Tick(ctx context.Context, now time.Time) TickResult {
	res := TickResult{State: TickActive}

	var cls activity.Classification
	var obs activity.Observation
	if s.detector.IsIdle(now) {
		res.State = TickIdle
	} else if s.src == nil {
		res.State = TickUnavailable
		res.SourceErr = source.ErrNoActiveWindow
	} else {
		var err error
		obs, err = s.src.Current(ctx)
		if err != nil {
			res.State = TickUnavailable
			res.SourceErr = err
		} else {
			cls = s.classifier.Classify(obs)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.end.IsZero() {
		res.State = TickIdle
		return res
	}
	res.Elapsed, res.Summaries = s.advance(now, res.State, obs, cls)
	s.lastState = res.State
	if res.State == TickActive {
		cur := activity.CurrentActivity{Observation: obs, Category: cls.Category, Productive: cls.Productive}
		s.current = &cur
		s.recent = append(s.recent, cur)
		if len(s.recent) > s.recentSize {
			s.recent = s.recent[len(s.recent)-s.recentSize:]
		}
	}
	return res
}

// advance splits [lastTick, now] at bucket boundaries, attributes each piece
// to the tick's state and closes every crossed bucket. Caller holds mu.
func (s *Sampler) advance(now time.Time, state TickState, obs activity.Observation, cls activity.Classification) (time.Duration, []activity.Summary) {
	if !now.After(s.lastTick) {
		return 0, nil
	}
	elapsed := now.Sub(s.lastTick)

	var summaries []activity.Summary
	cursor := s.lastTick
	for {
		boundary := s.agg.NextBoundary()
		if now.Before(boundary) {
			break
		}
		s.attribute(boundary.Sub(cursor), state, obs, cls)
		if sum, ok := s.agg.Rollover(boundary); ok {
			summaries = append(summaries, sum)
		}
		cursor = boundary
	}
	s.attribute(now.Sub(cursor), state, obs, cls)
	s.lastTick = now
	return elapsed, summaries
}

func (s *Sampler) attribute(d time.Duration, state TickState, obs activity.Observation, cls activity.Classification) {
	if d <= 0 {
		return
	}
	if state != TickActive {
		s.totalIdle += d
		s.agg.RecordIdle(d)
		return
	}
	s.totalActive += d
	s.catMinutes[cls.Category] += d.Minutes()
	s.agg.Record(recordName(obs), cls, d)
}

// recordName keys aggregator records. Background observations without a
// name are grouped together.
func recordName(obs activity.Observation) string {
	if obs.Name != "" {
		return obs.Name
	}
	if obs.URL != "" {
		return obs.URL
	}
	return string(obs.Kind)
}

// Finish accounts the time since the last tick, marks the end time and
// flushes the partial bucket. The remainder keeps the last tick's state
// unless the user has gone idle since. Further ticks are ignored.
func (s *Sampler) Finish(now time.Time) (activity.Summary, []activity.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.end.IsZero() {
		return activity.Summary{}, nil, false
	}
	state := s.lastState
	if s.detector.IsIdle(now) {
		state = TickIdle
	}
	var obs activity.Observation
	var cls activity.Classification
	if state == TickActive && s.current != nil {
		obs = s.current.Observation
		cls = s.classifier.Classify(obs)
	} else {
		state = TickIdle
	}
	_, closed := s.advance(now, state, obs, cls)

	if now.Before(s.lastTick) {
		now = s.lastTick
	}
	s.end = now
	sum, ok := s.agg.Flush(now)
	return sum, closed, ok
}

// LiveScore is the session-wide score over all time so far. Caller holds mu.
func (s *Sampler) liveScore() int {
	mult := score.Multiplier(score.Dominant(s.catMinutes))
	return score.Score(s.totalActive.Minutes(), s.totalIdle.Minutes(), mult)
}

// Snapshot returns a copy of the tracker state.
func (s *Sampler) Snapshot() activity.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := activity.Snapshot{
		StartTime:         s.start,
		EndTime:           s.end,
		TotalActive:       s.totalActive,
		TotalIdle:         s.totalIdle,
		LastInput:         s.detector.LastInput(),
		IdleThreshold:     s.detector.Threshold(),
		Idle:              s.lastState != TickActive,
		ProductivityScore: s.liveScore(),
		Recent:            append([]activity.CurrentActivity(nil), s.recent...),
		TopActivities:     s.agg.Top(liveTopN),
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	return snap
}
