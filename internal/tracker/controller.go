// Package tracker runs tracking sessions: a sampler driven by a periodic
// tick, idle detection fed by input sources, bucket aggregation and
// scheduled transmission to the collector.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/aggregate"
	"github.com/blackwell-systems/worktrack/internal/classify"
	"github.com/blackwell-systems/worktrack/internal/idle"
	"github.com/blackwell-systems/worktrack/internal/source"
	"github.com/blackwell-systems/worktrack/internal/transmit"
)

// Lifecycle errors.
var (
	ErrAlreadyRunning = errors.New("tracking session already running")
	ErrNotRunning     = errors.New("no tracking session running")
	ErrStaleHandle    = errors.New("handle does not belong to the running session")
)

// DefaultTransmitInterval is how often the cumulative payload is sent.
const DefaultTransmitInterval = 5 * time.Minute

// Sender delivers payloads. *transmit.Transmitter satisfies it.
type Sender interface {
	Send(ctx context.Context, sess activity.Session, p transmit.Payload) error
	MarkPending()
}

// Journal persists emitted summaries. Optional.
type Journal interface {
	SaveSummary(ctx context.Context, sess activity.Session, s activity.Summary) error
}

// Options configures a Controller. Zero values take the package defaults.
type Options struct {
	Clock            clockwork.Clock
	Logger           *slog.Logger
	TickInterval     time.Duration
	TransmitInterval time.Duration
	IdleThreshold    time.Duration // zero means idle.DefaultThreshold; use a negative value for a zero threshold
	BucketSize       time.Duration
	Location         *time.Location
	RecentSize       int
	TimeUnit         transmit.TimeUnit

	Activity   source.ActivitySource
	Inputs     []source.InputSource
	Classifier *classify.Classifier
	Sender     Sender
	Journal    Journal

	OnUpdate  func(activity.Snapshot) // called from the session goroutine after every tick
	OnSummary func(activity.Summary)  // called for every closed bucket
	OnError   func(error)             // transmission failures; may be called concurrently
}

// Handle identifies one running session. It is returned by Start and
// required by Stop.
type Handle struct {
	id      string
	started time.Time
}

// ID returns the session id.
func (h *Handle) ID() string { return h.id }

// Started returns when the session started.
func (h *Handle) Started() time.Time { return h.started }

type state int

const (
	stateStopped state = iota
	stateRunning
	stateStopping
)

// Controller owns at most one running session at a time.
type Controller struct {
	opts   Options
	clock  clockwork.Clock
	logger *slog.Logger

	mu    sync.Mutex
	state state
	run   *run
	last  activity.Snapshot
}

type run struct {
	handle   *Handle
	session  activity.Session
	detector *idle.Detector
	sampler  *Sampler
	unsubs   []func()
	closed   atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Controller.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = FineInterval
	}
	if opts.TransmitInterval <= 0 {
		opts.TransmitInterval = DefaultTransmitInterval
	}
	switch {
	case opts.IdleThreshold == 0:
		opts.IdleThreshold = idle.DefaultThreshold
	case opts.IdleThreshold < 0:
		opts.IdleThreshold = 0
	}
	if opts.TimeUnit == "" {
		opts.TimeUnit = transmit.UnitMillis
	}
	if opts.Classifier == nil {
		opts.Classifier = classify.New(classify.Rules, classify.BrowserHints)
	}
	return &Controller{opts: opts, clock: opts.Clock, logger: opts.Logger}
}

// Start begins a session. It seeds the idle detector with the current time,
// subscribes every input source and starts the tick and transmit timers.
func (c *Controller) Start(ctx context.Context, sess activity.Session) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateStopped {
		return nil, ErrAlreadyRunning
	}

	now := c.clock.Now()
	det := idle.NewDetector(c.opts.IdleThreshold)
	det.Reset(now)
	agg := aggregate.New(now, c.opts.BucketSize, c.opts.Location)

	r := &run{
		handle:   &Handle{id: uuid.NewString(), started: now},
		session:  sess,
		detector: det,
		sampler:  NewSampler(now, det, c.opts.Activity, c.opts.Classifier, agg, c.opts.RecentSize),
		done:     make(chan struct{}),
	}
	for _, in := range c.opts.Inputs {
		r.unsubs = append(r.unsubs, in.Subscribe(func(at time.Time) {
			if r.closed.Load() {
				return
			}
			det.RecordInput(at)
			inputCounter.Inc()
		}))
	}

	// The loop outlives the caller's ctx; only Stop ends it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	go c.loop(loopCtx, r)

	c.state = stateRunning
	c.run = r
	c.last = r.sampler.Snapshot()
	runningGauge.Inc()
	c.logger.Info("tracking started",
		"session", r.handle.id,
		"user_id", sess.UserID,
		"team_id", sess.TeamID,
		"tick", c.opts.TickInterval,
		"idle_threshold", c.opts.IdleThreshold,
	)
	return r.handle, nil
}

// Stop ends the session identified by h. Timers are stopped and the loop has
// exited before listeners are removed. Buckets that closed since the last
// tick are sent as rollover summaries, then the partial bucket is flushed
// and exactly one final transmission is attempted. Cleanup happens whether
// or not that transmission succeeds; its failure goes to OnError.
func (c *Controller) Stop(ctx context.Context, h *Handle) error {
	c.mu.Lock()
	if c.state != stateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	r := c.run
	if h == nil || h != r.handle {
		c.mu.Unlock()
		return ErrStaleHandle
	}
	c.state = stateStopping
	c.mu.Unlock()

	r.cancel()
	<-r.done

	r.closed.Store(true)
	for _, unsub := range r.unsubs {
		unsub()
	}

	now := c.clock.Now()
	partial, closed, ok := r.sampler.Finish(now)
	snap := r.sampler.Snapshot()
	c.opts.sender().MarkPending() // the end time is new state

	// Buckets crossed since the last tick go out as ordinary rollovers.
	rollover := snap
	rollover.EndTime = time.Time{}
	for i := range closed {
		s := closed[i]
		c.emitSummary(ctx, r, s)
		_ = c.send(ctx, r, rollover, &s)
	}
	var final *activity.Summary
	if ok {
		c.emitSummary(ctx, r, partial)
		final = &partial
	}

	if err := c.send(ctx, r, snap, final); err == nil {
		c.logger.Info("final transmission delivered", "session", r.handle.id)
	}
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(snap)
	}

	c.mu.Lock()
	c.state = stateStopped
	c.run = nil
	c.last = snap
	c.mu.Unlock()
	runningGauge.Dec()

	c.logger.Info("tracking stopped",
		"session", r.handle.id,
		"active", snap.TotalActive.Round(time.Second),
		"idle", snap.TotalIdle.Round(time.Second),
		"score", snap.ProductivityScore,
	)
	return nil
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRunning
}

// Snapshot returns the live state of the running session, or the final
// state of the last one.
func (c *Controller) Snapshot() activity.Snapshot {
	c.mu.Lock()
	r := c.run
	last := c.last
	c.mu.Unlock()
	if r == nil {
		return last
	}
	return r.sampler.Snapshot()
}

// RecordInput feeds an input event directly to the running session. It is a
// no-op when nothing is running.
func (c *Controller) RecordInput(at time.Time) {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r == nil || r.closed.Load() {
		return
	}
	r.detector.RecordInput(at)
	inputCounter.Inc()
}

func (c *Controller) loop(ctx context.Context, r *run) {
	defer close(r.done)

	tick := c.clock.NewTicker(c.opts.TickInterval)
	defer tick.Stop()
	transmitTicker := c.clock.NewTicker(c.opts.TransmitInterval)
	defer transmitTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.Chan():
			if ctx.Err() != nil {
				return
			}
			c.tick(ctx, r)
		case <-transmitTicker.Chan():
			if ctx.Err() != nil {
				return
			}
			c.sendAsync(r, r.sampler.Snapshot(), nil)
		}
	}
}

func (c *Controller) tick(ctx context.Context, r *run) {
	res := r.sampler.Tick(ctx, c.clock.Now())
	tickCounter.WithLabelValues(string(res.State)).Inc()
	if res.SourceErr != nil {
		c.logger.Debug("activity source unavailable", "err", res.SourceErr)
	}
	if res.Elapsed > 0 {
		c.opts.sender().MarkPending()
	}

	for i := range res.Summaries {
		s := res.Summaries[i]
		c.emitSummary(ctx, r, s)
		c.sendAsync(r, r.sampler.Snapshot(), &s)
	}

	snap := r.sampler.Snapshot()
	scoreGauge.Set(float64(snap.ProductivityScore))
	c.logger.Debug("tick",
		"state", res.State,
		"elapsed", res.Elapsed,
		"score", snap.ProductivityScore,
	)
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(snap)
	}
}

func (c *Controller) emitSummary(ctx context.Context, r *run, s activity.Summary) {
	summaryCounter.Inc()
	c.logger.Info("bucket closed",
		"bucket_start", s.BucketStart,
		"bucket_end", s.BucketEnd,
		"score", s.ProductivityScore,
		"total_minutes", fmt.Sprintf("%.1f", s.TotalMinutes),
	)
	if c.opts.Journal != nil {
		if err := c.opts.Journal.SaveSummary(context.WithoutCancel(ctx), r.session, s); err != nil {
			c.logger.Warn("journaling summary failed", "err", err)
		}
	}
	if c.opts.OnSummary != nil {
		c.opts.OnSummary(s)
	}
}

// sendAsync fires one send on its own goroutine. Sends are not serialized
// and never block the tick loop.
func (c *Controller) sendAsync(r *run, snap activity.Snapshot, s *activity.Summary) {
	go func() {
		_ = c.send(context.Background(), r, snap, s)
	}()
}

func (c *Controller) send(ctx context.Context, r *run, snap activity.Snapshot, s *activity.Summary) error {
	p := transmit.NewPayload(r.session, snap, c.opts.TimeUnit, s)
	err := c.opts.sender().Send(ctx, r.session, p)
	if err != nil && c.opts.OnError != nil {
		c.opts.OnError(err)
	}
	return err
}

func (o Options) sender() Sender {
	if o.Sender == nil {
		return discard{}
	}
	return o.Sender
}

type discard struct{}

func (discard) Send(context.Context, activity.Session, transmit.Payload) error { return nil }
func (discard) MarkPending()                                                 {}
