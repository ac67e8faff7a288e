// Package transmit serializes tracker state and delivers it to the
// collector, with optional retry and a local outbox for failed payloads.
package transmit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// ErrStatus matches any *StatusError via errors.Is.
var ErrStatus = errors.New("collector rejected payload")

// Is lets errors.Is(err, ErrStatus) match a *StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Envelope is a serialized payload ready for a sink.
type Envelope struct {
	Kind Kind
	Body []byte
}

// Sink delivers one envelope. Implementations must honour ctx.
type Sink interface {
	Deliver(ctx context.Context, sess activity.Session, env Envelope) error
	Close() error
}

// QueuedEnvelope is an envelope parked in the outbox.
type QueuedEnvelope struct {
	ID       int64
	Envelope Envelope
	Attempts int
	QueuedAt time.Time
}

// Outbox parks envelopes whose delivery failed so a later successful send
// can replay them.
type Outbox interface {
	Enqueue(ctx context.Context, env Envelope) error
	Peek(ctx context.Context, limit int) ([]QueuedEnvelope, error)
	Remove(ctx context.Context, id int64) error
	MarkAttempt(ctx context.Context, id int64, cause string) error
}

// Default transmitter settings.
const (
	DefaultTimeout        = 15 * time.Second
	DefaultMaxAttempts    = 1
	DefaultInitialBackoff = 2 * time.Second
	drainBatch            = 20
)

// Options configures a Transmitter.
type Options struct {
	Sink           Sink
	Outbox         Outbox // nil disables local buffering
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	OnError        func(error)
	Logger         *slog.Logger
}

// Transmitter sends payloads. Sends are not serialized: each call is an
// independent request and the collector must tolerate overlap. Outbox
// replay is serialized so a parked envelope is delivered once.
type Transmitter struct {
	sink           Sink
	outbox         Outbox
	timeout        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	onError        func(error)
	logger         *slog.Logger

	drainMu sync.Mutex

	// changes counts MarkPending calls; acked is the highest count a
	// successful send started after.
	changes atomic.Uint64
	acked   atomic.Uint64
	sent    atomic.Int64
	failed  atomic.Int64
}

// New creates a Transmitter. Zero-valued options take package defaults.
func New(opts Options) *Transmitter {
	t := &Transmitter{
		sink:           opts.Sink,
		outbox:         opts.Outbox,
		timeout:        opts.Timeout,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		onError:        opts.OnError,
		logger:         opts.Logger,
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}
	if t.maxAttempts < 1 {
		t.maxAttempts = DefaultMaxAttempts
	}
	if t.initialBackoff <= 0 {
		t.initialBackoff = DefaultInitialBackoff
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// MarkPending records that tracker state changed since the last successful
// send.
func (t *Transmitter) MarkPending() { t.changes.Add(1) }

// Pending reports whether changes were marked after the start of the most
// recent successful send.
func (t *Transmitter) Pending() bool { return t.changes.Load() > t.acked.Load() }

func (t *Transmitter) ack(gen uint64) {
	for {
		cur := t.acked.Load()
		if gen <= cur || t.acked.CompareAndSwap(cur, gen) {
			return
		}
	}
}

// Stats returns the number of successful and failed sends.
func (t *Transmitter) Stats() (sent, failed int64) {
	return t.sent.Load(), t.failed.Load()
}

// Send serializes p and delivers it within the configured timeout. On
// failure the error is reported through OnError, the payload is parked in
// the outbox when one is configured, and the pending flag stays set.
func (t *Transmitter) Send(ctx context.Context, sess activity.Session, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	env := Envelope{Kind: p.Kind(), Body: body}
	gen := t.changes.Load()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	err = t.deliver(ctx, sess, env)
	sendDuration.WithLabelValues(string(env.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		t.failed.Add(1)
		sendCounter.WithLabelValues(string(env.Kind), "error").Inc()
		t.logger.Warn("transmission failed", "kind", env.Kind, "batch_id", p.BatchID, "err", err)
		if t.outbox != nil {
			if qerr := t.outbox.Enqueue(context.WithoutCancel(ctx), env); qerr != nil {
				t.logger.Error("outbox enqueue failed", "err", qerr)
			} else {
				outboxCounter.WithLabelValues("enqueued").Inc()
			}
		}
		if t.onError != nil {
			t.onError(err)
		}
		return err
	}

	t.sent.Add(1)
	t.ack(gen)
	sendCounter.WithLabelValues(string(env.Kind), "ok").Inc()
	t.logger.Debug("transmission delivered", "kind", env.Kind, "batch_id", p.BatchID, "bytes", len(body))

	// A drain already in progress will pick up anything parked before it.
	if t.outbox != nil && t.drainMu.TryLock() {
		n, derr := t.drain(ctx, sess)
		t.drainMu.Unlock()
		if derr != nil {
			t.logger.Warn("outbox drain stopped", "replayed", n, "err", derr)
		}
	}
	return nil
}

// Drain replays parked envelopes oldest first, stopping at the first
// failure. It returns the number delivered. Concurrent drains run one at a
// time.
func (t *Transmitter) Drain(ctx context.Context, sess activity.Session) (int, error) {
	if t.outbox == nil {
		return 0, nil
	}
	t.drainMu.Lock()
	defer t.drainMu.Unlock()
	return t.drain(ctx, sess)
}

func (t *Transmitter) drain(ctx context.Context, sess activity.Session) (int, error) {
	queued, err := t.outbox.Peek(ctx, drainBatch)
	if err != nil {
		return 0, fmt.Errorf("reading outbox: %w", err)
	}
	delivered := 0
	for _, q := range queued {
		if err := t.sink.Deliver(ctx, sess, q.Envelope); err != nil {
			if merr := t.outbox.MarkAttempt(ctx, q.ID, err.Error()); merr != nil {
				t.logger.Error("outbox mark attempt failed", "id", q.ID, "err", merr)
			}
			return delivered, err
		}
		if err := t.outbox.Remove(ctx, q.ID); err != nil {
			return delivered, fmt.Errorf("removing outbox entry %d: %w", q.ID, err)
		}
		delivered++
		outboxCounter.WithLabelValues("replayed").Inc()
	}
	return delivered, nil
}

// deliver makes up to maxAttempts attempts with exponential backoff between
// them. Non-retryable collector responses end the loop early.
func (t *Transmitter) deliver(ctx context.Context, sess activity.Session, env Envelope) error {
	op := func() error {
		err := t.sink.Deliver(ctx, sess, env)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	if t.maxAttempts == 1 {
		return t.sink.Deliver(ctx, sess, env)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.initialBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(t.maxAttempts-1)), ctx)

	err := backoff.Retry(op, policy)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// Close releases the sink.
func (t *Transmitter) Close() error {
	if t.sink == nil {
		return nil
	}
	return t.sink.Close()
}
