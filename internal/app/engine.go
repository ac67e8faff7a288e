package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/classify"
	"github.com/blackwell-systems/worktrack/internal/config"
	"github.com/blackwell-systems/worktrack/internal/output"
	"github.com/blackwell-systems/worktrack/internal/source"
	"github.com/blackwell-systems/worktrack/internal/store"
	"github.com/blackwell-systems/worktrack/internal/tracker"
	"github.com/blackwell-systems/worktrack/internal/transmit"
	"github.com/blackwell-systems/worktrack/internal/watcher"
)

// engineDeps are the collaborators that differ between a real run and a test.
type engineDeps struct {
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Out      io.Writer
	Activity source.ActivitySource
	Inputs   []source.InputSource
	Sink     transmit.Sink              // nil builds one from config
	Notify   func(watcher.Alert) error // nil uses desktop notifications
}

// engine is one fully wired tracking pipeline.
type engine struct {
	controller  *tracker.Controller
	transmitter *transmit.Transmitter
	db          *store.DB
	printer     *statusPrinter
	logger      *slog.Logger
}

// newEngine wires sink, transmitter, journal and controller from cfg.
func newEngine(cfg *config.Config, db *store.DB, deps engineDeps) (*engine, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	unit, err := transmit.ParseTimeUnit(cfg.Collector.TimeUnit)
	if err != nil {
		return nil, err
	}
	sink := deps.Sink
	if sink == nil {
		if sink, err = newSink(cfg); err != nil {
			return nil, err
		}
	}

	topts := transmit.Options{
		Sink:           sink,
		Timeout:        cfg.Collector.Timeout,
		MaxAttempts:    cfg.Transmit.MaxAttempts,
		InitialBackoff: cfg.Transmit.InitialBackoff,
		Logger:         deps.Logger,
	}
	if cfg.Outbox.Enabled {
		topts.Outbox = db.Outbox()
	}
	tr := transmit.New(topts)

	printer := newStatusPrinter(deps.Out)
	onSummary := printer.summary
	if cfg.Alerts.Enabled {
		notify := deps.Notify
		if notify == nil {
			notify = watcher.Notify
		}
		w := watcher.New(watcher.Thresholds{
			LowScore:  cfg.Alerts.LowScore,
			ScoreDrop: cfg.Alerts.ScoreDrop,
			IdleShare: cfg.Alerts.IdleShare,
		}, func(a watcher.Alert) {
			printer.alert(a)
			if err := notify(a); err != nil {
				deps.Logger.Debug("desktop notification failed", "err", err)
			}
		})
		onSummary = func(s activity.Summary) {
			printer.summary(s)
			w.Observe(s)
		}
	}

	ctl := tracker.New(tracker.Options{
		Clock:            deps.Clock,
		Logger:           deps.Logger,
		TickInterval:     cfg.TickInterval(),
		TransmitInterval: cfg.Transmit.Interval,
		IdleThreshold:    idleThreshold(cfg.Idle.Threshold),
		BucketSize:       cfg.Bucket.Size,
		RecentSize:       cfg.Transmit.ActivityHistory,
		TimeUnit:         unit,
		Activity:         deps.Activity,
		Inputs:           deps.Inputs,
		Classifier:       classify.New(classify.Rules, classify.BrowserHints),
		Sender:           tr,
		Journal:          db,
		OnUpdate:         printer.update,
		OnSummary:        onSummary,
		OnError:          printer.failure,
	})

	return &engine{
		controller:  ctl,
		transmitter: tr,
		db:          db,
		printer:     printer,
		logger:      deps.Logger,
	}, nil
}

// idleThreshold maps a configured zero threshold onto the controller's
// explicit zero.
func idleThreshold(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

// newSink builds the configured transport.
func newSink(cfg *config.Config) (transmit.Sink, error) {
	switch cfg.Collector.Transport {
	case "", "http":
		return transmit.NewHTTPSink(&http.Client{}, cfg.Collector.BaseURL,
			cfg.Collector.TrackPath, cfg.Collector.SummaryPath), nil
	case "kafka":
		return transmit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Collector.Transport)
	}
}

// run starts a session, blocks until ctx is done and then stops it.
func (e *engine) run(ctx context.Context, sess activity.Session) error {
	h, err := e.controller.Start(ctx, sess)
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	if err := e.db.StartSession(ctx, h.ID(), sess, h.Started()); err != nil {
		e.logger.Warn("journaling session start failed", "err", err)
	}
	e.printer.started(h)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := e.controller.Stop(stopCtx, h); err != nil {
		return fmt.Errorf("stopping session: %w", err)
	}
	final := e.controller.Snapshot()
	if err := e.db.EndSession(stopCtx, h.ID(), final); err != nil {
		e.logger.Warn("journaling session end failed", "err", err)
	}
	sent, failed := e.transmitter.Stats()
	e.printer.stopped(final, delivery{sent: sent, failed: failed, pending: e.transmitter.Pending()})
	return nil
}

// statusPrinter writes terminal output for a foreground session. It prints
// a line only when the state or the current activity changes.
type statusPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	lastIdle bool
	lastName string
	printed  bool
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	if w == nil {
		w = io.Discard
	}
	return &statusPrinter{w: w}
}

func (p *statusPrinter) started(h *tracker.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "worktrack tracking... (session %s, started %s)\n",
		h.ID(), h.Started().Format("15:04:05"))
}

// update runs on the session goroutine after every tick.
func (p *statusPrinter) update(snap activity.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if line, ok := p.line(snap); ok {
		fmt.Fprintln(p.w, line)
	}
}

func (p *statusPrinter) line(snap activity.Snapshot) (string, bool) {
	name := ""
	if snap.Current != nil {
		name = snap.Current.Name
	}
	if p.printed && snap.Idle == p.lastIdle && (snap.Idle || name == p.lastName) {
		return "", false
	}
	p.printed, p.lastIdle, p.lastName = true, snap.Idle, name

	ts := time.Now().Format("15:04:05")
	if snap.Idle || snap.Current == nil {
		return fmt.Sprintf("[%s] %s idle (score %d)", ts, output.StyleWarning.Render("-"), snap.ProductivityScore), true
	}
	return fmt.Sprintf("[%s] %s %s %s (score %d)", ts, output.StyleSuccess.Render(checkMark()),
		name, output.CategoryLabel(snap.Current.Category), snap.ProductivityScore), true
}

func (p *statusPrinter) summary(s activity.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
	fmt.Fprint(p.w, output.RenderSummary(s))
}

// failure reports a transmission error as a non-fatal warning; tracking
// continues. It may be called from send goroutines.
func (p *statusPrinter) failure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s transmission failed: %v\n",
		time.Now().Format("15:04:05"), output.StyleError.Render(crossMark()), err)
}

func (p *statusPrinter) alert(a watcher.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	style := output.StyleMuted
	switch a.Level {
	case watcher.LevelCritical:
		style = output.StyleError
	case watcher.LevelWarning:
		style = output.StyleWarning
	}
	fmt.Fprintf(p.w, "[%s] %s %s\n", a.Time.Local().Format("15:04:05"), style.Render(a.Title), a.Message)
}

// delivery is the transmitter's tally for the session.
type delivery struct {
	sent, failed int64
	pending      bool
}

func (d delivery) String() string {
	line := fmt.Sprintf("Transmissions: %d sent, %d failed", d.sent, d.failed)
	if d.pending {
		line += " " + output.StyleWarning.Render("(latest changes not delivered)")
	}
	return line
}

func (p *statusPrinter) stopped(final activity.Snapshot, d delivery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, output.Section("Session"))
	fmt.Fprintln(p.w)
	fmt.Fprint(p.w, output.RenderStatus(final))
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, d)
	fmt.Fprintln(p.w, "\nStopped.")
}

// checkMark returns a terminal check mark indicator.
func checkMark() string {
	return "\xe2\x9c\x93"
}

// crossMark returns a terminal cross indicator.
func crossMark() string {
	return "\xe2\x9c\x97"
}
