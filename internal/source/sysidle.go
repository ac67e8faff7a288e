package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultIdlePoll is how often SystemIdle asks the OS for its idle time.
const DefaultIdlePoll = 5 * time.Second

// SystemIdle is an InputSource backed by the OS idle counter. It polls while
// at least one subscriber is registered and emits an input event whenever the
// OS reports input more recent than one poll interval.
type SystemIdle struct {
	clock    clockwork.Clock
	interval time.Duration
	goos     string
	run      runner
	logger   *slog.Logger
	hub      *Hub

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	warned atomic.Bool
}

// NewSystemIdle creates a poller. A nil clock uses the real clock and a nil
// logger uses slog.Default().
func NewSystemIdle(clock clockwork.Clock, interval time.Duration, logger *slog.Logger) *SystemIdle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultIdlePoll
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemIdle{
		clock:    clock,
		interval: interval,
		goos:     runtime.GOOS,
		run:      execRunner,
		logger:   logger,
		hub:      NewHub(),
	}
}

// Subscribe registers fn and starts polling if this is the first listener.
// The returned function stops polling once the last listener is removed.
func (s *SystemIdle) Subscribe(fn func(time.Time)) func() {
	unsub := s.hub.Subscribe(fn)

	s.mu.Lock()
	if s.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.poll(ctx, s.done)
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			s.mu.Lock()
			if s.hub.Listeners() > 0 || s.cancel == nil {
				s.mu.Unlock()
				return
			}
			cancel, done := s.cancel, s.done
			s.cancel, s.done = nil, nil
			s.mu.Unlock()

			cancel()
			<-done
		})
	}
}

func (s *SystemIdle) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			idle, err := s.IdleTime(ctx)
			if err != nil {
				s.reportFailure(err)
				continue
			}
			if idle < s.interval {
				s.hub.Emit(s.clock.Now().Add(-idle))
			}
		}
	}
}

// reportFailure warns on the first failed idle query and logs the rest at
// debug level. Without idle data no input is seen and the session goes idle.
func (s *SystemIdle) reportFailure(err error) {
	if s.warned.CompareAndSwap(false, true) {
		s.logger.Warn("system idle time unavailable; input will not be detected", "goos", s.goos, "err", err)
		return
	}
	s.logger.Debug("system idle query failed", "err", err)
}

// IdleTime returns how long the OS has seen no user input.
func (s *SystemIdle) IdleTime(ctx context.Context) (time.Duration, error) {
	switch s.goos {
	case "linux":
		out, err := s.run(ctx, "xprintidle")
		if err != nil {
			return 0, fmt.Errorf("xprintidle: %w", err)
		}
		ms, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing xprintidle output: %w", err)
		}
		return time.Duration(ms) * time.Millisecond, nil
	case "darwin":
		out, err := s.run(ctx, "ioreg", "-c", "IOHIDSystem")
		if err != nil {
			return 0, fmt.Errorf("ioreg: %w", err)
		}
		return parseHIDIdle(out)
	default:
		return 0, fmt.Errorf("system idle time unsupported on %s", s.goos)
	}
}

// parseHIDIdle extracts HIDIdleTime (nanoseconds) from ioreg output.
func parseHIDIdle(out []byte) (time.Duration, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, `"HIDIdleTime"`) {
			continue
		}
		_, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ns, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing HIDIdleTime: %w", err)
		}
		return time.Duration(ns), nil
	}
	return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
}
