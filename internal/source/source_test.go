package source

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

func TestHub_SubscribeEmitUnsubscribe(t *testing.T) {
	h := NewHub()
	var a, b int
	unsubA := h.Subscribe(func(time.Time) { a++ })
	unsubB := h.Subscribe(func(time.Time) { b++ })
	assert.Equal(t, 2, h.Listeners())

	h.Emit(time.Now())
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	unsubA()
	unsubA() // idempotent
	h.Emit(time.Now())
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, h.Listeners())

	unsubB()
	assert.Zero(t, h.Listeners())
}

func TestStatic(t *testing.T) {
	obs := activity.Observation{Kind: activity.KindApplication, Name: "Code"}
	got, err := Static(obs).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, obs, got)
}

// scripted returns a runner that answers by command name.
func scripted(outputs map[string]string, failing ...string) runner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		for _, f := range failing {
			if f == name {
				return nil, errors.New(name + " failed")
			}
		}
		key := name
		if len(args) > 0 {
			key = name + " " + args[len(args)-1]
		}
		if out, ok := outputs[key]; ok {
			return []byte(out), nil
		}
		return []byte(outputs[name]), nil
	}
}

func TestForegroundWindow_Linux(t *testing.T) {
	w := NewForegroundWindow(time.Second)
	w.goos = "linux"
	w.run = scripted(map[string]string{
		"xdotool getwindowname": "main.go - worktrack\n",
		"xdotool getwindowpid":  "4242\n",
		"ps 4242":               "code\n",
	})

	obs, err := w.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, activity.KindApplication, obs.Kind)
	assert.Equal(t, "code - main.go - worktrack", obs.Name)
}

func TestForegroundWindow_LinuxTitleOnly(t *testing.T) {
	w := NewForegroundWindow(time.Second)
	w.goos = "linux"
	w.run = scripted(map[string]string{"xdotool getwindowname": "Terminal"}, "ps")

	obs, err := w.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Terminal", obs.Name)
}

func TestForegroundWindow_MacOSBrowserTab(t *testing.T) {
	w := NewForegroundWindow(time.Second)
	w.goos = "darwin"
	w.run = scripted(map[string]string{"osascript": "Safari\nhttps://www.youtube.com/watch?v=1\n"})

	obs, err := w.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, activity.KindWebsite, obs.Kind)
	assert.Equal(t, "youtube.com", obs.Name)
	assert.Equal(t, "https://www.youtube.com/watch?v=1", obs.URL)
}

func TestForegroundWindow_MacOSApp(t *testing.T) {
	w := NewForegroundWindow(time.Second)
	w.goos = "darwin"
	w.run = scripted(map[string]string{"osascript": "Xcode\n\n"})

	obs, err := w.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, activity.Observation{Kind: activity.KindApplication, Name: "Xcode"}, obs)
}

func TestForegroundWindow_Failures(t *testing.T) {
	w := NewForegroundWindow(time.Second)
	w.goos = "linux"
	w.run = scripted(nil, "xdotool")
	_, err := w.Current(context.Background())
	assert.Error(t, err)

	w.run = scripted(map[string]string{"xdotool": ""}, "ps")
	_, err = w.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveWindow)

	w.goos = "plan9"
	_, err = w.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveWindow)
}

func TestHostOf(t *testing.T) {
	tests := map[string]string{
		"https://www.github.com/org/repo": "github.com",
		"http://reddit.com?x=1":           "reddit.com",
		"news.ycombinator.com/item":       "news.ycombinator.com",
		"about:blank":                     "about:blank",
	}
	for in, want := range tests {
		assert.Equal(t, want, hostOf(in), in)
	}
}

func TestParseHIDIdle(t *testing.T) {
	out := strings.Join([]string{
		`    | |   "HIDPointerAcceleration" = 45056`,
		`    | |   "HIDIdleTime" = 2500000000`,
	}, "\n")
	d, err := parseHIDIdle([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, d)

	_, err = parseHIDIdle([]byte("nothing here"))
	assert.Error(t, err)
}

func TestSystemIdle_EmitsOnRecentInput(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := NewSystemIdle(fc, 5*time.Second, nil)
	s.goos = "linux"
	s.run = scripted(map[string]string{"xprintidle": "1200\n"})

	events := make(chan time.Time, 4)
	unsub := s.Subscribe(func(at time.Time) { events <- at })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(5 * time.Second)

	select {
	case at := <-events:
		assert.Equal(t, fc.Now().Add(-1200*time.Millisecond), at)
	case <-ctx.Done():
		t.Fatal("no input event emitted")
	}

	unsub()
	unsub()
	assert.Zero(t, s.hub.Listeners())
	s.mu.Lock()
	assert.Nil(t, s.cancel, "poller stopped after last unsubscribe")
	s.mu.Unlock()
}

func TestSystemIdle_QuietWhenIdle(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := NewSystemIdle(fc, 5*time.Second, nil)
	s.goos = "linux"
	queried := make(chan struct{}, 4)
	s.run = func(context.Context, string, ...string) ([]byte, error) {
		queried <- struct{}{}
		return []byte("600000"), nil
	}

	var emitted int
	unsub := s.Subscribe(func(time.Time) { emitted++ })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(5 * time.Second)

	select {
	case <-queried:
	case <-ctx.Done():
		t.Fatal("idle time never queried")
	}
	unsub()
	assert.Zero(t, emitted)
}

func TestSystemIdle_WarnsOnceWhenUnavailable(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewSystemIdle(fc, 5*time.Second, logger)
	s.goos = "linux"
	queried := make(chan struct{}, 4)
	s.run = func(context.Context, string, ...string) ([]byte, error) {
		queried <- struct{}{}
		return nil, errors.New(`exec: "xprintidle": executable file not found in $PATH`)
	}

	unsub := s.Subscribe(func(time.Time) {})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	for i := 0; i < 3; i++ {
		fc.Advance(5 * time.Second)
		select {
		case <-queried:
		case <-ctx.Done():
			t.Fatal("idle time never queried")
		}
	}
	unsub()

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, "level=WARN"), out)
	assert.Equal(t, 2, strings.Count(out, "level=DEBUG"), out)
	assert.Contains(t, out, "input will not be detected")
}
