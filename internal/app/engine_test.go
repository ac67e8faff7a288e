package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/config"
	"github.com/blackwell-systems/worktrack/internal/output"
	"github.com/blackwell-systems/worktrack/internal/source"
	"github.com/blackwell-systems/worktrack/internal/store"
	"github.com/blackwell-systems/worktrack/internal/transmit"
	"github.com/blackwell-systems/worktrack/internal/watcher"
)

type received struct {
	path string
	auth string
	body map[string]any
}

type collector struct {
	mu  sync.Mutex
	got []received
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	c.mu.Lock()
	c.got = append(c.got, received{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
	c.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (c *collector) requests() []received {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]received(nil), c.got...)
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.Collector.BaseURL = baseURL
	cfg.Transmit.Interval = time.Hour
	return cfg
}

func TestEngine_RunsSessionEndToEnd(t *testing.T) {
	output.SetNoColor(true)
	coll := &collector{}
	srv := httptest.NewServer(coll)
	defer srv.Close()

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	clock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))
	var out strings.Builder
	eng, err := newEngine(testConfig(t, srv.URL), db, engineDeps{
		Clock:    clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Out:      &out,
		Activity: source.Static(activity.Observation{Kind: activity.KindApplication, Name: "Visual Studio Code"}),
	})
	require.NoError(t, err)

	sess := activity.Session{UserID: "u-1", TeamID: "t-1", AuthToken: "tok"}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.run(ctx, sess) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 2))
	clock.Advance(10 * time.Minute)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}

	reqs := coll.requests()
	require.Len(t, reqs, 1, "exactly one final transmission")
	final := reqs[0]
	assert.Equal(t, config.DefaultCollector.SummaryPath, final.path)
	assert.Equal(t, "Bearer tok", final.auth)
	assert.Equal(t, "u-1", final.body["user_id"])
	assert.Equal(t, "2026-03-02T09:10:00.000Z", final.body["end_time"])
	active := final.body["total_active_time"].(float64)
	idle := final.body["total_idle_time"].(float64)
	assert.InDelta(t, 600000, active+idle, 1e-6)

	sessions, err := db.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].EndedAt.IsZero())

	summaries, err := db.ListSummaries(context.Background(), time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	assert.Contains(t, out.String(), "worktrack tracking...")
	assert.Contains(t, out.String(), "Transmissions: 1 sent, 0 failed\n")
	assert.Contains(t, out.String(), "Stopped.")
}

func TestEngine_OutboxParksFailedFinalSend(t *testing.T) {
	output.SetNoColor(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cfg := testConfig(t, srv.URL)
	cfg.Outbox.Enabled = true
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))
	var out strings.Builder
	eng, err := newEngine(cfg, db, engineDeps{
		Clock:    clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Out:      &out,
		Activity: source.Static(activity.Observation{Name: "Slack"}),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.run(ctx, activity.Session{UserID: "u-1"}) }()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 2))
	clock.Advance(time.Minute)
	cancel()
	require.NoError(t, <-done, "a failed final send does not fail the session")

	parked, err := db.Outbox().List(context.Background())
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, string(transmit.KindSummary), parked[0].Kind)
	assert.Contains(t, out.String(), "transmission failed")
	assert.Contains(t, out.String(), "Transmissions: 0 sent, 1 failed (latest changes not delivered)")
}

func TestEngine_AlertsOnClosedBuckets(t *testing.T) {
	output.SetNoColor(true)
	srv := httptest.NewServer(&collector{})
	defer srv.Close()

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cfg := testConfig(t, srv.URL)
	cfg.Alerts.Enabled = true
	cfg.Alerts.LowScore = 60

	var mu sync.Mutex
	var notified []watcher.Alert
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))
	var out strings.Builder
	eng, err := newEngine(cfg, db, engineDeps{
		Clock:    clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Out:      &out,
		Activity: source.Static(activity.Observation{Kind: activity.KindApplication, Name: "Netflix"}),
		Notify: func(a watcher.Alert) error {
			mu.Lock()
			notified = append(notified, a)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.run(ctx, activity.Session{UserID: "u-1"}) }()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 2))
	clock.Advance(10 * time.Minute)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, notified)
	assert.Equal(t, watcher.LevelCritical, notified[0].Level)
	assert.Contains(t, out.String(), "Low productivity")
}

func TestNewSink(t *testing.T) {
	cfg := testConfig(t, "http://collector.example")
	sink, err := newSink(cfg)
	require.NoError(t, err)
	httpSink, ok := sink.(*transmit.HTTPSink)
	require.True(t, ok)
	assert.Equal(t, "http://collector.example/api/activity/track", httpSink.URLFor(transmit.KindTrack))

	cfg.Collector.Transport = "kafka"
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	sink, err = newSink(cfg)
	require.NoError(t, err)
	assert.IsType(t, &transmit.KafkaSink{}, sink)
	_ = sink.Close()

	cfg.Collector.Transport = "carrier-pigeon"
	_, err = newSink(cfg)
	assert.Error(t, err)
}

func TestIdleThreshold(t *testing.T) {
	assert.Equal(t, time.Duration(-1), idleThreshold(0))
	assert.Equal(t, 5*time.Minute, idleThreshold(5*time.Minute))
}

func TestStatusPrinter_PrintsOnlyChanges(t *testing.T) {
	output.SetNoColor(true)
	p := newStatusPrinter(io.Discard)
	code := activity.Snapshot{Current: &activity.CurrentActivity{
		Observation: activity.Observation{Name: "Code"},
		Category:    activity.CategoryProductive,
	}}

	line, ok := p.line(code)
	require.True(t, ok)
	assert.Contains(t, line, "Code")
	assert.Contains(t, line, "productive")

	_, ok = p.line(code)
	assert.False(t, ok, "unchanged activity is not repeated")

	idle := code
	idle.Idle = true
	line, ok = p.line(idle)
	require.True(t, ok)
	assert.Contains(t, line, "idle")

	_, ok = p.line(idle)
	assert.False(t, ok)

	line, ok = p.line(code)
	assert.True(t, ok, "returning from idle prints again")
	assert.Contains(t, line, "Code")
}

func TestSessionFrom_FlagsOverrideConfig(t *testing.T) {
	cfg := testConfig(t, "http://collector.example")
	cfg.Session = config.Session{UserID: "cfg-user", TeamID: "cfg-team", AuthToken: "tok"}

	trackUser, trackTeam = "", ""
	assert.Equal(t, activity.Session{UserID: "cfg-user", TeamID: "cfg-team", AuthToken: "tok"}, sessionFrom(cfg))

	trackUser = "flag-user"
	defer func() { trackUser = "" }()
	sess := sessionFrom(cfg)
	assert.Equal(t, "flag-user", sess.UserID)
	assert.Equal(t, "cfg-team", sess.TeamID)
}

func TestDelivery_String(t *testing.T) {
	output.SetNoColor(true)
	assert.Equal(t, "Transmissions: 4 sent, 0 failed", delivery{sent: 4}.String())
	assert.Equal(t, "Transmissions: 2 sent, 1 failed (latest changes not delivered)",
		delivery{sent: 2, failed: 1, pending: true}.String())
}
