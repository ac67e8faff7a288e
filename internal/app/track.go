package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/config"
	"github.com/blackwell-systems/worktrack/internal/source"
	"github.com/blackwell-systems/worktrack/internal/store"
)

var (
	trackDaemon bool
	trackStop   bool
	trackQuiet  bool
	trackNotify bool
	trackUser   string
	trackTeam   string
)

// stopTimeout bounds the final transmission once shutdown is requested.
const stopTimeout = 30 * time.Second

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run a tracking session",
	Long: `Start a tracking session: sample the foreground application, detect
idle periods from system input, aggregate time into buckets and send
activity and bucket summaries to the configured collector. The session
stops on ctrl-c or SIGTERM, sending one final payload.

Examples:
  worktrack track                       # run in foreground (ctrl-c to stop)
  worktrack track --user u-1 --team t-1 # override the configured session
  worktrack track --notify              # desktop alerts when a bucket scores low
  worktrack track --daemon              # run in background, write PID file
  worktrack track --stop                # stop the background daemon`,
	RunE: runTrack,
}

func init() {
	trackCmd.Flags().BoolVar(&trackDaemon, "daemon", false, "Run in background mode (write PID file, log to file)")
	trackCmd.Flags().BoolVar(&trackStop, "stop", false, "Stop a running background daemon")
	trackCmd.Flags().BoolVar(&trackQuiet, "quiet", false, "Suppress terminal output")
	trackCmd.Flags().BoolVar(&trackNotify, "notify", false, "Send desktop notifications for bucket alerts (alerts.enabled)")
	trackCmd.Flags().StringVar(&trackUser, "user", "", "User id (overrides session.user_id)")
	trackCmd.Flags().StringVar(&trackTeam, "team", "", "Team id (overrides session.team_id)")
	rootCmd.AddCommand(trackCmd)
}

// pidFilePath returns the path to the daemon PID file.
func pidFilePath() string {
	return filepath.Join(config.ConfigDir(), "track.pid")
}

// logFilePath returns the path to the daemon log file.
func logFilePath() string {
	return filepath.Join(config.ConfigDir(), "track.log")
}

func runTrack(cmd *cobra.Command, args []string) error {
	if trackStop {
		return stopDaemon()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if trackNotify {
		cfg.Alerts.Enabled = true
	}
	sess := sessionFrom(cfg)
	if sess.UserID == "" {
		return errors.New("no user id: set session.user_id or pass --user")
	}

	if trackDaemon {
		return runDaemon(cfg, sess)
	}
	logger := NewLogger(cfg.Log, os.Stderr)
	var out io.Writer = os.Stdout
	if trackQuiet {
		out = io.Discard
	}
	return runSession(cmd.Context(), cfg, sess, logger, out)
}

// sessionFrom builds the tracked session from config and flag overrides.
func sessionFrom(cfg *config.Config) activity.Session {
	sess := activity.Session{
		UserID:    cfg.Session.UserID,
		TeamID:    cfg.Session.TeamID,
		AuthToken: cfg.Session.AuthToken,
	}
	if trackUser != "" {
		sess.UserID = trackUser
	}
	if trackTeam != "" {
		sess.TeamID = trackTeam
	}
	return sess
}

// runDaemon sets up PID and log files, then runs the session. The actual
// backgrounding should be done by the caller (nohup, &, etc.) since Go
// cannot reliably fork.
func runDaemon(cfg *config.Config, sess activity.Session) error {
	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	if pid, err := readPID(); err == nil {
		if processExists(pid) {
			return fmt.Errorf("daemon already running (PID %d). Use --stop to stop it", pid)
		}
		// Stale PID file, remove it.
		_ = os.Remove(pidFilePath())
	}

	pid := os.Getpid()
	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() { _ = os.Remove(pidFilePath()) }()

	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	logger := NewLogger(cfg.Log, logFile)
	logger.Info("worktrack daemon started", "pid", pid)
	return runSession(context.Background(), cfg, sess, logger, io.Discard)
}

// runSession wires the engine, then runs the tracking session, the metrics
// endpoint and signal handling until one of them ends.
func runSession(ctx context.Context, cfg *config.Config, sess activity.Session, logger *slog.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	clock := clockwork.NewRealClock()
	eng, err := newEngine(cfg, db, engineDeps{
		Clock:    clock,
		Logger:   logger,
		Out:      out,
		Activity: source.NewForegroundWindow(0),
		Inputs:   []source.InputSource{source.NewSystemIdle(clock, cfg.Idle.SystemPoll, logger)},
	})
	if err != nil {
		return err
	}
	defer func() { _ = eng.transmitter.Close() }()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, shutdownSignals...)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("shutdown requested", "signal", sig.String())
			return errShutdown
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		return eng.run(gctx, sess)
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}

// errShutdown ends the run group when a signal arrives.
var errShutdown = errors.New("shutdown requested")

// stopDaemon signals the background session and waits up to stopTimeout
// for it to exit, so its final transmission is not cut short.
func stopDaemon() error {
	pid, err := readPID()
	if err != nil {
		return fmt.Errorf("no daemon running (could not read PID file: %w)", err)
	}
	if !processExists(pid) {
		_ = os.Remove(pidFilePath())
		return fmt.Errorf("no daemon running (PID %d is not active, cleaned up stale PID file)", pid)
	}
	if err := terminate(pid); err != nil {
		return fmt.Errorf("failed to stop daemon (PID %d): %w", pid, err)
	}

	if !waitForExit(pid, stopTimeout, 200*time.Millisecond) {
		return fmt.Errorf("daemon (PID %d) did not exit within %s", pid, stopTimeout)
	}
	_ = os.Remove(pidFilePath())
	fmt.Printf("Stopped daemon (PID %d)\n", pid)
	return nil
}

// waitForExit polls until pid is gone or timeout elapses.
func waitForExit(pid int, timeout, every time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for processExists(pid) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(every)
	}
	return true
}

// readPID reads the daemon PID from the PID file.
func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
