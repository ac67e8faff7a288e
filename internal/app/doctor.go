package app

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/worktrack/internal/config"
	"github.com/blackwell-systems/worktrack/internal/output"
	"github.com/blackwell-systems/worktrack/internal/source"
	"github.com/blackwell-systems/worktrack/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check whether the worktrack setup is healthy",
	Long: `Run a series of health checks against your worktrack configuration,
the platform tools used for activity and idle detection, the collector
and the local database. Prints a pass/fail line for each check and a
summary of how many checks passed.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck holds the result of a single health check.
type doctorCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// doctorOutput is the JSON-serializable result of the doctor command.
type doctorOutput struct {
	Checks      []doctorCheck `json:"checks"`
	PassedCount int           `json:"passed"`
	TotalCount  int           `json:"total"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	if flagNoColor {
		output.SetNoColor(true)
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		// A broken config is itself the finding.
		return renderDoctor([]doctorCheck{{Name: "Configuration", Message: err.Error()}})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	checks := []doctorCheck{
		{Name: "Configuration", Passed: true, Message: "loaded and valid"},
		checkSession(cfg),
		checkActivitySource(),
		checkIdleSource(ctx, cfg),
		checkCollector(ctx, cfg),
		checkDatabase(ctx, cfg.Store.Path),
		checkDaemon(),
	}
	return renderDoctor(checks)
}

func renderDoctor(checks []doctorCheck) error {
	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}

	if flagJSON {
		return writeJSON(doctorOutput{Checks: checks, PassedCount: passed, TotalCount: len(checks)})
	}

	fmt.Println(output.Section("Doctor"))
	fmt.Println()
	for _, c := range checks {
		renderDoctorCheck(c)
	}
	fmt.Println()
	summary := fmt.Sprintf("%d/%d checks passed", passed, len(checks))
	if passed == len(checks) {
		fmt.Printf(" %s\n\n", output.StyleSuccess.Render(summary))
	} else {
		fmt.Printf(" %s\n\n", output.StyleWarning.Render(summary))
	}
	return nil
}

// renderDoctorCheck prints a single check result line.
func renderDoctorCheck(c doctorCheck) {
	var indicator string
	if c.Passed {
		indicator = output.StyleSuccess.Render(checkMark())
	} else {
		indicator = output.StyleWarning.Render(crossMark())
	}
	label := output.StyleBold.Render(c.Name)
	detail := output.StyleMuted.Render(c.Message)
	fmt.Printf("  %s  %-30s %s\n", indicator, label, detail)
}

// checkSession verifies a user id is configured and reports whether a
// token will be sent.
func checkSession(cfg *config.Config) doctorCheck {
	if cfg.Session.UserID == "" {
		return doctorCheck{Name: "Session", Message: "session.user_id is not set (pass --user to track)"}
	}
	token := "no auth token"
	if cfg.Session.AuthToken != "" {
		token = "bearer token set"
	}
	return doctorCheck{Name: "Session", Passed: true, Message: fmt.Sprintf("user %s, %s", cfg.Session.UserID, token)}
}

// checkActivitySource verifies the foreground window tool is installed.
func checkActivitySource() doctorCheck {
	tool, ok := source.NewForegroundWindow(0).Available()
	if tool == "" {
		return doctorCheck{Name: "Activity source", Message: fmt.Sprintf("unsupported platform %s; every tick counts as idle", runtime.GOOS)}
	}
	if !ok {
		return doctorCheck{Name: "Activity source", Message: fmt.Sprintf("%s not found in PATH", tool)}
	}
	return doctorCheck{Name: "Activity source", Passed: true, Message: tool}
}

// checkIdleSource asks the OS for the current idle time once.
func checkIdleSource(ctx context.Context, cfg *config.Config) doctorCheck {
	idle, err := source.NewSystemIdle(nil, cfg.Idle.SystemPoll, nil).IdleTime(ctx)
	if err != nil {
		return doctorCheck{Name: "Idle detection", Message: err.Error()}
	}
	return doctorCheck{Name: "Idle detection", Passed: true, Message: fmt.Sprintf("system idle for %s", output.FormatDuration(idle))}
}

// checkCollector verifies the configured transport endpoint accepts a TCP
// connection. It does not post a payload.
func checkCollector(ctx context.Context, cfg *config.Config) doctorCheck {
	var addr, label string
	switch cfg.Collector.Transport {
	case "kafka":
		addr, label = cfg.Kafka.Brokers[0], "Kafka broker"
	default:
		label = "Collector"
		u, err := url.Parse(cfg.Collector.BaseURL)
		if err != nil || u.Host == "" {
			return doctorCheck{Name: label, Message: fmt.Sprintf("invalid base_url %q", cfg.Collector.BaseURL)}
		}
		addr = u.Host
		if u.Port() == "" {
			port := "80"
			if u.Scheme == "https" {
				port = "443"
			}
			addr = net.JoinHostPort(u.Hostname(), port)
		}
	}

	d := net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return doctorCheck{Name: label, Message: fmt.Sprintf("unreachable: %v", err)}
	}
	_ = conn.Close()
	return doctorCheck{Name: label, Passed: true, Message: addr}
}

// checkDatabase opens the SQLite database and counts journaled summaries
// and parked payloads.
func checkDatabase(ctx context.Context, path string) doctorCheck {
	if _, err := os.Stat(path); err != nil {
		return doctorCheck{
			Name:    "SQLite database",
			Message: fmt.Sprintf("not found at %s (run 'worktrack track' to create)", path),
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return doctorCheck{Name: "SQLite database", Message: err.Error()}
	}
	defer func() { _ = db.Close() }()

	summaries, err := db.ListSummaries(ctx, time.Time{}, 0)
	if err != nil {
		return doctorCheck{Name: "SQLite database", Message: err.Error()}
	}
	parked, err := db.Outbox().List(ctx)
	if err != nil {
		return doctorCheck{Name: "SQLite database", Message: err.Error()}
	}
	return doctorCheck{
		Name:    "SQLite database",
		Passed:  true,
		Message: fmt.Sprintf("%s (%d summaries, %d parked)", path, len(summaries), len(parked)),
	}
}

// checkDaemon reports whether a background session is running.
func checkDaemon() doctorCheck {
	pid, err := readPID()
	if err != nil {
		return doctorCheck{Name: "Track daemon", Message: "not running (no PID file)"}
	}
	if !processExists(pid) {
		return doctorCheck{Name: "Track daemon", Message: fmt.Sprintf("PID %d is not running (stale PID file)", pid)}
	}
	return doctorCheck{Name: "Track daemon", Passed: true, Message: fmt.Sprintf("running (PID %d)", pid)}
}
