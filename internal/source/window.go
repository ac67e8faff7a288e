package source

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// runner executes an external command and returns its stdout.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// frontAppScript prints the frontmost application name, and for known
// browsers the active tab URL on a second line.
const frontAppScript = `tell application "System Events"
	set appName to name of first application process whose frontmost is true
end tell
set tabURL to ""
try
	if appName is "Safari" then
		tell application "Safari" to set tabURL to URL of front document
	else if appName is in {"Google Chrome", "Brave Browser", "Microsoft Edge", "Chromium"} then
		tell application appName to set tabURL to URL of active tab of front window
	end if
end try
return appName & linefeed & tabURL`

// ForegroundWindow asks the OS for the frontmost application. On macOS it
// uses osascript, on Linux xdotool. Other platforms always fail.
type ForegroundWindow struct {
	timeout time.Duration
	goos    string
	run     runner
}

// NewForegroundWindow creates a ForegroundWindow. Each query is bounded by
// timeout.
func NewForegroundWindow(timeout time.Duration) *ForegroundWindow {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ForegroundWindow{timeout: timeout, goos: runtime.GOOS, run: execRunner}
}

// Current returns the foreground observation. A page with a URL is reported
// as a website, anything else as an application.
func (w *ForegroundWindow) Current(ctx context.Context) (activity.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	switch w.goos {
	case "darwin":
		return w.currentMacOS(ctx)
	case "linux":
		return w.currentLinux(ctx)
	default:
		return activity.Observation{}, fmt.Errorf("foreground window unsupported on %s: %w", w.goos, ErrNoActiveWindow)
	}
}

func (w *ForegroundWindow) currentMacOS(ctx context.Context) (activity.Observation, error) {
	out, err := w.run(ctx, "osascript", "-e", frontAppScript)
	if err != nil {
		return activity.Observation{}, fmt.Errorf("osascript: %w", err)
	}
	name, url, _ := strings.Cut(strings.TrimRight(string(out), "\n"), "\n")
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" {
		return activity.Observation{}, ErrNoActiveWindow
	}
	if url != "" {
		return activity.Observation{Kind: activity.KindWebsite, Name: hostOf(url), URL: url}, nil
	}
	return activity.Observation{Kind: activity.KindApplication, Name: name}, nil
}

// currentLinux reads the active window title and the owning process name.
// The title is used when the process name cannot be resolved.
func (w *ForegroundWindow) currentLinux(ctx context.Context) (activity.Observation, error) {
	title, err := w.run(ctx, "xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		return activity.Observation{}, fmt.Errorf("xdotool: %w", err)
	}
	name := strings.TrimSpace(string(title))

	if pid, err := w.run(ctx, "xdotool", "getactivewindow", "getwindowpid"); err == nil {
		if comm, err := w.run(ctx, "ps", "-o", "comm=", "-p", strings.TrimSpace(string(pid))); err == nil {
			if proc := strings.TrimSpace(string(comm)); proc != "" {
				if name != "" && !strings.EqualFold(proc, name) {
					name = proc + " - " + name
				} else {
					name = proc
				}
			}
		}
	}
	if name == "" {
		return activity.Observation{}, ErrNoActiveWindow
	}
	return activity.Observation{Kind: activity.KindApplication, Name: name}, nil
}

// hostOf returns the host part of a URL, or the URL itself if it has none.
func hostOf(url string) string {
	s := url
	if _, rest, ok := strings.Cut(s, "://"); ok {
		s = rest
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	if s == "" {
		return url
	}
	return s
}

// Available reports whether the platform's window tool is on PATH.
func (w *ForegroundWindow) Available() (string, bool) {
	var tool string
	switch w.goos {
	case "darwin":
		tool = "osascript"
	case "linux":
		tool = "xdotool"
	default:
		return "", false
	}
	_, err := exec.LookPath(tool)
	return tool, err == nil
}
