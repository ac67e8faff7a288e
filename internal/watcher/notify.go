package watcher

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// Notify raises a desktop notification for alert, falling back to a line on
// stderr when the platform has no notifier or it fails.
func Notify(alert Alert) error {
	name, args, ok := notifyCommand(runtime.GOOS, alert)
	if !ok {
		return notifyFallback(os.Stderr, alert)
	}
	if _, err := exec.LookPath(name); err != nil {
		return notifyFallback(os.Stderr, alert)
	}
	if err := exec.Command(name, args...).Run(); err != nil {
		return notifyFallback(os.Stderr, alert)
	}
	return nil
}

// notifyCommand returns the notifier invocation for goos.
func notifyCommand(goos string, alert Alert) (string, []string, bool) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title "worktrack" subtitle %q`,
			alert.Message, alert.Title)
		return "osascript", []string{"-e", script}, true
	case "linux":
		args := []string{"--app-name=worktrack"}
		switch alert.Level {
		case LevelCritical:
			args = append(args, "--urgency=critical")
		case LevelInfo:
			args = append(args, "--urgency=low")
		}
		return "notify-send", append(args, alert.Title, alert.Message), true
	default:
		return "", nil, false
	}
}

func notifyFallback(w io.Writer, alert Alert) error {
	_, err := fmt.Fprintf(w, "[%s] %s: %s\n", alert.Level, alert.Title, alert.Message)
	return err
}
