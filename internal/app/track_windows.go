//go:build windows

package app

import (
	"os"
)

var shutdownSignals = []os.Signal{os.Interrupt}

// terminate kills the daemon. Windows has no SIGTERM, so the final summary
// of a killed daemon is lost.
func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Windows; Signal fails for a dead pid.
	return proc.Signal(os.Signal(nil)) == nil
}
