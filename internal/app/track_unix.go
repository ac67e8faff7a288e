//go:build !windows

package app

import (
	"os"
	"syscall"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// terminate asks the daemon to stop. SIGTERM lets it flush the final
// summary before exiting.
func terminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

func processExists(pid int) bool {
	// Signal 0 checks the process without delivering anything.
	return syscall.Kill(pid, 0) == nil
}
