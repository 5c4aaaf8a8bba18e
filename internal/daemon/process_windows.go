//go:build windows

package daemon

import (
	"os"
	"syscall"
)

// FindProcess always succeeds on Windows, so liveness needs a signal probe.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Only os.Kill is reliably delivered on Windows.
func signalProcess(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}
