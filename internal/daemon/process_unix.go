//go:build !windows

package daemon

import "syscall"

// processAlive sends signal 0, which checks existence without delivering.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func signalProcess(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
