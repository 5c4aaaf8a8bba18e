//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// Windows has no Setsid equivalent.
func setDaemonAttrs(_ *exec.Cmd) {}

func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// Only a kill is reliably delivered on Windows.
func sigTERM() syscall.Signal { return syscall.SIGKILL }
