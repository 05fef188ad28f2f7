//go:build unix

package spawn

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// terminationSignal names the signal that killed the child, or "" for a
// normal exit.
func terminationSignal(exitErr *exec.ExitError) string {
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return ""
	}

	return unix.SignalName(unix.Signal(status.Signal()))
}

// signalTerm delivers the polite stop signal ahead of the forced kill.
func signalTerm(p *os.Process) {
	if p == nil {
		return
	}

	_ = p.Signal(unix.SIGTERM)
}
