//go:build !unix

package spawn

import (
	"os"
	"os/exec"
)

func terminationSignal(exitErr *exec.ExitError) string {
	// Without wait-status introspection the only hint is the -1 code the
	// runtime reports for killed processes.
	if exitErr.ExitCode() == -1 {
		return "killed"
	}

	return ""
}

func signalTerm(p *os.Process) {
	if p == nil {
		return
	}

	_ = p.Kill()
}
