//go:build unix

package main

import (
	"golang.org/x/sys/unix"

	clierrors "github.com/subtest-dev/subtest/internal/errors"
)

// signalExitCode follows the shell convention of 128 plus the signal number.
func signalExitCode(name string) int {
	num := unix.SignalNum(name)
	if num == 0 {
		return clierrors.ExitExecution
	}

	return 128 + int(num)
}
