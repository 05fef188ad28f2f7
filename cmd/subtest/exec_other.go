//go:build !unix

package main

import clierrors "github.com/subtest-dev/subtest/internal/errors"

func signalExitCode(string) int {
	return clierrors.ExitExecution
}
