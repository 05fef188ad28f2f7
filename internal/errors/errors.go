// Package errors provides structured error types for the subtest harness.
//
// HarnessError wraps errors with user-facing messages, hints, and exit codes
// so the CLI can report harness breakage (a worker that could not be spawned)
// distinctly from a child that ran and failed.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for harness errors. A child's own exit status is propagated
// directly and never mapped through these.
const (
	ExitSuccess   = 0  // Successful execution
	ExitGeneral   = 1  // General error
	ExitConfig    = 4  // Configuration error
	ExitTimeout   = 5  // Child killed after timeout
	ExitExecution = 6  // Child ran and failed
	ExitSpawn     = 7  // Child process could not be created
	ExitCapture   = 8  // Child output could not be read
	ExitUsage     = 64 // Command line usage error (BSD convention)
)

// HarnessError represents a user-facing harness error with actionable guidance.
type HarnessError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *HarnessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// New creates a new HarnessError with the given message and exit code.
func New(code int, message string) *HarnessError {
	return &HarnessError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a HarnessError.
func Wrap(code int, message string, cause error) *HarnessError {
	return &HarnessError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *HarnessError) WithHint(hint string) *HarnessError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with HarnessError.
func As(err error, target **HarnessError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// SpawnFailed returns an error for a child process that could not be created.
// This is harness breakage, not a test result.
func SpawnFailed(cause error) *HarnessError {
	return &HarnessError{
		Message: "Failed to spawn child process",
		Hint:    "Check that the executable exists and the OS is not out of process slots",
		Cause:   cause,
		Code:    ExitSpawn,
	}
}

// CommandNotFound returns an error for an executable missing from PATH.
func CommandNotFound(name string) *HarnessError {
	return &HarnessError{
		Message: fmt.Sprintf("Command not found: %s", name),
		Hint:    "Check the spelling or install the command",
		Code:    ExitSpawn,
	}
}

// CaptureFailed returns an error for output that could not be read back.
func CaptureFailed(cause error) *HarnessError {
	return &HarnessError{
		Message: "Failed to capture child output",
		Hint:    "This is an OS-level pipe failure, not a test failure",
		Cause:   cause,
		Code:    ExitCapture,
	}
}

// PTYUnsupported returns an error for PTY capture on a non-unix platform.
func PTYUnsupported(cause error) *HarnessError {
	return &HarnessError{
		Message: "PTY capture is not supported on this platform",
		Hint:    "Drop --pty to capture through a plain pipe",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// InvalidReportFormat returns an error for an unknown --report value.
func InvalidReportFormat(format string, supported []string) *HarnessError {
	return &HarnessError{
		Message: fmt.Sprintf("Invalid report format: %s", format),
		Hint:    fmt.Sprintf("Supported formats: %s", strings.Join(supported, ", ")),
		Code:    ExitUsage,
	}
}

// NoCommand returns an error when exec is invoked without a command.
func NoCommand() *HarnessError {
	return &HarnessError{
		Message: "No command to execute",
		Hint:    "Pass the command after '--', e.g. 'subtest exec -- sh -c \"echo hi\"'",
		Code:    ExitUsage,
	}
}

// ConfigFailed returns an error for configuration load failures.
func ConfigFailed(operation string, cause error) *HarnessError {
	return &HarnessError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your subtest config directory",
		Cause:   cause,
		Code:    ExitConfig,
	}
}
