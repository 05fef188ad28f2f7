// Package spawn runs a single child process to completion, capturing its
// standard output while it runs and classifying how it terminated.
//
// The capture side is drained concurrently with the wait: a child that
// writes more than the pipe buffer holds must never deadlock against a
// parent that is blocked in Wait.
package spawn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultKillDelay is the gap between the polite termination signal and the
// forced kill when a timed-out child ignores the first signal.
const DefaultKillDelay = 2 * time.Second

// Spec describes one child process execution.
type Spec struct {
	// Path is the executable to run.
	Path string

	// Args are the arguments, not including the executable itself.
	Args []string

	// Env entries are appended to the parent's environment.
	Env []string

	// Dir is the working directory. Empty means inherit.
	Dir string

	// CombineStderr routes stderr into the same pipe as stdout, preserving
	// interleaving order. When false, stderr is drained into its own buffer.
	CombineStderr bool

	// UsePTY attaches the child's stdout to a pseudo-terminal instead of a
	// pipe. Unix only.
	UsePTY bool

	// Timeout bounds the child's run. Zero means wait forever.
	Timeout time.Duration

	// KillDelay is how long to wait after the termination signal before
	// force-killing. Zero means DefaultKillDelay.
	KillDelay time.Duration
}

// Result is the fully-terminated child's classification and captured streams.
// It is only produced once the child has exited and both drains have hit EOF.
type Result struct {
	// Stdout is the complete captured standard output (plus stderr when
	// CombineStderr was set).
	Stdout []byte

	// Stderr is the separately captured standard error. Empty in
	// CombineStderr and PTY modes.
	Stderr []byte

	// ExitCode is the child's exit code, or -1 if it died by signal.
	ExitCode int

	// Signal is the name of the terminating signal (e.g. "SIGKILL"),
	// empty for a normal exit.
	Signal string

	// TimedOut reports that the harness killed the child after Timeout.
	TimedOut bool

	// Duration is wall time from start to exit.
	Duration time.Duration
}

// Success reports a normal exit with code zero.
func (r *Result) Success() bool {
	return r.Signal == "" && !r.TimedOut && r.ExitCode == 0
}

// Error reasons distinguishing harness breakage from child failure.
// A non-zero exit or a signal death is data in the Result, never an Error.
const (
	ReasonSpawn   = "spawn_failure"
	ReasonCapture = "capture_failure"
)

// Error is a harness-level failure: the child could not be started, or its
// output could not be read. Callers must not report these as test outcomes.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsSpawnFailure reports whether err is a process-creation failure.
func IsSpawnFailure(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Reason == ReasonSpawn
}

// IsCaptureFailure reports whether err is an output-capture failure.
func IsCaptureFailure(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Reason == ReasonCapture
}

// Run spawns the child described by spec, drains its output, waits for it to
// terminate, and returns the classified result.
//
// Context cancellation terminates the child and returns the context error;
// spec.Timeout expiring terminates the child and returns a Result with
// TimedOut set, carrying whatever output was drained before the kill.
func Run(ctx context.Context, spec *Spec) (*Result, error) {
	if spec.Path == "" {
		return nil, &Error{Reason: ReasonSpawn, Cause: errors.New("no executable path")}
	}

	cmd := exec.Command(spec.Path, spec.Args...) //nolint:gosec // G204: callers control the command line
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	var stdoutBuf, stderrBuf bytes.Buffer

	var drains errgroup.Group

	if spec.UsePTY {
		ptmx, err := startPTY(cmd)
		if err != nil {
			return nil, &Error{Reason: ReasonSpawn, Cause: err}
		}

		defer func() { _ = ptmx.Close() }()

		drains.Go(func() error {
			return drainPTY(&stdoutBuf, ptmx)
		})
	} else {
		stdoutR, stdoutW, err := os.Pipe()
		if err != nil {
			return nil, &Error{Reason: ReasonSpawn, Cause: err}
		}

		cmd.Stdout = stdoutW

		var stderrR, stderrW *os.File

		if spec.CombineStderr {
			cmd.Stderr = stdoutW
		} else {
			stderrR, stderrW, err = os.Pipe()
			if err != nil {
				_ = stdoutR.Close()
				_ = stdoutW.Close()

				return nil, &Error{Reason: ReasonSpawn, Cause: err}
			}

			cmd.Stderr = stderrW
		}

		if err := cmd.Start(); err != nil {
			closeAll(stdoutR, stdoutW, stderrR, stderrW)

			return nil, &Error{Reason: ReasonSpawn, Cause: err}
		}

		// The child holds its own copies of the write ends; the parent's
		// must close now or the drains never see EOF.
		_ = stdoutW.Close()

		if stderrW != nil {
			_ = stderrW.Close()
		}

		drains.Go(func() error {
			return drainPipe(&stdoutBuf, stdoutR)
		})

		if stderrR != nil {
			drains.Go(func() error {
				return drainPipe(&stderrBuf, stderrR)
			})
		}
	}

	slog.Default().Debug(
		"child process started",
		slog.String("component", "spawn"),
		slog.String("event.type", "spawn.start"),
		slog.String("spawn.path", spec.Path),
		slog.Int("spawn.pid", cmd.Process.Pid),
	)

	startedAt := time.Now()

	waitCh := make(chan error, 1)

	go func() {
		waitCh <- cmd.Wait()
	}()

	var timeoutCh <-chan time.Time

	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()

		timeoutCh = timer.C
	}

	var (
		waitErr  error
		timedOut bool
	)

	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		terminate(cmd, spec.killDelay(), waitCh)
		_ = drains.Wait()

		return nil, fmt.Errorf("child run canceled: %w", ctx.Err())
	case <-timeoutCh:
		timedOut = true
		waitErr = terminate(cmd, spec.killDelay(), waitCh)
	}

	duration := time.Since(startedAt)

	// The child is gone and every write end is closed, so the drains are
	// finishing their final reads. Any error here is a capture failure,
	// distinct from however the child exited.
	if err := drains.Wait(); err != nil {
		return nil, &Error{Reason: ReasonCapture, Cause: err}
	}

	res := &Result{
		Stdout:   stdoutBuf.Bytes(),
		Stderr:   stderrBuf.Bytes(),
		TimedOut: timedOut,
		Duration: duration,
	}

	if err := classifyWait(res, waitErr); err != nil {
		return nil, err
	}

	slog.Default().Debug(
		"child process exited",
		slog.String("component", "spawn"),
		slog.String("event.type", "spawn.exit"),
		slog.Int("spawn.exit_code", res.ExitCode),
		slog.String("spawn.signal", res.Signal),
		slog.Bool("spawn.timed_out", res.TimedOut),
		slog.Int64("spawn.duration_ms", duration.Milliseconds()),
	)

	return res, nil
}

func (s *Spec) killDelay() time.Duration {
	if s.KillDelay > 0 {
		return s.KillDelay
	}

	return DefaultKillDelay
}

// classifyWait folds cmd.Wait's error into exit code and signal fields.
func classifyWait(res *Result, waitErr error) error {
	if waitErr == nil {
		res.ExitCode = 0
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		// Wait itself failed; the exit status is unknowable.
		return &Error{Reason: ReasonCapture, Cause: waitErr}
	}

	res.ExitCode = exitErr.ExitCode()
	res.Signal = terminationSignal(exitErr)

	return nil
}

// terminate asks the child to stop, escalating to a forced kill after delay.
// It returns the child's wait error once it is fully reaped.
func terminate(cmd *exec.Cmd, delay time.Duration, waitCh <-chan error) error {
	signalTerm(cmd.Process)

	select {
	case err := <-waitCh:
		return err
	case <-time.After(delay):
		_ = cmd.Process.Kill()

		return <-waitCh
	}
}

func drainPipe(buf *bytes.Buffer, r *os.File) error {
	defer func() { _ = r.Close() }()

	if _, err := buf.ReadFrom(r); err != nil {
		return fmt.Errorf("read child output: %w", err)
	}

	return nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
