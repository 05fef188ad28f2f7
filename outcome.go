package subtest

import (
	"fmt"

	"github.com/subtest-dev/subtest/internal/spawn"
)

// Kind discriminates how a worker process terminated.
type Kind int

const (
	// Exited means the worker exited on its own; Outcome.Code carries the
	// exit code.
	Exited Kind = iota

	// Signaled means the OS killed the worker; Outcome.Signal carries the
	// signal name where the platform exposes it.
	Signaled

	// TimedOut means the harness killed the worker after its Timeout.
	TimedOut
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Exited:
		return "exited"
	case Signaled:
		return "signaled"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is the classification of a fully-terminated worker process.
// Exactly one variant applies; the value is immutable and only produced
// after the child has exited and its output has been drained.
type Outcome struct {
	// Kind discriminates the variants below.
	Kind Kind

	// Code is the exit code for Exited outcomes, -1 otherwise.
	Code int

	// Signal is the terminating signal name for Signaled outcomes.
	Signal string
}

// Success reports a normal exit with code zero. Every other outcome —
// non-zero exit, signal death, timeout — is a failure.
func (o Outcome) Success() bool {
	return o.Kind == Exited && o.Code == 0
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o.Kind {
	case Exited:
		return fmt.Sprintf("exited with code %d", o.Code)
	case Signaled:
		if o.Signal != "" {
			return fmt.Sprintf("killed by %s", o.Signal)
		}

		return "killed by signal"
	case TimedOut:
		return "timed out and was killed"
	default:
		return o.Kind.String()
	}
}

// outcomeOf folds a spawn result into the public classification.
func outcomeOf(res *spawn.Result) Outcome {
	switch {
	case res.TimedOut:
		return Outcome{Kind: TimedOut, Code: -1, Signal: res.Signal}
	case res.Signal != "":
		return Outcome{Kind: Signaled, Code: -1, Signal: res.Signal}
	default:
		return Outcome{Kind: Exited, Code: res.ExitCode}
	}
}
