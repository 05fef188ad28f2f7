// Package subtest runs a block of test logic in a freshly spawned child
// process and hands the child's termination status and captured standard
// output back to the parent test for verification.
//
// Use it for test bodies that may take the whole process down — panics,
// os.Exit, fault signals — or that mutate process-global state (signal
// handlers, environment, resource limits) that must not leak into other
// tests. The parent test asserts on the outcome of the run, not just on
// values computed in-process.
//
// A minimal test:
//
//	func TestJustSucceeds(t *testing.T) {
//		subtest.New("just_succeeds", func() {
//			value := 1
//			if value+1 != 2 {
//				panic("arithmetic is broken")
//			}
//		}).Run(t)
//	}
//
// With output verification:
//
//	func TestOnePlusOne(t *testing.T) {
//		subtest.New("one_plus_one", func() {
//			fmt.Println(1 + 1)
//		}).Verify(func(success bool, output string) {
//			if !success {
//				t.Error("worker failed")
//			}
//			if output != "2\n" {
//				t.Errorf("output = %q, want %q", output, "2\n")
//			}
//		}).Run(t)
//	}
//
// Run re-invokes the current test binary with a -test.run pattern targeting
// the enclosing test and a marker environment variable carrying the
// registered name. The re-invoked process runs the same test function,
// recognizes the marker, and executes only the body — framed by boundary
// lines so the parent can strip the test binary's own run/PASS/FAIL chatter
// from the captured output.
package subtest

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/subtest-dev/subtest/internal/boundary"
	"github.com/subtest-dev/subtest/internal/spawn"
)

// DefaultEnvVar is the marker environment variable that selects worker mode
// in the re-invoked test binary. Override per test with Env if your code
// under test already uses this name.
const DefaultEnvVar = "__SUBTEST_WORKER__"

// activeEnvVar marks a process as a worker regardless of any custom marker
// variable, so that unrelated registrations in the same test function do not
// spawn grandchildren from inside a worker.
const activeEnvVar = "__SUBTEST_ACTIVE__"

// Test is one subprocess test: a stable name, the worker body, and an
// optional verifier. Construct with New, configure with the chained
// methods, and execute with Run. A Test is read-only after Run starts and
// must not be shared across test functions.
type Test struct {
	name          string
	body          func()
	verify        func(Outcome, string)
	envVar        string
	marker        string
	timeout       time.Duration
	killDelay     time.Duration
	combineStderr bool
	usePTY        bool
}

// New creates a subprocess test. The name selects the worker entry point in
// the re-invoked binary; it must be unique within the enclosing test
// function and stable across runs. The body runs exactly once, in the child.
func New(name string, body func()) *Test {
	if name == "" {
		panic("subtest: empty test name")
	}

	if body == nil {
		panic(fmt.Sprintf("subtest: nil body for %q", name))
	}

	return &Test{
		name:   name,
		body:   body,
		envVar: DefaultEnvVar,
		marker: boundary.DefaultMarker,
	}
}

// Verify sets a verifier receiving the derived success boolean and the
// captured output. The verifier runs in the parent, after the child has
// fully terminated; it asserts through the enclosing *testing.T it closes
// over. Without a verifier, Run applies the default policy: fail the test
// on any non-success outcome, quoting the captured output.
func (c *Test) Verify(fn func(success bool, output string)) *Test {
	c.setVerify(func(oc Outcome, output string) {
		fn(oc.Success(), output)
	})

	return c
}

// VerifyOutcome is Verify for verifiers that need the full termination
// classification rather than the derived boolean.
func (c *Test) VerifyOutcome(fn func(oc Outcome, output string)) *Test {
	c.setVerify(fn)
	return c
}

func (c *Test) setVerify(fn func(Outcome, string)) {
	if c.verify != nil {
		panic(fmt.Sprintf("subtest: duplicate verifier for %q", c.name))
	}

	if fn == nil {
		panic(fmt.Sprintf("subtest: nil verifier for %q", c.name))
	}

	c.verify = fn
}

// Env overrides the marker environment variable. The variable is set to the
// test's name in the worker process, so the body can observe it.
func (c *Test) Env(name string) *Test {
	if name == "" {
		panic(fmt.Sprintf("subtest: empty env var name for %q", c.name))
	}

	c.envVar = name

	return c
}

// Boundary overrides the output boundary marker. Only needed when the body
// legitimately prints lines that collide with the default marker.
func (c *Test) Boundary(marker string) *Test {
	if marker == "" {
		panic(fmt.Sprintf("subtest: empty boundary marker for %q", c.name))
	}

	c.marker = marker

	return c
}

// Timeout bounds the worker's run. On expiry the harness kills the child
// and delivers a TimedOut outcome with whatever output was captured before
// the kill. Zero (the default) waits forever.
func (c *Test) Timeout(d time.Duration) *Test {
	c.timeout = d
	return c
}

// KillDelay sets the gap between the polite termination signal and the
// forced kill after a timeout.
func (c *Test) KillDelay(d time.Duration) *Test {
	c.killDelay = d
	return c
}

// CombineStderr merges the worker's stderr into the captured stream through
// the same pipe, preserving interleaving. Panic reports then show up in the
// captured output. The default captures stdout only.
func (c *Test) CombineStderr() *Test {
	c.combineStderr = true
	return c
}

// PTY attaches the worker's output to a pseudo-terminal instead of a pipe,
// for bodies that branch on terminal detection. CRLF line endings produced
// by the terminal discipline are normalized back to LF in the captured
// output. Unix only; Run fails the test elsewhere.
func (c *Test) PTY() *Test {
	c.usePTY = true
	return c
}

// workerOwner is the registration whose body ran in this worker process.
// A second distinct registration matching the selector would corrupt the
// captured stream; re-running the same registration is a no-op so that two
// independent Run calls on one Test stay idempotent.
var workerOwner *Test

// Run executes the test. In the parent it spawns the worker, waits for it
// to terminate, drains its output, and invokes the verifier (or the default
// policy). In a worker process it runs the body framed by boundary lines.
// Harness breakage — spawn or capture failure — fails the test with a
// message distinct from any test-logic failure.
func (c *Test) Run(t *testing.T) {
	t.Helper()

	if os.Getenv(c.envVar) == c.name && os.Getenv(activeEnvVar) == c.name {
		c.runWorker()
		return
	}

	if os.Getenv(activeEnvVar) != "" {
		// Another registration owns this worker process.
		return
	}

	c.runParent(t)
}

// failureExitCode is the worker's exit code when the body panics. Chosen to
// stay clear of the test framework's own exit codes.
const failureExitCode = 1

// runWorker executes the body in the child between boundary lines. A normal
// return falls back into the test framework, which exits zero. A panic is
// intercepted so the report lands inside the boundary framing (stderr) and
// the process exits with the failure sentinel; only uncatchable faults reach
// the parent as signal deaths instead.
func (c *Test) runWorker() {
	if workerOwner == c {
		return
	}

	if workerOwner != nil {
		panic(fmt.Sprintf("subtest: worker entry %q selected twice in one process; registered names must be unique within a test function", c.name))
	}

	workerOwner = c

	wrapped := boundary.Wrap(c.marker)

	fmt.Print(wrapped)

	defer func() {
		r := recover()
		if r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n\n%s\n", r, debug.Stack())
		}

		fmt.Print(wrapped)

		if r != nil {
			os.Exit(failureExitCode)
		}
	}()

	c.body()
}

func (c *Test) runParent(t *testing.T) {
	t.Helper()

	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	spec := &spawn.Spec{
		Path: exe,
		Args: []string{"-test.run=" + runPattern(t.Name())},
		Env: []string{
			c.envVar + "=" + c.name,
			activeEnvVar + "=" + c.name,
		},
		CombineStderr: c.combineStderr,
		UsePTY:        c.usePTY,
		Timeout:       c.timeout,
		KillDelay:     c.killDelay,
	}

	res, err := spawn.Run(context.Background(), spec)
	if err != nil {
		if spawn.IsCaptureFailure(err) {
			t.Fatalf("subtest: reading worker output failed (harness error, not a test failure): %v", err)
		}

		t.Fatalf("subtest: spawning worker process failed (harness error, not a test failure): %v", err)
	}

	raw := string(res.Stdout)
	if c.usePTY {
		raw = strings.ReplaceAll(raw, "\r\n", "\n")
	}

	output, found := boundary.Extract(raw, c.marker)
	if !found {
		t.Fatalf("subtest: worker %q never reached its entry point (no output boundary seen); raw child output:\n%s", c.name, raw)
	}

	oc := outcomeOf(res)

	if c.verify != nil {
		c.verify(oc, output)
		return
	}

	if !oc.Success() {
		t.Fatal(failureReport(c.name, oc, output))
	}
}

// failureReport is the default policy's message: the non-success
// classification plus the captured output when there is any.
func failureReport(name string, oc Outcome, output string) string {
	msg := fmt.Sprintf("subprocess test %q failed: worker %s", name, oc)
	if output != "" {
		msg += "\ncaptured output:\n" + output
	}

	return msg
}

// runPattern builds an exact -test.run pattern for a (possibly nested) test
// name, anchoring each slash-separated segment.
func runPattern(testName string) string {
	segments := strings.Split(testName, "/")
	for i, segment := range segments {
		segments[i] = "^" + regexp.QuoteMeta(segment) + "$"
	}

	return strings.Join(segments, "/")
}
