//go:build unix

package spawn

import (
	"context"
	"strings"
	"testing"
	"time"
)

func runShell(t *testing.T, script string, mutate func(*Spec)) *Result {
	t.Helper()

	spec := &Spec{
		Path: "/bin/sh",
		Args: []string{"-c", script},
	}

	if mutate != nil {
		mutate(spec)
	}

	res, err := Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	return res
}

func TestRunCapturesStdout(t *testing.T) {
	res := runShell(t, "echo hello", nil)

	if !res.Success() {
		t.Fatalf("Success() = false: exit=%d signal=%q", res.ExitCode, res.Signal)
	}

	if got := string(res.Stdout); got != "hello\n" {
		t.Errorf("Stdout = %q, want %q", got, "hello\n")
	}
}

func TestRunSeparatesStderr(t *testing.T) {
	res := runShell(t, "echo out; echo err 1>&2", nil)

	if got := string(res.Stdout); got != "out\n" {
		t.Errorf("Stdout = %q, want %q", got, "out\n")
	}

	if got := string(res.Stderr); got != "err\n" {
		t.Errorf("Stderr = %q, want %q", got, "err\n")
	}
}

func TestRunCombinesStderr(t *testing.T) {
	res := runShell(t, "echo one; echo two 1>&2; echo three", func(s *Spec) {
		s.CombineStderr = true
	})

	// One shared pipe preserves write ordering across the two streams.
	if got := string(res.Stdout); got != "one\ntwo\nthree\n" {
		t.Errorf("Stdout = %q, want %q", got, "one\ntwo\nthree\n")
	}

	if len(res.Stderr) != 0 {
		t.Errorf("Stderr = %q, want empty in combined mode", res.Stderr)
	}
}

func TestRunReportsExitCode(t *testing.T) {
	res := runShell(t, "exit 3", nil)

	if res.Success() {
		t.Error("Success() = true for exit 3")
	}

	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}

	if res.Signal != "" {
		t.Errorf("Signal = %q, want empty", res.Signal)
	}
}

func TestRunClassifiesSignalDeath(t *testing.T) {
	res := runShell(t, "kill -KILL $$", nil)

	if res.Success() {
		t.Error("Success() = true for a killed child")
	}

	if res.Signal != "SIGKILL" {
		t.Errorf("Signal = %q, want SIGKILL", res.Signal)
	}

	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
}

func TestRunLargeOutputNoDeadlock(t *testing.T) {
	// Well past any kernel pipe buffer; fails by hanging if the drain
	// waited for process exit.
	const want = 1 << 20

	res := runShell(t, "head -c 1048576 /dev/zero | tr '\\0' 'a'", nil)

	if !res.Success() {
		t.Fatalf("Success() = false: exit=%d signal=%q", res.ExitCode, res.Signal)
	}

	if len(res.Stdout) != want {
		t.Errorf("len(Stdout) = %d, want %d", len(res.Stdout), want)
	}
}

func TestRunTimeoutKillsChild(t *testing.T) {
	started := time.Now()

	res := runShell(t, "echo early; sleep 60", func(s *Spec) {
		s.Timeout = time.Second
		s.KillDelay = 500 * time.Millisecond
	})

	if elapsed := time.Since(started); elapsed > 10*time.Second {
		t.Fatalf("run took %s, child was not killed", elapsed)
	}

	if !res.TimedOut {
		t.Fatal("TimedOut = false, want true")
	}

	if res.Success() {
		t.Error("Success() = true for a timed-out child")
	}

	// Output drained before the kill is still delivered.
	if got := string(res.Stdout); got != "early\n" {
		t.Errorf("Stdout = %q, want %q", got, "early\n")
	}
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, &Spec{
		Path:      "/bin/sh",
		Args:      []string{"-c", "sleep 60"},
		KillDelay: 500 * time.Millisecond,
	})

	if err == nil {
		t.Fatal("Run returned nil error for a canceled context")
	}

	if !strings.Contains(err.Error(), "canceled") {
		t.Errorf("error = %v, want cancellation", err)
	}
}

func TestRunSpawnFailureIsDistinct(t *testing.T) {
	_, err := Run(context.Background(), &Spec{
		Path: "/nonexistent/definitely-not-a-binary",
	})

	if err == nil {
		t.Fatal("Run returned nil error for a missing executable")
	}

	if !IsSpawnFailure(err) {
		t.Errorf("IsSpawnFailure = false for %v", err)
	}

	if IsCaptureFailure(err) {
		t.Errorf("IsCaptureFailure = true for %v", err)
	}
}

func TestRunEmptyPath(t *testing.T) {
	_, err := Run(context.Background(), &Spec{})

	if !IsSpawnFailure(err) {
		t.Errorf("IsSpawnFailure = false for %v", err)
	}
}

func TestRunAppendsEnv(t *testing.T) {
	res := runShell(t, "printf '%s' \"$SPAWN_TEST_MARKER\"", func(s *Spec) {
		s.Env = []string{"SPAWN_TEST_MARKER=present"}
	})

	if got := string(res.Stdout); got != "present" {
		t.Errorf("Stdout = %q, want %q", got, "present")
	}
}

func TestRunPTYCapture(t *testing.T) {
	res := runShell(t, "test -t 1 && echo tty || echo pipe", func(s *Spec) {
		s.UsePTY = true
	})

	if !res.Success() {
		t.Fatalf("Success() = false: exit=%d signal=%q", res.ExitCode, res.Signal)
	}

	// The terminal discipline emits CRLF.
	if got := string(res.Stdout); got != "tty\r\n" {
		t.Errorf("Stdout = %q, want %q", got, "tty\r\n")
	}
}
