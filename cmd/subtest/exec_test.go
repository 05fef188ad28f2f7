package main

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	clierrors "github.com/subtest-dev/subtest/internal/errors"
	"github.com/subtest-dev/subtest/internal/spawn"
)

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		name string
		res  spawn.Result
		want string
	}{
		{"clean exit", spawn.Result{ExitCode: 0}, "exited"},
		{"failure exit", spawn.Result{ExitCode: 3}, "exited"},
		{"signal", spawn.Result{ExitCode: -1, Signal: "SIGKILL"}, "signaled"},
		{"timeout wins over signal", spawn.Result{ExitCode: -1, Signal: "SIGKILL", TimedOut: true}, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeLabel(&tt.res); got != tt.want {
				t.Errorf("outcomeLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		res  spawn.Result
		want int
	}{
		{"clean exit", spawn.Result{ExitCode: 0}, 0},
		{"child code propagated", spawn.Result{ExitCode: 42}, 42},
		{"timeout code", spawn.Result{TimedOut: true, Signal: "SIGKILL"}, clierrors.ExitTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitStatus(&tt.res); got != tt.want {
				t.Errorf("exitStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuildReport(t *testing.T) {
	spec := &spawn.Spec{Path: "/bin/echo", Args: []string{"hi"}}
	res := &spawn.Result{Stdout: []byte("hi\n"), ExitCode: 0, Duration: 1500 * time.Millisecond}

	report := buildReport(spec, res)

	if got, want := strings.Join(report.Command, " "), "/bin/echo hi"; got != want {
		t.Errorf("Command = %q, want %q", got, want)
	}
	if report.Outcome != "exited" {
		t.Errorf("Outcome = %q, want exited", report.Outcome)
	}
	if report.DurationMS != 1500 {
		t.Errorf("DurationMS = %d, want 1500", report.DurationMS)
	}
	if report.Stdout != "hi\n" {
		t.Errorf("Stdout = %q, want %q", report.Stdout, "hi\n")
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := &spawn.Error{Reason: spawn.ReasonSpawn, Cause: errors.New(`exec: "nope": executable file not found in $PATH`)}
	if !isNotFound(notFound) {
		t.Error("isNotFound() = false for missing executable")
	}

	capture := &spawn.Error{Reason: spawn.ReasonCapture, Cause: errors.New("read: broken pipe")}
	if isNotFound(capture) {
		t.Error("isNotFound() = true for capture failure")
	}
}

func TestExecCmd_NoCommand(t *testing.T) {
	w, _, _ := testWriter()
	cmd := newExecCmd(w)
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()

	var harnessErr *clierrors.HarnessError
	if !clierrors.As(err, &harnessErr) {
		t.Fatalf("Execute() error = %v, want HarnessError", err)
	}
	if harnessErr.Code != clierrors.ExitUsage {
		t.Errorf("Code = %d, want %d", harnessErr.Code, clierrors.ExitUsage)
	}
}

func TestExecCmd_BadReportFormat(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	w, _, _ := testWriter()
	cmd := newExecCmd(w)
	cmd.SetArgs([]string{"--report", "xml", "--", "true"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()

	var harnessErr *clierrors.HarnessError
	if !clierrors.As(err, &harnessErr) {
		t.Fatalf("Execute() error = %v, want HarnessError", err)
	}
	if !strings.Contains(harnessErr.Message, "xml") {
		t.Errorf("Message = %q, want format name", harnessErr.Message)
	}
}
