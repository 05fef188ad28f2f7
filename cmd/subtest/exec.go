package main

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/subtest-dev/subtest/internal/config"
	clierrors "github.com/subtest-dev/subtest/internal/errors"
	"github.com/subtest-dev/subtest/internal/observability"
	"github.com/subtest-dev/subtest/internal/output"
	"github.com/subtest-dev/subtest/internal/spawn"
)

// reportFormats are the accepted values for --report.
var reportFormats = []string{"text", "json", "yaml"}

// execReport is the structured outcome of a single run.
type execReport struct {
	Command    []string `json:"command" yaml:"command"`
	Outcome    string   `json:"outcome" yaml:"outcome"`
	ExitCode   int      `json:"exit_code" yaml:"exit_code"`
	Signal     string   `json:"signal,omitempty" yaml:"signal,omitempty"`
	TimedOut   bool     `json:"timed_out" yaml:"timed_out"`
	DurationMS int64    `json:"duration_ms" yaml:"duration_ms"`
	Stdout     string   `json:"stdout" yaml:"stdout"`
	Stderr     string   `json:"stderr,omitempty" yaml:"stderr,omitempty"`
}

func newExecCmd(out *output.Writer) *cobra.Command {
	var (
		timeout       time.Duration
		killDelay     time.Duration
		usePTY        bool
		combineStderr bool
		envPairs      []string
		dir           string
		report        string
	)

	cmd := &cobra.Command{
		Use:   "exec [flags] -- <command> [args...]",
		Short: "Run a command in an isolated child process",
		Long: `Run a command in a child process, capture its stdout and stderr, and
report how it terminated. The subtest exit status mirrors the child:
its exit code for normal exits, 128 plus the signal number for fatal
signals, and a dedicated code when the timeout killed it.`,
		Example: `  subtest exec -- go test ./...
  subtest exec --timeout 30s --report json -- ./flaky-integration
  subtest exec --pty -- ./needs-a-terminal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return clierrors.NoCommand()
			}

			cfg := config.Load()

			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.Timeout()
			}
			if !cmd.Flags().Changed("kill-delay") {
				killDelay = cfg.KillDelay()
			}
			if !cmd.Flags().Changed("report") {
				report = cfg.ReportFormat()
			}

			valid := false
			for _, f := range reportFormats {
				if report == f {
					valid = true
					break
				}
			}
			if !valid {
				return clierrors.InvalidReportFormat(report, reportFormats)
			}

			return runExec(cmd, out, &spawn.Spec{
				Path:          args[0],
				Args:          args[1:],
				Env:           envPairs,
				Dir:           dir,
				CombineStderr: combineStderr,
				UsePTY:        usePTY,
				Timeout:       timeout,
				KillDelay:     killDelay,
			}, report)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Kill the child after this duration (0 = no deadline)")
	cmd.Flags().DurationVar(&killDelay, "kill-delay", config.DefaultKillDelay, "Grace period between SIGTERM and SIGKILL")
	cmd.Flags().BoolVar(&usePTY, "pty", false, "Attach the child to a pseudo-terminal")
	cmd.Flags().BoolVar(&combineStderr, "combine-stderr", false, "Merge stderr into the stdout capture")
	cmd.Flags().StringArrayVarP(&envPairs, "env", "e", nil, "Extra environment for the child (KEY=VALUE, repeatable)")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory for the child")
	cmd.Flags().StringVar(&report, "report", config.DefaultReportFormat, "Report format: text, json, yaml")

	return cmd
}

func runExec(cmd *cobra.Command, out *output.Writer, spec *spawn.Spec, report string) error {
	ctx := cmd.Context()
	logger := observability.FromContext(ctx)

	ctx, span := observability.Tracer("subtest").Start(ctx, "exec.run",
		trace.WithAttributes(
			attribute.String("child.path", spec.Path),
			attribute.Int("child.args", len(spec.Args)),
			attribute.Bool("child.pty", spec.UsePTY),
			attribute.String("child.timeout", spec.Timeout.String()),
		))
	defer span.End()

	logger.Info("running command",
		slog.String("event.type", "exec.start"),
		slog.String("path", spec.Path),
		slog.Duration("timeout", spec.Timeout))

	spin := out.Spinner(fmt.Sprintf("Running %s", spec.Path))
	spin.Start()

	res, err := spawn.Run(ctx, spec)

	spin.Stop()

	if err != nil {
		span.RecordError(err)

		switch {
		case isNotFound(err):
			return clierrors.CommandNotFound(spec.Path)
		case spawn.IsSpawnFailure(err):
			if spec.UsePTY && strings.Contains(err.Error(), "only supported on unix") {
				return clierrors.PTYUnsupported(err)
			}
			return clierrors.SpawnFailed(err)
		case spawn.IsCaptureFailure(err):
			return clierrors.CaptureFailed(err)
		default:
			return clierrors.Wrap(clierrors.ExitGeneral, "Command execution failed", err)
		}
	}

	logger.Info("command finished",
		slog.String("event.type", "exec.done"),
		slog.Int("exit_code", res.ExitCode),
		slog.String("signal", res.Signal),
		slog.Bool("timed_out", res.TimedOut),
		slog.Duration("duration", res.Duration))

	span.SetAttributes(
		attribute.Int("child.exit_code", res.ExitCode),
		attribute.Bool("child.timed_out", res.TimedOut),
	)

	rootExitCode = exitStatus(res)

	switch report {
	case "json":
		return out.PrintJSON(buildReport(spec, res))
	case "yaml":
		return out.PrintYAML(buildReport(spec, res))
	default:
		renderText(out, spec, res)
		return nil
	}
}

func buildReport(spec *spawn.Spec, res *spawn.Result) execReport {
	return execReport{
		Command:    append([]string{spec.Path}, spec.Args...),
		Outcome:    outcomeLabel(res),
		ExitCode:   res.ExitCode,
		Signal:     res.Signal,
		TimedOut:   res.TimedOut,
		DurationMS: res.Duration.Milliseconds(),
		Stdout:     string(res.Stdout),
		Stderr:     string(res.Stderr),
	}
}

func outcomeLabel(res *spawn.Result) string {
	switch {
	case res.TimedOut:
		return "timeout"
	case res.Signal != "":
		return "signaled"
	default:
		return "exited"
	}
}

func renderText(out *output.Writer, spec *spawn.Spec, res *spawn.Result) {
	if len(res.Stdout) > 0 {
		_, _ = out.Out.Write(res.Stdout)
	}
	if len(res.Stderr) > 0 {
		_, _ = out.Err.Write(res.Stderr)
	}

	name := spec.Path
	if len(spec.Args) > 0 {
		name = name + " " + strings.Join(spec.Args, " ")
	}

	switch {
	case res.TimedOut:
		out.Warning("%s timed out after %s and was killed", name, spec.Timeout)
	case res.Signal != "":
		out.Failure("%s was killed by %s", name, res.Signal)
	case res.Success():
		out.Success("%s completed (%s)", name, res.Duration.Round(time.Millisecond))
	default:
		out.Failure("%s exited with code %d (%s)", name, res.ExitCode, res.Duration.Round(time.Millisecond))
	}
}

// exitStatus maps a child result to the subtest exit code: the child's own
// code for normal exits, 128+signal for fatal signals, and ExitTimeout for
// deadline kills.
func exitStatus(res *spawn.Result) int {
	switch {
	case res.TimedOut:
		return clierrors.ExitTimeout
	case res.Signal != "":
		return signalExitCode(res.Signal)
	default:
		return res.ExitCode
	}
}

func isNotFound(err error) bool {
	if !spawn.IsSpawnFailure(err) {
		return false
	}

	return strings.Contains(err.Error(), exec.ErrNotFound.Error()) ||
		strings.Contains(err.Error(), "no such file or directory")
}
