// Package main is the entry point for the subtest CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/subtest-dev/subtest/internal/buildinfo"
	"github.com/subtest-dev/subtest/internal/config"
	clierrors "github.com/subtest-dev/subtest/internal/errors"
	"github.com/subtest-dev/subtest/internal/observability"
	"github.com/subtest-dev/subtest/internal/output"
)

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	// Restore cursor visibility on panic so a crash mid-spinner does not
	// leave the terminal with a hidden cursor.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprint(os.Stderr, "\033[?25h")
			panic(r)
		}
	}()

	out := output.Default()

	rootCmd := newRootCmd(out)
	if err := rootCmd.Execute(); err != nil {
		return handleError(out, err)
	}

	return rootExitCode
}

// rootExitCode carries the exit status of a successfully handled exec run.
// A child that exits non-zero is not a harness error, but the CLI still has
// to propagate its status.
var rootExitCode int

// handleError formats and displays a CLI error, returning the appropriate exit code.
func handleError(out *output.Writer, err error) int {
	var harnessErr *clierrors.HarnessError
	if clierrors.As(err, &harnessErr) {
		out.Failure("%s", harnessErr.Message)

		if harnessErr.Hint != "" {
			out.Info("%s", harnessErr.Hint)
		}

		return harnessErr.Code
	}

	errStr := err.Error()

	// Cobra's unknown command errors come with typo suggestions.
	if strings.HasPrefix(errStr, "unknown command") {
		out.Failure("%s", errStr)

		if !strings.Contains(errStr, "--help") {
			out.Info("Run 'subtest --help' for usage")
		}

		return clierrors.ExitUsage
	}

	out.Failure("%s", errStr)

	return clierrors.ExitGeneral
}

// loggerConfig resolves the logging settings with flag > env > config-file
// precedence; the viper defaults close the chain.
func loggerConfig(cfg *config.Config, logLevel, logFormat, logFile, logStderr string, interactiveTTY bool) observability.Config {
	return observability.Config{
		Level:          pickFlagOrEnv(logLevel, "SUBTEST_LOG_LEVEL", cfg.LogLevel()),
		Format:         pickFlagOrEnv(logFormat, "SUBTEST_LOG_FORMAT", "text"),
		LogFile:        pickFlagOrEnv(logFile, "SUBTEST_LOG_FILE", cfg.LogFile()),
		StderrMode:     pickFlagOrEnv(logStderr, "SUBTEST_LOG_STDERR", "auto"),
		InteractiveTTY: interactiveTTY,
		RunID:          uuid.NewString(),
		Version:        buildinfo.Version,
		Commit:         buildinfo.Commit,
	}
}

func newRootCmd(out *output.Writer) *cobra.Command {
	var (
		quiet     bool
		noColor   bool
		logLevel  string
		logFormat string
		logFile   string
		logStderr string
	)

	rootCmd := &cobra.Command{
		Use:   "subtest",
		Short: "subtest - Run commands in isolated child processes",
		Long: `subtest runs a command in an isolated child process, captures its
output without deadlocking on full pipes, and reports how it
terminated: exit code, fatal signal, or timeout kill.

Get started:
  subtest exec -- go test ./...     Run a command and report its outcome
  subtest exec --timeout 30s -- ./flaky
  subtest config list               View configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			out.Quiet = pickBoolFlagOrEnv(quiet, "SUBTEST_QUIET")

			if noColor {
				out.SetNoColor(true)
			}

			logCfg := loggerConfig(config.Load(), logLevel, logFormat, logFile, logStderr, out.ColorEnabled())

			logger, cleanup, err := observability.NewLogger(&logCfg)
			if err != nil {
				return &clierrors.HarnessError{
					Message: fmt.Sprintf("Invalid logging configuration: %v", err),
					Hint:    "Use --log-level (error|warn|info|debug), --log-format (json|text), --log-stderr (auto|on|off), and/or --log-file",
					Code:    clierrors.ExitUsage,
				}
			}

			slog.SetDefault(logger)

			ctx := observability.WithLogger(cmd.Context(), logger)
			cmd.SetContext(ctx)

			if cleanup != nil {
				cmd.PostRunE = wrapPostRunCleanup(cmd.PostRunE, "logger resources", cleanup)
			}

			// OpenTelemetry tracing is opt-in via OTEL_ENABLED.
			telemetryCfg := &observability.TelemetryConfig{
				Enabled: observability.IsTelemetryEnabled(),
				Version: buildinfo.Version,
				Commit:  buildinfo.Commit,
			}

			telemetryShutdown, telemetryErr := observability.SetupTelemetry(ctx, telemetryCfg)
			if telemetryErr != nil {
				logger.Warn("telemetry initialization failed", slog.String("error", telemetryErr.Error()))
			}

			if telemetryShutdown != nil {
				cmd.PostRunE = wrapPostRunCleanup(cmd.PostRunE, "telemetry resources", func() error {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()

					return telemetryShutdown(shutdownCtx)
				})
			}

			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Minimal output (for CI)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: error, warn, info, debug")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json, text")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Optional structured log file path")
	rootCmd.PersistentFlags().StringVar(&logStderr, "log-stderr", "", "Structured logging to stderr: auto, on, off")

	// Enable typo suggestions for unknown commands
	rootCmd.SuggestionsMinimumDistance = 2

	// Wrap Cobra's raw flag errors so they get styled output
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &clierrors.HarnessError{
			Message: err.Error(),
			Hint:    fmt.Sprintf("Run '%s --help' for available flags", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	})

	rootCmd.AddCommand(newExecCmd(out))
	rootCmd.AddCommand(newConfigCmd(out))
	rootCmd.AddCommand(newVersionCmd(out))

	return rootCmd
}

func wrapPostRunCleanup(postRun func(*cobra.Command, []string) error, name string, cleanup func() error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if postRun != nil {
			if err := postRun(cmd, args); err != nil {
				_ = cleanup()
				return err
			}
		}

		if err := cleanup(); err != nil {
			return fmt.Errorf("cleanup %s: %w", name, err)
		}

		return nil
	}
}

func pickBoolFlagOrEnv(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}

	v := strings.ToLower(strings.TrimSpace(os.Getenv(envKey)))

	return v == "1" || v == "true" || v == "yes"
}

func pickFlagOrEnv(flagValue, envKey, fallback string) string {
	trimmed := strings.TrimSpace(flagValue)
	if trimmed != "" {
		return trimmed
	}

	if envValue := strings.TrimSpace(os.Getenv(envKey)); envValue != "" {
		return envValue
	}

	return fallback
}

// noArgs returns a Cobra positional-arg validator that rejects any arguments
// with a clear, user-friendly message (unlike cobra.NoArgs which says "unknown command").
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &clierrors.HarnessError{
			Message: fmt.Sprintf("'%s' accepts no arguments", cmd.CommandPath()),
			Hint:    fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	}

	return nil
}

// VersionInfo represents version information for JSON output.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func newVersionCmd(out *output.Writer) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Long:    `Display the subtest binary version, git commit, and build date.`,
		Example: `  subtest version`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				return out.PrintJSON(VersionInfo{
					Version: buildinfo.Version,
					Commit:  buildinfo.Commit,
					Date:    buildinfo.Date,
				})
			}

			out.Print("subtest %s\n", buildinfo.Version)
			out.Print("  commit: %s\n", buildinfo.Commit)
			out.Print("  built:  %s\n", buildinfo.Date)

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
