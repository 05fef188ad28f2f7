// Package output provides CLI output handling for the subtest tool.
//
// The Writer abstracts stdout/stderr so commands are testable via io.Writer
// injection, and supports JSON/YAML report modes for scripting, quiet mode
// for CI, and colored status lines gated on TTY detection.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Status symbols.
const (
	CheckMark   = "✓" // ✓
	XMark       = "✗" // ✗
	WarningMark = "⚠" // ⚠
	InfoMark    = "ℹ" // ℹ
)

// Writer handles CLI output with multiple modes.
type Writer struct {
	Out   io.Writer
	Err   io.Writer
	Quiet bool

	isTTY   bool
	noColor bool

	successColor *color.Color
	errorColor   *color.Color
	warningColor *color.Color
	infoColor    *color.Color
	mutedColor   *color.Color
}

// Default returns a Writer configured for stdout/stderr with TTY-detected
// color support.
func Default() *Writer {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	return NewWriter(os.Stdout, os.Stderr, isTTY)
}

// NewWriter creates a Writer with custom streams.
func NewWriter(out, errOut io.Writer, isTTY bool) *Writer {
	w := &Writer{
		Out:   out,
		Err:   errOut,
		isTTY: isTTY,
	}

	// NO_COLOR convention (https://no-color.org/); TERM=dumb cannot
	// render escape sequences either.
	if _, set := os.LookupEnv("NO_COLOR"); set || os.Getenv("TERM") == "dumb" {
		w.noColor = true
	}

	w.successColor = color.New(color.FgGreen)
	w.errorColor = color.New(color.FgRed)
	w.warningColor = color.New(color.FgYellow)
	w.infoColor = color.New(color.FgCyan)
	w.mutedColor = color.New(color.FgHiBlack)

	if !w.ColorEnabled() {
		color.NoColor = true
	}

	return w
}

// ColorEnabled reports whether status lines should use color.
func (w *Writer) ColorEnabled() bool {
	return w.isTTY && !w.noColor
}

// SetNoColor disables colored output.
func (w *Writer) SetNoColor(disabled bool) {
	if disabled {
		w.noColor = true
		color.NoColor = true
	}
}

// Print writes to stdout (respects quiet mode).
func (w *Writer) Print(format string, args ...any) {
	if !w.Quiet {
		fmt.Fprintf(w.Out, format, args...)
	}
}

// Println writes a line to stdout (respects quiet mode).
func (w *Writer) Println(args ...any) {
	if !w.Quiet {
		fmt.Fprintln(w.Out, args...)
	}
}

// PrintJSON outputs structured data as indented JSON, regardless of quiet
// mode — a requested report is never suppressed.
func (w *Writer) PrintJSON(v any) error {
	enc := json.NewEncoder(w.Out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// PrintYAML outputs structured data as YAML, regardless of quiet mode.
func (w *Writer) PrintYAML(v any) error {
	enc := yaml.NewEncoder(w.Out)
	defer func() { _ = enc.Close() }()

	return enc.Encode(v)
}

func (w *Writer) writeStatus(writer io.Writer, tone *color.Color, prefix, message string) {
	if w.ColorEnabled() {
		tone.Fprint(writer, prefix+" ")
		fmt.Fprintln(writer, message)
	} else {
		fmt.Fprintln(writer, prefix+" "+message)
	}
}

// Success writes a success message with a checkmark.
func (w *Writer) Success(format string, args ...any) {
	if w.Quiet {
		return
	}

	w.writeStatus(w.Out, w.successColor, CheckMark, fmt.Sprintf(format, args...))
}

// Failure writes an error message with an X mark. Never suppressed.
func (w *Writer) Failure(format string, args ...any) {
	w.writeStatus(w.Err, w.errorColor, XMark, fmt.Sprintf(format, args...))
}

// Warning writes a warning message.
func (w *Writer) Warning(format string, args ...any) {
	if w.Quiet {
		return
	}

	w.writeStatus(w.Out, w.warningColor, WarningMark, fmt.Sprintf(format, args...))
}

// Info writes an info message.
func (w *Writer) Info(format string, args ...any) {
	if w.Quiet {
		return
	}

	w.writeStatus(w.Out, w.infoColor, InfoMark, fmt.Sprintf(format, args...))
}

// Muted writes muted/gray text.
func (w *Writer) Muted(format string, args ...any) {
	if w.Quiet {
		return
	}

	msg := fmt.Sprintf(format, args...)

	if w.ColorEnabled() {
		w.mutedColor.Fprintln(w.Out, msg)
	} else {
		fmt.Fprintln(w.Out, msg)
	}
}

// Spinner creates a spinner for long operations, degrading to a plain
// "message..." line on non-TTY or quiet output.
func (w *Writer) Spinner(message string) *Spinner {
	if w.Quiet || !w.ColorEnabled() {
		return &Spinner{disabled: true, message: message, writer: w}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = w.Out
	s.Suffix = " " + message

	return &Spinner{
		spinner: s,
		message: message,
		writer:  w,
	}
}

// Spinner wraps briandowns/spinner with graceful fallback.
type Spinner struct {
	spinner  *spinner.Spinner
	message  string
	writer   *Writer
	disabled bool
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if s.disabled {
		s.writer.Print("%s... ", s.message)
		return
	}

	s.spinner.Start()
}

// Stop stops the spinner animation.
func (s *Spinner) Stop() {
	if s.disabled {
		return
	}

	s.spinner.Stop()
}
