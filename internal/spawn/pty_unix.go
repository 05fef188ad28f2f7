//go:build unix

package spawn

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Worker PTY dimensions. Bodies that branch on terminal size get a stable,
// conventional geometry rather than whatever the parent happens to run in.
const (
	ptyRows = 24
	ptyCols = 80
)

// startPTY starts cmd with a pseudo-terminal attached to its stdio and
// returns the controller side for the drain goroutine.
func startPTY(cmd *exec.Cmd) (*os.File, error) {
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: ptyRows,
		Cols: ptyCols,
	})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	return ptmx, nil
}

// drainPTY accumulates controller-side reads until the child hangs up.
// Linux reports the hangup as EIO rather than EOF.
func drainPTY(buf *bytes.Buffer, ptmx *os.File) error {
	_, err := buf.ReadFrom(ptmx)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, unix.EIO) {
		return nil
	}

	return fmt.Errorf("read pty output: %w", err)
}
