//go:build !unix

package spawn

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
)

func startPTY(_ *exec.Cmd) (*os.File, error) {
	return nil, errors.New("pty capture is only supported on unix platforms")
}

func drainPTY(_ *bytes.Buffer, _ *os.File) error {
	return errors.New("pty capture is only supported on unix platforms")
}
