package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/fanctl/internal/errors"
)

const (
	pidFile = "fanctl.pid"
)

// Path returns the location of the PID file.
func Path() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to a PID file.
func Write() error {
	errFactory := errors.New()
	pid := os.Getpid()
	path := Path()

	if _, err := os.Stat(path); err == nil {
		// PID file exists, check if the process is running
		bytes, err := os.ReadFile(path)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		// A malformed file is stale and overwritten below.
		if other, err := strconv.Atoi(strings.TrimSpace(string(bytes))); err == nil && other != pid {
			process, err := os.FindProcess(other)
			if err != nil {
				return errFactory.Wrap(errors.ErrInternal, err)
			}

			if err := process.Signal(syscall.Signal(0)); err == nil {
				return errFactory.WithData(errors.ErrAlreadyRunning, other)
			}
		}
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func Remove() error {
	errFactory := errors.New()
	path := Path()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
