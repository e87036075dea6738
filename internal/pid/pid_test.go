package pid

import (
	"os"
	"os/exec"
	"strconv"
	"testing"

	"codeberg.org/mutker/fanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	require.NoError(t, Write())
	data, err := os.ReadFile(Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	// Rewriting our own PID is not a conflict.
	require.NoError(t, Write())

	require.NoError(t, Remove())
	_, err = os.Stat(Path())
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, Remove())
}

func TestWriteDetectsRunningInstance(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	cmd := exec.Command("sleep", "10")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	require.NoError(t, os.WriteFile(Path(), []byte(strconv.Itoa(cmd.Process.Pid)), 0o600))

	err := Write()
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteReplacesStaleFile(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	require.NoError(t, os.WriteFile(Path(), []byte("not a pid"), 0o600))
	require.NoError(t, Write())

	data, err := os.ReadFile(Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}
