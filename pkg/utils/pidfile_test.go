package utils

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_WriteReadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "grimrelay.pid")
	p := NewPIDFile(path)
	assert.Equal(t, path, p.Path())

	require.NoError(t, p.Write())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(raw)))

	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, p.Remove())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// second remove is a no-op
	assert.NoError(t, p.Remove())
}

func TestPIDFile_ReadErrors(t *testing.T) {
	_, err := NewPIDFile("").Read()
	assert.ErrorContains(t, err, "PID file path is empty")

	_, err = NewPIDFile(filepath.Join(t.TempDir(), "missing.pid")).Read()
	assert.ErrorContains(t, err, "failed to read PID file")

	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0o644))
	_, err = NewPIDFile(path).Read()
	assert.ErrorContains(t, err, "invalid PID format")

	require.NoError(t, os.WriteFile(path, []byte("0"), 0o644))
	_, err = NewPIDFile(path).Read()
	assert.ErrorContains(t, err, "invalid PID value")
}

func TestPIDFile_Signal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "self.pid")
	p := NewPIDFile(path)
	require.NoError(t, p.Write())

	// signal 0 probes the process without delivering anything
	assert.NoError(t, p.Signal(syscall.Signal(0)))

	require.NoError(t, os.WriteFile(path, []byte("999999"), 0o644))
	assert.ErrorContains(t, p.Signal(syscall.SIGTERM), "failed to send signal")

	assert.Error(t, NewPIDFile("").Signal(syscall.SIGTERM))
}
