package server

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPidfilePathUsesPortSuffix(t *testing.T) {
	assert.Equal(t, filepath.Join("/cache", "server-5555.pid"), PidfilePath("/cache", 5555))
}

func TestWriteAndRemovePidfile(t *testing.T) {
	dir := t.TempDir()
	path := PidfilePath(dir, 5555)

	require.NoError(t, writePidfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, removePidfile(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRemovePidfileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := PidfilePath(dir, 5555)
	require.NoError(t, removePidfile(path))
	require.NoError(t, removePidfile(path))
}

func TestIsRunningFalseWhenPidfileAbsent(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRunning(dir, 5555))
}

func TestIsRunningFalseWhenPidStale(t *testing.T) {
	dir := t.TempDir()
	path := PidfilePath(dir, 5555)
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))
	assert.False(t, IsRunning(dir, 5555))
}

func TestIsRunningTrueForOwnPid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writePidfile(PidfilePath(dir, 5555)))
	assert.True(t, IsRunning(dir, 5555))
}
