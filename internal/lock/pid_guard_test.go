package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePID(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, PIDFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readPID(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, PIDFileName))
	require.NoError(t, err)
	return string(data)
}

func TestPIDGuard_Check_NoFiles(t *testing.T) {
	assert.NoError(t, NewPIDGuard(t.TempDir()).Check())
}

func TestPIDGuard_Check_Held(t *testing.T) {
	tmpDir := t.TempDir()
	holder := NewPIDGuard(tmpDir)
	require.NoError(t, holder.Acquire())
	defer holder.Release()

	err := NewPIDGuard(tmpDir).Check()
	var running *AlreadyRunningError
	require.True(t, errors.As(err, &running))
	assert.Equal(t, os.Getpid(), running.PID)

	assert.NoError(t, holder.Check(), "the holder itself is not blocked")
}

func TestPIDGuard_Check_DoesNotTakeLock(t *testing.T) {
	tmpDir := t.TempDir()
	holder := NewPIDGuard(tmpDir)
	require.NoError(t, holder.Acquire())
	holder.Release()

	require.NoError(t, NewPIDGuard(tmpDir).Check())
	other := NewPIDGuard(tmpDir)
	require.NoError(t, other.Acquire(), "Check must leave the lock free")
	other.Release()
}

func TestPIDGuard_AcquireRelease(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "store")
	guard := NewPIDGuard(tmpDir)

	require.NoError(t, guard.Acquire())
	assert.Equal(t, strconv.Itoa(os.Getpid()), readPID(t, tmpDir))

	// A second guard on the same directory is excluded by the file lock.
	var running *AlreadyRunningError
	assert.True(t, errors.As(NewPIDGuard(tmpDir).Acquire(), &running))
	assert.Equal(t, strconv.Itoa(os.Getpid()), readPID(t, tmpDir), "loser leaves the PID file alone")

	guard.Release()
	_, err := os.Stat(filepath.Join(tmpDir, PIDFileName))
	assert.True(t, os.IsNotExist(err))

	guard.Release() // not held, no-op
	require.NoError(t, guard.Acquire(), "reacquire after release")
	guard.Release()
}

func TestPIDGuard_AcquireOverwritesLeftoverPIDFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dead process", "999999"},
		// A crashed holder's PID reused by an unrelated live process.
		{"live unrelated process", strconv.Itoa(os.Getppid())},
		{"this process", strconv.Itoa(os.Getpid())},
		{"garbage", "not-a-number"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			writePID(t, tmpDir, tt.content)

			guard := NewPIDGuard(tmpDir)
			require.NoError(t, guard.Acquire())
			defer guard.Release()
			assert.Equal(t, strconv.Itoa(os.Getpid()), readPID(t, tmpDir))
		})
	}
}

func TestPIDGuard_ReleaseWithoutLockKeepsFile(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := writePID(t, tmpDir, "999999")

	NewPIDGuard(tmpDir).Release()
	_, err := os.Stat(pidFile)
	assert.NoError(t, err, "a guard that never acquired leaves the file alone")
}

func TestPIDGuard_HeldLockWithUnreadablePIDFile(t *testing.T) {
	tmpDir := t.TempDir()
	holder := NewPIDGuard(tmpDir)
	require.NoError(t, holder.Acquire())
	defer holder.Release()
	writePID(t, tmpDir, "")

	err := NewPIDGuard(tmpDir).Acquire()
	var running *AlreadyRunningError
	require.True(t, errors.As(err, &running))
	assert.Zero(t, running.PID)
	assert.Equal(t, "import already running", err.Error())
	assert.Equal(t, "", readPID(t, tmpDir), "loser does not delete a PID file it cannot parse")

	require.NoError(t, os.Remove(filepath.Join(tmpDir, PIDFileName)))
	err = NewPIDGuard(tmpDir).Acquire()
	assert.True(t, errors.As(err, &running), "the lock still excludes without a PID file")
}
