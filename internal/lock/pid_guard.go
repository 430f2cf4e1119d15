// Package lock keeps two plannr processes from importing into the same
// store at the same time.
//
// Exclusion comes from an advisory file lock next to the store, which the
// kernel drops when its holder exits. The PID file beside it only names the
// holder for error messages; whoever owns the lock overwrites it.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"github.com/randalmurphal/plannr/internal/util"
)

const (
	// PIDFileName is the name of the PID file in the store directory.
	PIDFileName = "import.pid"
	// LockFileName is the advisory lock taken for the duration of an import.
	LockFileName = "import.lock"
)

// PIDGuard is a cross-process import lock.
type PIDGuard struct {
	dir string
	fl  *flock.Flock
}

// NewPIDGuard creates a guard for the store kept in dir.
func NewPIDGuard(dir string) *PIDGuard {
	return &PIDGuard{
		dir: dir,
		fl:  flock.New(filepath.Join(dir, LockFileName)),
	}
}

// pidFilePath returns the path to the PID file.
func (g *PIDGuard) pidFilePath() string {
	return filepath.Join(g.dir, PIDFileName)
}

// Check reports whether another process holds the guard, without taking it.
func (g *PIDGuard) Check() error {
	if g.fl.Locked() {
		return nil
	}
	if _, err := os.Stat(g.fl.Path()); os.IsNotExist(err) {
		return nil
	}
	locked, err := g.fl.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", g.fl.Path(), err)
	}
	if !locked {
		return &AlreadyRunningError{PID: g.holder()}
	}
	return g.fl.Unlock()
}

// Acquire takes the advisory lock and records this process in the PID file,
// replacing whatever a crashed holder left there. A live holder yields
// *AlreadyRunningError.
func (g *PIDGuard) Acquire() error {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	locked, err := g.fl.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", g.fl.Path(), err)
	}
	if !locked {
		return &AlreadyRunningError{PID: g.holder()}
	}

	// Written atomically so a losing process never reads a half-written PID.
	if err := util.AtomicWriteFile(g.pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		_ = g.fl.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the PID file and drops the advisory lock. It is a no-op
// when this guard does not hold the lock.
func (g *PIDGuard) Release() {
	if !g.fl.Locked() {
		return
	}
	_ = os.Remove(g.pidFilePath())
	_ = g.fl.Unlock()
}

// holder returns the PID recorded by the lock holder, or 0 when the file is
// missing or unreadable.
func (g *PIDGuard) holder() int {
	data, err := os.ReadFile(g.pidFilePath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// AlreadyRunningError indicates another process is importing.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	if e.PID <= 0 {
		return "import already running"
	}
	return fmt.Sprintf("import already running (pid %d)", e.PID)
}
