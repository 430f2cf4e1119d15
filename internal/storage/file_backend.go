package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
	"github.com/randalmurphal/plannr/internal/importer"
	"github.com/randalmurphal/plannr/internal/task"
	"github.com/randalmurphal/plannr/internal/util"
)

const snapshotVersion = 1

// snapshot is the on-disk object graph.
type snapshot struct {
	Version  int             `json:"version"`
	Projects []*task.Project `json:"projects"`
	Tasks    []*task.Task    `json:"tasks"`
}

// FileBackend keeps every project and task in memory and persists them as
// one JSON snapshot. Each commit rewrites the snapshot atomically and only
// then publishes the new records in memory.
type FileBackend struct {
	path string

	mu   sync.RWMutex
	snap snapshot

	now   func() time.Time
	newID func() string
	// write persists a snapshot; replaced in tests to simulate failures.
	write func(path string, s *snapshot) error
}

// NewFileBackend loads the snapshot at path. A missing file is an empty store.
func NewFileBackend(path string) (*FileBackend, error) {
	b := &FileBackend{
		path:  path,
		snap:  snapshot{Version: snapshotVersion},
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
		write: func(path string, s *snapshot) error {
			return util.AtomicWriteJSON(path, s, 0644)
		},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &b.snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if b.snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot %s: unsupported version %d", path, b.snap.Version)
	}
	return b, nil
}

// Path returns the snapshot location.
func (b *FileBackend) Path() string {
	return b.path
}

// Close releases nothing; every commit is already on disk.
func (b *FileBackend) Close() error {
	return nil
}

// ListProjects returns copies of all projects in sort order.
func (b *FileBackend) ListProjects(ctx context.Context) ([]*task.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*task.Project, 0, len(b.snap.Projects))
	for _, p := range b.snap.Projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ListTasks returns copies of the matching tasks in sort order.
func (b *FileBackend) ListTasks(ctx context.Context, f TaskFilter) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*task.Task
	for _, t := range b.snap.Tasks {
		switch {
		case f.ProjectID != nil && !t.InProject(*f.ProjectID):
			continue
		case f.ProjectID == nil && f.Unassigned && t.ProjectID != nil:
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// ProjectByName returns the most recently created project with the given name.
func (b *FileBackend) ProjectByName(ctx context.Context, name string) (*task.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := len(b.snap.Projects) - 1; i >= 0; i-- {
		if p := b.snap.Projects[i]; p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, plannrerrors.ErrProjectNotFound(name)
}

// Counts returns the number of stored projects and tasks.
func (b *FileBackend) Counts(ctx context.Context) (projects, tasks int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.snap.Projects), len(b.snap.Tasks), nil
}

// BeginImport starts a staged import.
func (b *FileBackend) BeginImport(ctx context.Context) (importer.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fileBatch{backend: b}, nil
}

// fileBatch stages records outside the backend until Commit.
type fileBatch struct {
	backend  *FileBackend
	projects []*task.Project
	tasks    []*task.Task
	done     bool
}

func (fb *fileBatch) check(ctx context.Context) error {
	if fb.done {
		return fmt.Errorf("import batch already finished")
	}
	return ctx.Err()
}

// InsertProjects validates and stages projects, assigning IDs.
func (fb *fileBatch) InsertProjects(ctx context.Context, projects []*task.Project) error {
	if err := fb.check(ctx); err != nil {
		return err
	}
	now := fb.backend.now()
	for _, p := range projects {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("project %q: %w", p.Name, err)
		}
		p.Stamp(fb.backend.newID(), 0, now)
		cp := *p
		fb.projects = append(fb.projects, &cp)
	}
	return nil
}

// InsertTasks validates and stages tasks, assigning IDs.
func (fb *fileBatch) InsertTasks(ctx context.Context, tasks []*task.Task) error {
	if err := fb.check(ctx); err != nil {
		return err
	}
	now := fb.backend.now()
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task %q: %w", t.Title, err)
		}
		t.Stamp(fb.backend.newID(), 0, now)
		cp := *t
		fb.tasks = append(fb.tasks, &cp)
	}
	return nil
}

// Commit writes the merged snapshot, then publishes it. Sort orders continue
// from the records already stored at commit time.
func (fb *fileBatch) Commit(ctx context.Context) error {
	if err := fb.check(ctx); err != nil {
		return err
	}
	fb.done = true

	b := fb.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	next := snapshot{
		Version:  snapshotVersion,
		Projects: append(append(make([]*task.Project, 0, len(b.snap.Projects)+len(fb.projects)), b.snap.Projects...), fb.projects...),
		Tasks:    append(append(make([]*task.Task, 0, len(b.snap.Tasks)+len(fb.tasks)), b.snap.Tasks...), fb.tasks...),
	}
	for i, p := range fb.projects {
		p.SortOrder = len(b.snap.Projects) + i
	}
	for i, t := range fb.tasks {
		t.SortOrder = len(b.snap.Tasks) + i
	}

	if err := b.write(b.path, &next); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	b.snap = next
	return nil
}

// Discard drops the staged records.
func (fb *fileBatch) Discard() error {
	fb.done = true
	fb.projects, fb.tasks = nil, nil
	return nil
}
