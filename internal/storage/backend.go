// Package storage selects where plannr keeps projects and tasks: a SQL
// database (internal/db) or a single JSON snapshot file.
package storage

import (
	"context"

	"github.com/randalmurphal/plannr/internal/db"
	"github.com/randalmurphal/plannr/internal/importer"
	"github.com/randalmurphal/plannr/internal/task"
)

// TaskFilter narrows ListTasks.
type TaskFilter = db.TaskFilter

// Backend defines the storage operations plannr needs.
// All implementations must be safe for concurrent access.
type Backend interface {
	// BeginImport stages an import that becomes visible only on Commit.
	importer.Store

	ListProjects(ctx context.Context) ([]*task.Project, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]*task.Task, error)
	// ProjectByName returns the most recently created project with name.
	ProjectByName(ctx context.Context, name string) (*task.Project, error)
	Counts(ctx context.Context) (projects, tasks int, err error)

	Close() error
}

var (
	_ Backend = (*db.Store)(nil)
	_ Backend = (*FileBackend)(nil)
)
