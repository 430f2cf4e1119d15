// Package importer writes normalized export records into a plannr store.
package importer

import (
	"context"
	"fmt"
	"log/slog"

	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
	"github.com/randalmurphal/plannr/internal/omnifocus"
	"github.com/randalmurphal/plannr/internal/task"
)

// Store is the host store as seen by an import.
type Store interface {
	// BeginImport opens a batch. Nothing is visible to readers until the
	// batch commits.
	BeginImport(ctx context.Context) (Batch, error)
}

// Batch stages inserts for one import.
type Batch interface {
	// InsertProjects assigns ID, timestamps and sort order to each project.
	InsertProjects(ctx context.Context, projects []*task.Project) error
	// InsertTasks assigns ID, timestamps and sort order to each task.
	InsertTasks(ctx context.Context, tasks []*task.Task) error
	// Commit persists the batch in a single write.
	Commit(ctx context.Context) error
	// Discard drops everything staged. It is a no-op after Commit.
	Discard() error
}

// Report summarizes a completed import.
type Report struct {
	ProjectsImported int `json:"projects_imported"`
	TasksImported    int `json:"tasks_imported"`

	// EntryPath and Layout describe where the payload was found, when known.
	EntryPath string `json:"entry_path,omitempty"`
	Layout    string `json:"layout,omitempty"`
}

// Coordinator transplants normalized records into a Store.
type Coordinator struct {
	store  Store
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: store, logger: logger}
}

// ImportBatch inserts projects, maps each task's project name to the new
// project ID and inserts the tasks, then commits once. Any failure before
// the commit discards the batch; a failed commit leaves the store as it was.
//
// Project names are not unique in exports. When two projects share a name,
// their tasks all go to the one inserted last.
func (c *Coordinator) ImportBatch(ctx context.Context, projects []omnifocus.NormalizedProject, tasks []omnifocus.NormalizedTask) (*Report, error) {
	batch, err := c.store.BeginImport(ctx)
	if err != nil {
		return nil, plannrerrors.ErrPersistenceFailed().WithCause(fmt.Errorf("begin import: %w", err))
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if dErr := batch.Discard(); dErr != nil {
			c.logger.Warn("discard import batch", "error", dErr)
		}
	}()

	projectRecords := make([]*task.Project, len(projects))
	for i := range projects {
		projectRecords[i] = toProject(&projects[i])
	}
	if err := batch.InsertProjects(ctx, projectRecords); err != nil {
		return nil, plannrerrors.ErrPersistenceFailed().WithCause(fmt.Errorf("insert projects: %w", err))
	}

	ids := c.projectIDs(projectRecords)

	taskRecords := make([]*task.Task, len(tasks))
	unmatched := 0
	for i := range tasks {
		rec := toTask(&tasks[i])
		if name := tasks[i].ProjectName; name != "" {
			if id, ok := ids[name]; ok {
				rec.ProjectID = &id
			} else {
				unmatched++
			}
		}
		taskRecords[i] = rec
	}
	if unmatched > 0 {
		c.logger.Warn("tasks reference unknown projects; imported without a project", "count", unmatched)
	}

	if err := batch.InsertTasks(ctx, taskRecords); err != nil {
		return nil, plannrerrors.ErrPersistenceFailed().WithCause(fmt.Errorf("insert tasks: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := batch.Commit(ctx); err != nil {
		return nil, plannrerrors.ErrPersistenceFailed().WithCause(err)
	}
	committed = true

	c.logger.Info("import committed",
		"projects", len(projectRecords),
		"tasks", len(taskRecords))

	return &Report{
		ProjectsImported: len(projectRecords),
		TasksImported:    len(taskRecords),
	}, nil
}

// projectIDs builds the name to ID map for one import. Later projects
// overwrite earlier ones with the same name.
func (c *Coordinator) projectIDs(projects []*task.Project) map[string]string {
	ids := make(map[string]string, len(projects))
	for _, p := range projects {
		if prev, ok := ids[p.Name]; ok {
			c.logger.Warn("duplicate project name; tasks will be assigned to the later project",
				"name", p.Name,
				"previous_id", prev,
				"id", p.ID)
		}
		ids[p.Name] = p.ID
	}
	return ids
}

func toProject(p *omnifocus.NormalizedProject) *task.Project {
	return &task.Project{
		Name:             p.Name,
		Notes:            p.Notes,
		Color:            p.Color,
		Status:           p.Status,
		DueAt:            p.Due,
		StartAt:          p.Start,
		CompletedAt:      p.Completed,
		SourceAddedAt:    p.Added,
		SourceModifiedAt: p.Modified,
	}
}

func toTask(t *omnifocus.NormalizedTask) *task.Task {
	return &task.Task{
		Title:            t.Title,
		Notes:            t.Notes,
		Status:           t.Status,
		Priority:         t.Priority,
		DueAt:            t.Due,
		StartAt:          t.Start,
		CompletedAt:      t.Completed,
		SourceAddedAt:    t.Added,
		SourceModifiedAt: t.Modified,
	}
}
