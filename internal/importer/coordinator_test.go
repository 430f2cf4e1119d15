package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
	"github.com/randalmurphal/plannr/internal/omnifocus"
	"github.com/randalmurphal/plannr/internal/task"
)

// fakeStore records what each import does. Committed records land in
// projects and tasks.
type fakeStore struct {
	mu       sync.Mutex
	projects []*task.Project
	tasks    []*task.Task
	nextID   int
	commits  int
	discards int

	failBegin    error
	failProjects error
	failTasks    error
	failCommit   error

	// started is signalled once BeginImport runs; BeginImport then waits on
	// hold when it is non-nil.
	started chan struct{}
	hold    chan struct{}
}

type fakeBatch struct {
	store    *fakeStore
	projects []*task.Project
	tasks    []*task.Task
}

func (s *fakeStore) BeginImport(_ context.Context) (Batch, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.hold != nil {
		<-s.hold
	}
	if s.failBegin != nil {
		return nil, s.failBegin
	}
	return &fakeBatch{store: s}, nil
}

func (b *fakeBatch) InsertProjects(_ context.Context, projects []*task.Project) error {
	if b.store.failProjects != nil {
		return b.store.failProjects
	}
	for _, p := range projects {
		p.ID = b.store.id("p")
	}
	b.projects = append(b.projects, projects...)
	return nil
}

func (b *fakeBatch) InsertTasks(_ context.Context, tasks []*task.Task) error {
	if b.store.failTasks != nil {
		return b.store.failTasks
	}
	for _, t := range tasks {
		t.ID = b.store.id("t")
	}
	b.tasks = append(b.tasks, tasks...)
	return nil
}

func (b *fakeBatch) Commit(_ context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.commits++
	if b.store.failCommit != nil {
		return b.store.failCommit
	}
	b.store.projects = append(b.store.projects, b.projects...)
	b.store.tasks = append(b.store.tasks, b.tasks...)
	return nil
}

func (b *fakeBatch) Discard() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.discards++
	return nil
}

func (s *fakeStore) id(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func launchRecords() ([]omnifocus.NormalizedProject, []omnifocus.NormalizedTask) {
	projects := []omnifocus.NormalizedProject{
		{Name: "Launch", Color: task.ProjectPalette[0], Status: task.ProjectStatusActive},
	}
	tasks := []omnifocus.NormalizedTask{
		{Title: "Design", Status: task.StatusTodo, Priority: task.PriorityMedium, ProjectName: "Launch"},
		{Title: "Ship", Status: task.StatusCompleted, Priority: task.PriorityMedium, ProjectName: "Launch"},
		{Title: "Call Mom", Status: task.StatusTodo, Priority: task.PriorityMedium},
	}
	return projects, tasks
}

func TestImportBatchLaunchScenario(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	projects, tasks := launchRecords()

	report, err := NewCoordinator(store, nil).ImportBatch(context.Background(), projects, tasks)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProjectsImported)
	assert.Equal(t, 3, report.TasksImported)

	assert.Equal(t, 1, store.commits)
	assert.Equal(t, 0, store.discards)
	require.Len(t, store.projects, 1)
	require.Len(t, store.tasks, 3)

	launchID := store.projects[0].ID
	require.NotEmpty(t, launchID)
	assert.True(t, store.tasks[0].InProject(launchID))
	assert.True(t, store.tasks[1].InProject(launchID))
	assert.Equal(t, task.StatusCompleted, store.tasks[1].Status)
	assert.Nil(t, store.tasks[2].ProjectID)
}

func TestImportBatchNameCollisionLastWins(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	store := &fakeStore{}
	projects := []omnifocus.NormalizedProject{
		{Name: "Launch", Status: task.ProjectStatusActive},
		{Name: "Launch", Status: task.ProjectStatusActive},
	}
	tasks := []omnifocus.NormalizedTask{
		{Title: "A", Status: task.StatusTodo, Priority: task.PriorityMedium, ProjectName: "Launch"},
		{Title: "B", Status: task.StatusTodo, Priority: task.PriorityMedium, ProjectName: "Launch"},
	}

	report, err := NewCoordinator(store, logger).ImportBatch(context.Background(), projects, tasks)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ProjectsImported)

	last := store.projects[1].ID
	assert.NotEqual(t, store.projects[0].ID, last)
	for _, tk := range store.tasks {
		assert.True(t, tk.InProject(last), "task %s should belong to the later project", tk.Title)
	}
	assert.Contains(t, logs.String(), "duplicate project name")
}

func TestImportBatchUnmatchedOwner(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	tasks := []omnifocus.NormalizedTask{
		{Title: "Stray", Status: task.StatusTodo, Priority: task.PriorityMedium, ProjectName: "Nowhere"},
	}

	report, err := NewCoordinator(store, nil).ImportBatch(context.Background(), nil, tasks)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ProjectsImported)
	assert.Equal(t, 1, report.TasksImported)
	assert.Nil(t, store.tasks[0].ProjectID)
}

func TestImportBatchFailureBeforeCommit(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{"insert projects fails", &fakeStore{failProjects: boom}},
		{"insert tasks fails", &fakeStore{failTasks: boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			projects, tasks := launchRecords()

			report, err := NewCoordinator(tt.store, nil).ImportBatch(context.Background(), projects, tasks)
			assert.Nil(t, report)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.True(t, plannrerrors.HasCode(err, plannrerrors.CodePersistenceFailed))

			assert.Equal(t, 0, tt.store.commits, "commit must not be attempted")
			assert.Equal(t, 1, tt.store.discards)
			assert.Empty(t, tt.store.projects)
			assert.Empty(t, tt.store.tasks)
		})
	}
}

func TestImportBatchBeginFails(t *testing.T) {
	t.Parallel()

	store := &fakeStore{failBegin: errors.New("locked")}
	projects, tasks := launchRecords()

	_, err := NewCoordinator(store, nil).ImportBatch(context.Background(), projects, tasks)
	require.Error(t, err)
	assert.True(t, plannrerrors.HasCode(err, plannrerrors.CodePersistenceFailed))
	assert.Equal(t, 0, store.commits)
}

func TestImportBatchCommitFails(t *testing.T) {
	t.Parallel()

	store := &fakeStore{failCommit: errors.New("disk full")}
	projects, tasks := launchRecords()

	_, err := NewCoordinator(store, nil).ImportBatch(context.Background(), projects, tasks)
	require.Error(t, err)
	assert.True(t, plannrerrors.HasCode(err, plannrerrors.CodePersistenceFailed))
	assert.Equal(t, 1, store.commits, "exactly one persistence write")
	assert.Empty(t, store.projects, "store must be unchanged")
	assert.Empty(t, store.tasks)
}

func TestImportBatchCanceledBeforeCommit(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	projects, tasks := launchRecords()
	_, err := NewCoordinator(store, nil).ImportBatch(ctx, projects, tasks)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.commits)
	assert.Equal(t, 1, store.discards)
}
