package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
	"github.com/randalmurphal/plannr/internal/importer"
	"github.com/randalmurphal/plannr/internal/omnifocus"
	"github.com/randalmurphal/plannr/internal/task"
)

func launch() ([]omnifocus.NormalizedProject, []omnifocus.NormalizedTask) {
	due := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	projects := []omnifocus.NormalizedProject{
		{Name: "Launch", Color: task.ProjectPalette[2], Status: task.ProjectStatusActive, Due: &due},
	}
	tasks := []omnifocus.NormalizedTask{
		{Title: "Design", Status: task.StatusTodo, Priority: task.PriorityHigh, ProjectName: "Launch"},
		{Title: "Ship", Status: task.StatusCompleted, Priority: task.PriorityMedium, ProjectName: "Launch"},
		{Title: "Call Mom", Status: task.StatusTodo, Priority: task.PriorityMedium, Due: &due},
	}
	return projects, tasks
}

func TestOpenStoreMigrates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "plannr.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening applies nothing twice.
	store, err = OpenStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	p, tk, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, p)
	assert.Zero(t, tk)
}

func TestImportThroughCoordinator(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	ctx := context.Background()
	projects, tasks := launch()

	report, err := importer.NewCoordinator(store, nil).ImportBatch(ctx, projects, tasks)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProjectsImported)
	assert.Equal(t, 3, report.TasksImported)

	gotProjects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, gotProjects, 1)
	p := gotProjects[0]
	assert.Equal(t, "Launch", p.Name)
	assert.Len(t, p.ID, 36, "uuid")
	assert.Equal(t, task.ProjectPalette[2], p.Color)
	require.NotNil(t, p.DueAt)
	assert.True(t, p.DueAt.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
	assert.False(t, p.CreatedAt.IsZero())

	gotTasks, err := store.ListTasks(ctx, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, gotTasks, 3)
	assert.Equal(t, []string{"Design", "Ship", "Call Mom"}, []string{gotTasks[0].Title, gotTasks[1].Title, gotTasks[2].Title})
	assert.True(t, gotTasks[0].InProject(p.ID))
	assert.True(t, gotTasks[1].InProject(p.ID))
	assert.Equal(t, task.StatusCompleted, gotTasks[1].Status)
	assert.Nil(t, gotTasks[2].ProjectID)
	assert.Equal(t, 0, gotTasks[0].SortOrder)
	assert.Equal(t, 2, gotTasks[2].SortOrder)

	owned, err := store.ListTasks(ctx, TaskFilter{ProjectID: &p.ID})
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	inbox, err := store.ListTasks(ctx, TaskFilter{Unassigned: true})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Call Mom", inbox[0].Title)
}

func TestRepeatedImportsCoexist(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	ctx := context.Background()
	coord := importer.NewCoordinator(store, nil)

	for i := 0; i < 2; i++ {
		projects, tasks := launch()
		_, err := coord.ImportBatch(ctx, projects, tasks)
		require.NoError(t, err)
	}

	gotProjects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, gotProjects, 2, "duplicates are kept, not merged")
	assert.NotEqual(t, gotProjects[0].ID, gotProjects[1].ID)
	assert.Equal(t, 1, gotProjects[1].SortOrder, "sort order continues across imports")

	latest, err := store.ProjectByName(ctx, "Launch")
	require.NoError(t, err)
	assert.Equal(t, gotProjects[1].ID, latest.ID)

	owned, err := store.ListTasks(ctx, TaskFilter{ProjectID: &gotProjects[0].ID})
	require.NoError(t, err)
	assert.Len(t, owned, 2, "second import must not reassign first import's tasks")
}

func TestProjectByNameNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewTestStore(t).ProjectByName(context.Background(), "Nope")
	require.Error(t, err)
	assert.True(t, plannrerrors.HasCode(err, plannrerrors.CodeProjectNotFound))
}

func TestDiscardLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	ctx := context.Background()

	batch, err := store.BeginImport(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.InsertProjects(ctx, []*task.Project{
		{Name: "Launch", Color: task.ProjectPalette[0], Status: task.ProjectStatusActive},
	}))
	require.NoError(t, batch.Discard())
	require.NoError(t, batch.Discard(), "second discard is a no-op")
	assert.Error(t, batch.Commit(ctx), "commit after discard")

	p, tk, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, p)
	assert.Zero(t, tk)
}

func TestInvalidTaskDiscardsWholeImport(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	ctx := context.Background()

	projects, tasks := launch()
	tasks[2].Priority = "urgent"

	_, err := importer.NewCoordinator(store, nil).ImportBatch(ctx, projects, tasks)
	require.Error(t, err)
	assert.True(t, plannrerrors.HasCode(err, plannrerrors.CodePersistenceFailed))

	p, tk, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, p, "projects inserted earlier in the batch must be rolled back")
	assert.Zero(t, tk)
}

func TestBatchInvisibleUntilCommit(t *testing.T) {
	t.Parallel()

	// File-backed so a second connection can read while the batch is open.
	store, err := OpenStore(filepath.Join(t.TempDir(), "plannr.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	batch, err := store.BeginImport(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.InsertProjects(ctx, []*task.Project{
		{Name: "Launch", Color: task.ProjectPalette[0], Status: task.ProjectStatusActive},
	}))

	listed, err := store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, batch.Commit(ctx))
	listed, err = store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestRunInTx(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(tx *TxOps) error {
		_, err := tx.Exec(`INSERT INTO projects (id, name, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"p-1", "Rolled back", "#000000", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.RunInTx(ctx, func(tx *TxOps) error {
		_, err := tx.Exec(`INSERT INTO projects (id, name, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"p-2", "Kept", "#000000", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z")
		return err
	})
	require.NoError(t, err)

	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Kept", projects[0].Name)
}
