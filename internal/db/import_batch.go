package db

import (
	"context"
	"fmt"

	"github.com/randalmurphal/plannr/internal/db/driver"
	"github.com/randalmurphal/plannr/internal/importer"
	"github.com/randalmurphal/plannr/internal/task"
)

// importBatch stages an import inside one transaction. Commit is the single
// persistence write; until then other connections see nothing.
type importBatch struct {
	store *Store
	tx    driver.Tx
	done  bool

	nextProjectOrder int
	nextTaskOrder    int
}

// BeginImport opens a transaction for an import.
func (s *Store) BeginImport(ctx context.Context) (importer.Batch, error) {
	tx, err := s.driver.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	b := &importBatch{store: s, tx: tx}

	ops := &TxOps{tx: tx, drv: s.driver, ctx: ctx}
	if b.nextProjectOrder, err = nextSortOrder(ops, "projects"); err == nil {
		b.nextTaskOrder, err = nextSortOrder(ops, "tasks")
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return b, nil
}

var _ importer.Store = (*Store)(nil)

func nextSortOrder(tx *TxOps, table string) (int, error) {
	var n int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(sort_order), -1) + 1 FROM ` + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("read %s sort order: %w", table, err)
	}
	return n, nil
}

func (b *importBatch) ops(ctx context.Context) (*TxOps, error) {
	if b.done {
		return nil, fmt.Errorf("import batch already finished")
	}
	return &TxOps{tx: b.tx, drv: b.store.driver, ctx: ctx}, nil
}

// InsertProjects stamps and inserts projects in order.
func (b *importBatch) InsertProjects(ctx context.Context, projects []*task.Project) error {
	tx, err := b.ops(ctx)
	if err != nil {
		return err
	}
	now := b.store.now()
	for _, p := range projects {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("project %q: %w", p.Name, err)
		}
		p.Stamp(b.store.newID(), b.nextProjectOrder, now)
		b.nextProjectOrder++

		if _, err := tx.Exec(`INSERT INTO projects (`+projectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Notes, p.Color, string(p.Status),
			formatNullTime(p.DueAt), formatNullTime(p.StartAt), formatNullTime(p.CompletedAt),
			formatNullTime(p.SourceAddedAt), formatNullTime(p.SourceModifiedAt),
			p.SortOrder, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert project %q: %w", p.Name, err)
		}
	}
	return nil
}

// InsertTasks stamps and inserts tasks in order.
func (b *importBatch) InsertTasks(ctx context.Context, tasks []*task.Task) error {
	tx, err := b.ops(ctx)
	if err != nil {
		return err
	}
	now := b.store.now()
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task %q: %w", t.Title, err)
		}
		t.Stamp(b.store.newID(), b.nextTaskOrder, now)
		b.nextTaskOrder++

		if _, err := tx.Exec(`INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, nullString(t.ProjectID), t.Title, t.Notes, string(t.Status), string(t.Priority),
			formatNullTime(t.DueAt), formatNullTime(t.StartAt), formatNullTime(t.CompletedAt),
			formatNullTime(t.SourceAddedAt), formatNullTime(t.SourceModifiedAt),
			t.SortOrder, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert task %q: %w", t.Title, err)
		}
	}
	return nil
}

// Commit commits the transaction.
func (b *importBatch) Commit(context.Context) error {
	if b.done {
		return fmt.Errorf("import batch already finished")
	}
	b.done = true
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// Discard rolls the transaction back.
func (b *importBatch) Discard() error {
	if b.done {
		return nil
	}
	b.done = true
	return b.tx.Rollback()
}
