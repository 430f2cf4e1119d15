package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/plannr/internal/db/driver"
	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
	"github.com/randalmurphal/plannr/internal/task"
)

const schemaStore = "store"

// TxOps provides database operations within a transaction. Queries use ?
// placeholders and are rebound for the dialect.
// The context is stored and used for all operations, enabling cancellation
// and timeout propagation through the entire transaction.
type TxOps struct {
	tx  driver.Tx
	drv driver.Driver
	ctx context.Context
}

// Exec executes a query within the transaction.
func (t *TxOps) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(t.ctx, driver.Rebind(t.drv, query), args...)
}

// Query executes a query that returns rows within the transaction.
func (t *TxOps) Query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.Query(t.ctx, driver.Rebind(t.drv, query), args...)
}

// QueryRow executes a query that returns at most one row within the transaction.
func (t *TxOps) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(t.ctx, driver.Rebind(t.drv, query), args...)
}

// Context returns the context associated with this transaction.
func (t *TxOps) Context() context.Context {
	return t.ctx
}

// Store holds plannr's projects and tasks.
type Store struct {
	*DB
	now   func() time.Time
	newID func() string
}

// OpenStore opens the SQLite store at path and applies migrations.
func OpenStore(path string) (*Store, error) {
	return OpenStoreWithDialect(path, driver.DialectSQLite)
}

// OpenStoreWithDialect opens the store with a specific dialect.
func OpenStoreWithDialect(dsn string, dialect driver.Dialect) (*Store, error) {
	d, err := OpenWithDialect(dsn, dialect)
	if err != nil {
		return nil, err
	}
	return newStore(d)
}

// OpenStoreInMemory opens an empty in-memory SQLite store.
func OpenStoreInMemory() (*Store, error) {
	d, err := OpenInMemory()
	if err != nil {
		return nil, err
	}
	return newStore(d)
}

func newStore(d *DB) (*Store, error) {
	if err := d.Migrate(context.Background(), schemaStore); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}
	return &Store{
		DB:    d,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}, nil
}

// RunInTx executes the given function within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *TxOps) error) error {
	tx, err := s.driver.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	ops := &TxOps{tx: tx, drv: s.driver, ctx: ctx}
	if err := fn(ops); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const projectColumns = `id, name, notes, color, status, due_at, start_at, completed_at,
	source_added_at, source_modified_at, sort_order, created_at, updated_at`

const taskColumns = `id, project_id, title, notes, status, priority, due_at, start_at, completed_at,
	source_added_at, source_modified_at, sort_order, created_at, updated_at`

// ListProjects returns all projects in sort order.
func (s *Store) ListProjects(ctx context.Context) ([]*task.Project, error) {
	rows, err := s.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*task.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

// ProjectByName returns the most recently created project with the given
// name.
func (s *Store) ProjectByName(ctx context.Context, name string) (*task.Project, error) {
	row := s.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE name = ? ORDER BY sort_order DESC LIMIT 1`, name)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, plannrerrors.ErrProjectNotFound(name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	// ProjectID limits results to one project when set.
	ProjectID *string
	// Unassigned limits results to tasks without a project.
	Unassigned bool
}

// ListTasks returns tasks in sort order.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	switch {
	case f.ProjectID != nil:
		query += ` WHERE project_id = ?`
		args = append(args, *f.ProjectID)
	case f.Unassigned:
		query += ` WHERE project_id IS NULL`
	}
	query += ` ORDER BY sort_order, created_at`

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// Counts returns the number of stored projects and tasks.
func (s *Store) Counts(ctx context.Context) (projects, tasks int, err error) {
	if err := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&projects); err != nil {
		return 0, 0, fmt.Errorf("count projects: %w", err)
	}
	if err := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&tasks); err != nil {
		return 0, 0, fmt.Errorf("count tasks: %w", err)
	}
	return projects, tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*task.Project, error) {
	var (
		p                                      task.Project
		status                                 string
		due, start, completed, added, modified sql.NullString
		createdAt, updatedAt                   string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Notes, &p.Color, &status,
		&due, &start, &completed, &added, &modified,
		&p.SortOrder, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.Status = task.ProjectStatus(status)
	p.DueAt = parseNullTime(due)
	p.StartAt = parseNullTime(start)
	p.CompletedAt = parseNullTime(completed)
	p.SourceAddedAt = parseNullTime(added)
	p.SourceModifiedAt = parseNullTime(modified)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func scanTask(row scanner) (*task.Task, error) {
	var (
		t                                      task.Task
		projectID                              sql.NullString
		status, priority                       string
		due, start, completed, added, modified sql.NullString
		createdAt, updatedAt                   string
	)
	if err := row.Scan(&t.ID, &projectID, &t.Title, &t.Notes, &status, &priority,
		&due, &start, &completed, &added, &modified,
		&t.SortOrder, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if projectID.Valid {
		t.ProjectID = &projectID.String
	}
	t.Status = task.Status(status)
	t.Priority = task.Priority(priority)
	t.DueAt = parseNullTime(due)
	t.StartAt = parseNullTime(start)
	t.CompletedAt = parseNullTime(completed)
	t.SourceAddedAt = parseNullTime(added)
	t.SourceModifiedAt = parseNullTime(modified)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
