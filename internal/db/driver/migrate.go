package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// migrator applies numbered schema files and records them in _migrations.
type migrator struct {
	db          *sql.DB
	dir         string
	createTable string
	insert      string
}

func (m *migrator) run(ctx context.Context, fsys fs.FS, schemaType string) error {
	if _, err := m.db.ExecContext(ctx, m.createTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(fsys, m.dir)
	if err != nil {
		return fmt.Errorf("read schema dir %s: %w", m.dir, err)
	}

	prefix := schemaType + "_"
	var migrations []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".sql") {
			migrations = append(migrations, e.Name())
		}
	}
	sort.Strings(migrations)

	for _, name := range migrations {
		version := extractVersion(name, prefix)
		if version == 0 || applied[version] {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(m.dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := m.apply(ctx, name, version, string(content)); err != nil {
			return err
		}
	}
	return nil
}

func (m *migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}
	return applied, nil
}

func (m *migrator) apply(ctx context.Context, name string, version int, content string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, content); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, m.insert, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}
