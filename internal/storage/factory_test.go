package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/plannr/internal/config"
	"github.com/randalmurphal/plannr/internal/db"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.Default()
		cfg.Database.SQLite.Path = filepath.Join(dir, "plannr.db")

		b, err := NewBackend(cfg)
		require.NoError(t, err)
		defer func() { _ = b.Close() }()
		assert.IsType(t, &db.Store{}, b)

		p, tk, err := b.Counts(context.Background())
		require.NoError(t, err)
		assert.Zero(t, p+tk)
	})

	t.Run("file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Backend = config.BackendFile
		cfg.Storage.File.Path = filepath.Join(dir, "plannr.json")

		b, err := NewBackend(cfg)
		require.NoError(t, err)
		defer func() { _ = b.Close() }()
		assert.IsType(t, &FileBackend{}, b)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Backend = "cloud"
		_, err := NewBackend(cfg)
		assert.ErrorContains(t, err, "unknown storage backend")
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := config.Default()
		cfg.Database.Driver = "mysql"
		_, err := NewBackend(cfg)
		assert.Error(t, err)
	})
}
