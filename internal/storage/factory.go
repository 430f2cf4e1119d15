package storage

import (
	"fmt"

	"github.com/randalmurphal/plannr/internal/config"
	"github.com/randalmurphal/plannr/internal/db"
	"github.com/randalmurphal/plannr/internal/db/driver"
)

// NewBackend creates a storage backend based on the configuration.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendDatabase, "":
		dialect, err := driver.ParseDialect(cfg.Database.Driver)
		if err != nil {
			return nil, err
		}
		store, err := db.OpenStoreWithDialect(cfg.DSN(), dialect)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", dialect, err)
		}
		return store, nil
	case config.BackendFile:
		return NewFileBackend(cfg.FilePath())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
