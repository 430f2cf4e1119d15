package storage

import (
	"path/filepath"
	"testing"
)

// NewTestFileBackend creates a file backend in a temp directory.
// The backend is automatically closed when the test completes.
func NewTestFileBackend(t testing.TB) *FileBackend {
	t.Helper()

	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "plannr.json"))
	if err != nil {
		t.Fatalf("create test backend: %v", err)
	}

	t.Cleanup(func() {
		_ = backend.Close()
	})

	return backend
}
