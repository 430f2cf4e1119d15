package db

import (
	"testing"
)

// NewTestStore creates an in-memory store for testing.
// The database is automatically closed when the test completes.
// Schema migrations are applied automatically.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    store := db.NewTestStore(t)
//	    // use store...
//	}
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	store, err := OpenStoreInMemory()
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
