package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nhle/classfeed/internal/store"
)

// NewTestStore opens a SQLite store in a per-test directory and closes it
// when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "classfeed.db"))
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

// Seed writes key/value pairs into s, failing the test on error.
func Seed(t *testing.T, s store.Store, pairs map[string]string) {
	t.Helper()

	for k, v := range pairs {
		if err := s.Set(context.Background(), k, v); err != nil {
			t.Fatalf("seeding %s: %v", k, err)
		}
	}
}
