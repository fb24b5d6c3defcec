package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/dynaquery/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp dir with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createOrderStore creates a test store holding the fixture order tables.
func createOrderStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	if err := s.ExecScript(context.Background(), testutil.OrderTablesSQL); err != nil {
		t.Fatalf("ExecScript() failed: %v", err)
	}
	return s
}
