// ABOUTME: Shared fixtures for storage tests: deterministic clock, kv, and backends.
// ABOUTME: Every backend test runs against both sqlite and flat through these helpers.
package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/afterwod/internal/kv"
	"github.com/harperreed/afterwod/internal/models"
)

// testClock returns strictly increasing times, one millisecond per call.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, time.October, 19, 12, 0, 0, 0, time.Local)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// setupTestKV opens an in-memory badger store.
func setupTestKV(t *testing.T) kv.Store {
	t.Helper()

	store, err := kv.OpenBadger("", nil)
	if err != nil {
		t.Fatalf("Failed to open kv store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// setupTestSQLite creates a sqlite backend in a temp directory.
func setupTestSQLite(t *testing.T, store kv.Store, clock *testClock) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), DBFileName)
	s, err := OpenSQLite(context.Background(), dbPath, Options{KV: store, Now: clock.Now})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// setupTestFlat creates a flat backend over store.
func setupTestFlat(t *testing.T, store kv.Store, clock *testClock) *FlatStore {
	t.Helper()

	s, err := NewFlatStore(Options{KV: store, Now: clock.Now})
	if err != nil {
		t.Fatalf("Failed to create flat store: %v", err)
	}
	return s
}

type backendFactory func(t *testing.T, store kv.Store, clock *testClock) Adapter

func testBackends() map[string]backendFactory {
	return map[string]backendFactory{
		BackendSQLite: func(t *testing.T, store kv.Store, clock *testClock) Adapter {
			return setupTestSQLite(t, store, clock)
		},
		BackendFlat: func(t *testing.T, store kv.Store, clock *testClock) Adapter {
			return setupTestFlat(t, store, clock)
		},
	}
}

// forEachBackend runs fn once per backend with a fresh kv store and clock.
func forEachBackend(t *testing.T, fn func(t *testing.T, a Adapter, store kv.Store, clock *testClock)) {
	t.Helper()
	for name, open := range testBackends() {
		t.Run(name, func(t *testing.T) {
			store := setupTestKV(t)
			clock := newTestClock()
			a := open(t, store, clock)
			fn(t, a, store, clock)
		})
	}
}

func mustAdd(t *testing.T, a Adapter, rec *models.WorkoutRecord) models.StoredRecord {
	t.Helper()
	stored, err := a.Add(context.Background(), *rec)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return stored
}

func ids(records []models.StoredRecord) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func assertNewestFirst(t *testing.T, records []models.StoredRecord) {
	t.Helper()
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if prev.CreatedAt < cur.CreatedAt || (prev.CreatedAt == cur.CreatedAt && prev.ID < cur.ID) {
			t.Fatalf("records not newest first at %d: %d/%d before %d/%d",
				i, prev.CreatedAt, prev.ID, cur.CreatedAt, cur.ID)
		}
	}
}
