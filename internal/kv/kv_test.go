// ABOUTME: Contract tests run against every kv engine.
// ABOUTME: Covers get/set/delete, atomic updates, closed stores, and persistence.
package kv

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func engines(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"badger": func(t *testing.T) Store {
			s, err := OpenBadger("", nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"bolt": func(t *testing.T) Store {
			s, err := OpenBolt(filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)

			_, found, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, s.Set(ctx, "cf_migration_completed", "true"))
			v, found, err := s.Get(ctx, "cf_migration_completed")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, "true", v)

			require.NoError(t, s.Set(ctx, "cf_migration_completed", "false"))
			v, _, err = s.Get(ctx, "cf_migration_completed")
			require.NoError(t, err)
			require.Equal(t, "false", v)

			require.NoError(t, s.Delete(ctx, "cf_migration_completed"))
			_, found, err = s.Get(ctx, "cf_migration_completed")
			require.NoError(t, err)
			require.False(t, found)

			// Deleting a missing key is a no-op.
			require.NoError(t, s.Delete(ctx, "never-set"))
		})
	}
}

func TestStoreUpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			require.NoError(t, s.Set(ctx, "a", "1"))

			err := s.Update(ctx, func(tx Txn) error {
				if err := tx.Set("a", "2"); err != nil {
					return err
				}
				if err := tx.Set("b", "2"); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)

			v, _, err := s.Get(ctx, "a")
			require.NoError(t, err)
			require.Equal(t, "1", v)
			_, found, err := s.Get(ctx, "b")
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

func TestStoreUpdateSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			err := s.Update(ctx, func(tx Txn) error {
				if err := tx.Set("k", "v"); err != nil {
					return err
				}
				v, found, err := tx.Get("k")
				require.NoError(t, err)
				require.True(t, found)
				require.Equal(t, "v", v)
				return tx.Delete("k")
			})
			require.NoError(t, err)

			_, found, err := s.Get(ctx, "k")
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

func TestStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			const workers = 8

			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- s.Update(ctx, func(tx Txn) error {
						v, _, err := tx.Get("counter")
						if err != nil {
							return err
						}
						n, _ := strconv.Atoi(v)
						return tx.Set("counter", strconv.Itoa(n+1))
					})
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			v, _, err := s.Get(ctx, "counter")
			require.NoError(t, err)
			require.Equal(t, strconv.Itoa(workers), v)
		})
	}
}

func TestStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			_, _, err := s.Get(ctx, "k")
			require.ErrorIs(t, err, context.Canceled)
			require.ErrorIs(t, s.Set(ctx, "k", "v"), context.Canceled)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	for name, open := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			require.NoError(t, s.Close())
			require.NoError(t, s.Close(), "second close should be a no-op")

			require.ErrorIs(t, s.Set(ctx, "k", "v"), ErrClosed)
		})
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	for _, engine := range []string{EngineBadger, EngineBolt} {
		t.Run(engine, func(t *testing.T) {
			dir := t.TempDir()

			s, err := Open(engine, dir, nil)
			require.NoError(t, err)
			require.NoError(t, s.Set(ctx, "cf_workout_history", `[{"date":"2025-01-10"}]`))
			require.NoError(t, s.Close())

			s, err = Open(engine, dir, nil)
			require.NoError(t, err)
			defer s.Close()
			v, found, err := s.Get(ctx, "cf_workout_history")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, `[{"date":"2025-01-10"}]`, v)
		})
	}
}

func TestOpenUnknownEngine(t *testing.T) {
	_, err := Open("leveldb", t.TempDir(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown kv engine")
}
