// ABOUTME: Flat string key-value store used for the legacy history, migration flag, and flat backend.
// ABOUTME: Defines the Store contract and the engine selector (badger or bolt).
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Engine names accepted by Open.
const (
	EngineBadger = "badger"
	EngineBolt   = "bolt"
)

// ErrClosed is returned when an operation runs after Close.
var ErrClosed = errors.New("kv store is closed")

// Txn is a read-write view over the store inside Update.
type Txn interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store is a string-valued key-value store with atomic multi-key updates.
// Get reports false for a missing key instead of returning an error.
// Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Update runs fn in a single read-write transaction. Writes made by fn
	// are committed together or not at all.
	Update(ctx context.Context, fn func(tx Txn) error) error
	Close() error
}

// Open opens the named engine under dataDir.
// Badger uses dataDir/kv as a directory; bolt uses the file dataDir/kv.db.
func Open(engine, dataDir string, logger *slog.Logger) (Store, error) {
	switch engine {
	case "", EngineBadger:
		return OpenBadger(filepath.Join(dataDir, "kv"), logger)
	case EngineBolt:
		return OpenBolt(filepath.Join(dataDir, "kv.db"))
	default:
		return nil, fmt.Errorf("unknown kv engine: %q", engine)
	}
}
