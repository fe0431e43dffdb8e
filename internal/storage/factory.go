// ABOUTME: Chooses the workout history backend once per process.
// ABOUTME: Prefers SQLite and falls back to the flat kv backend with a warning.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/harperreed/afterwod/internal/kv"
)

// DBFileName is the SQLite file inside the data directory.
const DBFileName = "afterwod.db"

// Options configures Open and the backend constructors.
type Options struct {
	DataDir string
	Backend string // auto, sqlite, or flat; empty means auto

	// KV holds the migration flag, the legacy history, and the flat
	// backend's records. It is owned by the caller.
	KV kv.Store

	Logger    *slog.Logger
	Now       func() time.Time
	Retention RetentionPolicy

	// Probe, when set, runs before SQLite is opened. A non-nil error means
	// the structured backend is unavailable in this environment.
	Probe func(dbPath string) error
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Retention.MonthlyLimit <= 0 {
		o.Retention = DefaultRetentionPolicy
	}
	if o.Backend == "" {
		o.Backend = BackendAuto
	}
	return o
}

// Open returns the backend selected by opts.Backend. It does not call
// Initialize.
func Open(ctx context.Context, opts Options) (Adapter, error) {
	opts = opts.withDefaults()
	if opts.KV == nil {
		return nil, fmt.Errorf("%w: no kv store configured", ErrStorageUnavailable)
	}

	switch opts.Backend {
	case BackendFlat:
		return NewFlatStore(opts)

	case BackendSQLite:
		s, err := openStructured(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return s, nil

	case BackendAuto:
		s, err := openStructured(ctx, opts)
		if err == nil {
			opts.Logger.Debug("using sqlite workout history", "path", s.Path())
			return s, nil
		}
		opts.Logger.Warn("sqlite unavailable, falling back to flat workout history; queries are unindexed",
			"error", err)
		return NewFlatStore(opts)

	default:
		return nil, fmt.Errorf("unknown backend %q (want auto, sqlite, or flat)", opts.Backend)
	}
}

func openStructured(ctx context.Context, opts Options) (*SQLiteStore, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("no data directory configured")
	}
	dbPath := filepath.Join(opts.DataDir, DBFileName)
	if opts.Probe != nil {
		if err := opts.Probe(dbPath); err != nil {
			return nil, fmt.Errorf("probe sqlite: %w", err)
		}
	}
	return OpenSQLite(ctx, dbPath, opts)
}

// DataDir returns the default data directory following XDG conventions.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "afterwod")
}
