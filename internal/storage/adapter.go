// ABOUTME: Adapter interface implemented by the sqlite and flat workout-history backends.
// ABOUTME: Also holds the pieces both backends share: clock, logger, kv handle, ordering.
package storage

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/harperreed/afterwod/internal/kv"
	"github.com/harperreed/afterwod/internal/models"
)

// Adapter is the storage contract for workout-completion history.
// Every result set is ordered by CreatedAt descending, ties broken by ID descending.
type Adapter interface {
	// Initialize runs the legacy migration if it has not completed yet.
	// A failed migration is logged and retried on the next Initialize.
	Initialize(ctx context.Context) error

	// GetAll returns every record, newest first. No records yields an
	// empty, non-nil slice; the same holds for the other reads.
	GetAll(ctx context.Context) ([]models.StoredRecord, error)
	// GetByDate returns the records dated exactly date (YYYY-MM-DD).
	GetByDate(ctx context.Context, date string) ([]models.StoredRecord, error)
	// GetByMonth returns the records whose date falls in year and month.
	GetByMonth(ctx context.Context, year int, month time.Month) ([]models.StoredRecord, error)
	// GetByMode returns the records with mode.
	GetByMode(ctx context.Context, mode models.WorkoutMode) ([]models.StoredRecord, error)

	// Add persists rec with a fresh ID and CreatedAt, then enforces the
	// retention policy before returning.
	Add(ctx context.Context, rec models.WorkoutRecord) (models.StoredRecord, error)

	// Delete removes the record with id. A missing id is not an error.
	Delete(ctx context.Context, id int64) error

	// Cleanup applies the retention policy on demand.
	Cleanup(ctx context.Context) (RetentionPlan, error)

	// Migrate runs the legacy migration and reports what it did.
	Migrate(ctx context.Context) (*MigrationReport, error)

	// Backend names the implementation: "sqlite" or "flat".
	Backend() string

	Close() error
}

// Backend names.
const (
	BackendAuto   = "auto"
	BackendSQLite = "sqlite"
	BackendFlat   = "flat"
)

// recordInserter writes an already-stamped record without running retention.
// Migration, copy, and import use it so historical CreatedAt values survive.
type recordInserter interface {
	GetAll(ctx context.Context) ([]models.StoredRecord, error)
	insert(ctx context.Context, rec models.StoredRecord) (models.StoredRecord, error)
}

// core is the state both backends carry.
type core struct {
	kv        kv.Store
	logger    *slog.Logger
	now       func() time.Time
	retention RetentionPolicy
}

func newCore(opts Options) core {
	opts = opts.withDefaults()
	return core{
		kv:        opts.KV,
		logger:    opts.Logger,
		now:       opts.Now,
		retention: opts.Retention,
	}
}

// initialize runs migration for target and swallows its failure.
func (c core) initialize(ctx context.Context, target recordInserter) error {
	if _, err := c.migrate(ctx, target); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Error("legacy migration failed, will retry on next start", "error", err)
	}
	return nil
}

// sortRecords orders records newest first by CreatedAt, then by ID.
func sortRecords(records []models.StoredRecord) {
	slices.SortFunc(records, func(a, b models.StoredRecord) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
