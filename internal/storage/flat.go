// ABOUTME: Flat workout history: the whole record array as one JSON value in the kv store.
// ABOUTME: Degraded fallback with linear scans; corrupt data reads as an empty store.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/harperreed/afterwod/internal/kv"
	"github.com/harperreed/afterwod/internal/models"
)

// Keys used by the flat backend.
const (
	FlatRecordsKey = "cf_workout_records"
	FlatSeqKey     = FlatRecordsKey + ".seq"
	FlatCorruptKey = FlatRecordsKey + ".corrupt"
)

// FlatStore is the flat key-value backend.
type FlatStore struct {
	core
}

// Compile-time check that FlatStore implements Adapter.
var _ Adapter = (*FlatStore)(nil)

// NewFlatStore returns a flat backend over opts.KV.
func NewFlatStore(opts Options) (*FlatStore, error) {
	if opts.KV == nil {
		return nil, fmt.Errorf("flat backend: %w: no kv store", ErrStorageUnavailable)
	}
	return &FlatStore{core: newCore(opts)}, nil
}

// Backend returns "flat".
func (s *FlatStore) Backend() string { return BackendFlat }

// Close is a no-op; the kv store is owned by the caller.
func (s *FlatStore) Close() error { return nil }

// Initialize runs the legacy migration, then gives any legacy-shaped
// entries in the flat array an id and createdAt.
func (s *FlatStore) Initialize(ctx context.Context) error {
	if err := s.initialize(ctx, s); err != nil {
		return err
	}
	if err := s.mutate(ctx, func(records []models.StoredRecord) ([]models.StoredRecord, bool, error) {
		return records, false, nil
	}); err != nil {
		return fmt.Errorf("repair flat records: %w: %w", ErrTransactionFailure, err)
	}
	return nil
}

// Migrate transfers legacy records into the flat array.
func (s *FlatStore) Migrate(ctx context.Context) (*MigrationReport, error) {
	return s.migrate(ctx, s)
}

// GetAll returns every record, newest first.
func (s *FlatStore) GetAll(ctx context.Context) ([]models.StoredRecord, error) {
	return s.filter(ctx, func(models.StoredRecord) bool { return true })
}

// GetByDate returns records whose date equals date exactly.
func (s *FlatStore) GetByDate(ctx context.Context, date string) ([]models.StoredRecord, error) {
	return s.filter(ctx, func(r models.StoredRecord) bool { return r.Date == date })
}

// GetByMonth returns records dated within the given month, inclusive.
func (s *FlatStore) GetByMonth(ctx context.Context, year int, month time.Month) ([]models.StoredRecord, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d out of range", ErrInvalidRecord, month)
	}
	first, last := models.MonthBounds(year, month)
	return s.filter(ctx, func(r models.StoredRecord) bool {
		return r.Date >= first && r.Date <= last
	})
}

// GetByMode returns records with the given mode.
func (s *FlatStore) GetByMode(ctx context.Context, mode models.WorkoutMode) ([]models.StoredRecord, error) {
	return s.filter(ctx, func(r models.StoredRecord) bool { return r.Mode == mode })
}

func (s *FlatStore) filter(ctx context.Context, keep func(models.StoredRecord) bool) ([]models.StoredRecord, error) {
	raw, found, err := s.kv.Get(ctx, FlatRecordsKey)
	if err != nil {
		return nil, fmt.Errorf("read flat records: %w: %w", ErrTransactionFailure, err)
	}

	all, ok := s.decode(raw, found)
	if !ok {
		return []models.StoredRecord{}, nil
	}

	out := make([]models.StoredRecord, 0, len(all))
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

// Add appends rec and enforces retention in the same kv transaction.
func (s *FlatStore) Add(ctx context.Context, rec models.WorkoutRecord) (models.StoredRecord, error) {
	if err := rec.Validate(); err != nil {
		return models.StoredRecord{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if rec.Exercises == nil {
		rec.Exercises = []string{}
	}
	stored := models.StoredRecord{WorkoutRecord: rec, CreatedAt: s.now().UnixMilli()}

	var plan RetentionPlan
	err := s.mutateSeq(ctx, func(records []models.StoredRecord, next func() int64) ([]models.StoredRecord, bool, error) {
		stored.ID = next()
		records = append(records, stored)
		plan = s.retention.Plan(records, s.now())
		return evict(records, plan.Evict), true, nil
	})
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("add workout record: %w: %w", ErrTransactionFailure, err)
	}

	s.logEvictions(plan)
	return stored, nil
}

// Delete removes the record with id. Missing ids are ignored.
func (s *FlatStore) Delete(ctx context.Context, id int64) error {
	err := s.mutate(ctx, func(records []models.StoredRecord) ([]models.StoredRecord, bool, error) {
		kept := evict(records, []int64{id})
		return kept, len(kept) != len(records), nil
	})
	if err != nil {
		return fmt.Errorf("delete workout record: %w: %w", ErrTransactionFailure, err)
	}
	return nil
}

// Cleanup applies the retention policy.
func (s *FlatStore) Cleanup(ctx context.Context) (RetentionPlan, error) {
	var plan RetentionPlan
	err := s.mutate(ctx, func(records []models.StoredRecord) ([]models.StoredRecord, bool, error) {
		plan = s.retention.Plan(records, s.now())
		if plan.Empty() {
			return records, false, nil
		}
		return evict(records, plan.Evict), true, nil
	})
	if err != nil {
		return RetentionPlan{}, fmt.Errorf("cleanup: %w: %w", ErrTransactionFailure, err)
	}
	s.logEvictions(plan)
	return plan, nil
}

// insert appends a record that already carries its CreatedAt.
func (s *FlatStore) insert(ctx context.Context, rec models.StoredRecord) (models.StoredRecord, error) {
	if rec.Exercises == nil {
		rec.Exercises = []string{}
	}
	err := s.mutateSeq(ctx, func(records []models.StoredRecord, next func() int64) ([]models.StoredRecord, bool, error) {
		rec.ID = next()
		return append(records, rec), true, nil
	})
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("insert workout record: %w: %w", ErrTransactionFailure, err)
	}
	return rec, nil
}

func (s *FlatStore) mutate(ctx context.Context, fn func([]models.StoredRecord) ([]models.StoredRecord, bool, error)) error {
	return s.mutateSeq(ctx, func(records []models.StoredRecord, _ func() int64) ([]models.StoredRecord, bool, error) {
		return fn(records)
	})
}

// mutateSeq runs one load-modify-save cycle inside a kv transaction.
// next hands out ids above both the stored sequence and every id in the
// array, so ids are never reused. Legacy-shaped entries are normalised
// before fn sees them. Nothing is written unless something changed.
func (s *FlatStore) mutateSeq(ctx context.Context, fn func([]models.StoredRecord, func() int64) ([]models.StoredRecord, bool, error)) error {
	return s.kv.Update(ctx, func(tx kv.Txn) error {
		raw, found, err := tx.Get(FlatRecordsKey)
		if err != nil {
			return err
		}
		records, ok := s.decode(raw, found)
		dirty := false
		if !ok {
			// Keep the unreadable bytes before they are overwritten.
			if err := tx.Set(FlatCorruptKey, raw); err != nil {
				return err
			}
			records = nil
			dirty = true
		}

		seq, err := loadSeq(tx)
		if err != nil {
			return err
		}
		for _, r := range records {
			if r.ID > seq {
				seq = r.ID
			}
		}
		startSeq := seq
		next := func() int64 {
			seq++
			return seq
		}

		for i := range records {
			if records[i].ID == 0 {
				records[i].ID = next()
				dirty = true
			}
			if records[i].CreatedAt == 0 {
				records[i].CreatedAt = s.legacyCreatedAt(records[i].Date)
				dirty = true
			}
			if records[i].Exercises == nil {
				records[i].Exercises = []string{}
			}
		}

		records, changed, err := fn(records, next)
		if err != nil {
			return err
		}
		if !changed && !dirty && seq == startSeq {
			return nil
		}

		if records == nil {
			records = []models.StoredRecord{}
		}
		data, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("encode flat records: %w", err)
		}
		if err := tx.Set(FlatRecordsKey, string(data)); err != nil {
			return err
		}
		return tx.Set(FlatSeqKey, strconv.FormatInt(seq, 10))
	})
}

// decode parses the stored array. ok is false only for present but
// unreadable data; a missing key is an empty, valid store.
func (s *FlatStore) decode(raw string, found bool) ([]models.StoredRecord, bool) {
	if !found || raw == "" {
		return []models.StoredRecord{}, true
	}
	var records []models.StoredRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn("flat workout records unreadable, treating as empty",
			"key", FlatRecordsKey, "bytes", len(raw), "error", err)
		return []models.StoredRecord{}, false
	}
	if records == nil {
		records = []models.StoredRecord{}
	}
	return records, true
}

func (s *FlatStore) legacyCreatedAt(date string) int64 {
	if ms, err := models.DateCreatedAt(date); err == nil {
		return ms
	}
	return s.now().UnixMilli()
}

func (s *FlatStore) logEvictions(plan RetentionPlan) {
	if plan.Empty() {
		return
	}
	s.logger.Info("retention evicted records",
		"backend", BackendFlat,
		"evicted", len(plan.Evict),
		"past", plan.Past,
		"over_limit", plan.OverLimit)
}

func loadSeq(tx kv.Txn) (int64, error) {
	raw, found, err := tx.Get(FlatSeqKey)
	if err != nil || !found {
		return 0, err
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// The array's max id still protects against reuse.
		return 0, nil
	}
	return seq, nil
}

// evict returns records without the given ids, preserving order.
func evict(records []models.StoredRecord, ids []int64) []models.StoredRecord {
	if len(ids) == 0 {
		return records
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := make([]models.StoredRecord, 0, len(records))
	for _, r := range records {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	return kept
}
