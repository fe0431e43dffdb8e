// ABOUTME: One-time migration of legacy workout history into the active backend.
// ABOUTME: Also copies records between backends for the CLI's migrate copy.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/afterwod/internal/kv"
	"github.com/harperreed/afterwod/internal/models"
)

// Keys read by the migration.
const (
	MigrationFlagKey = "cf_migration_completed"
	LegacyRecordsKey = "cf_workout_history"
)

// MigrationState is inferred from the flag and the legacy key.
type MigrationState int

const (
	// MigrationNotStarted: no flag, legacy data present.
	MigrationNotStarted MigrationState = iota
	// MigrationUnflagged: no flag and no (or empty) legacy data. Either there was
	// nothing to migrate or a previous run stopped after deleting the
	// legacy key; only the flag is missing.
	MigrationUnflagged
	// MigrationCompleted: flag set.
	MigrationCompleted
)

func (s MigrationState) String() string {
	switch s {
	case MigrationNotStarted:
		return "not-started"
	case MigrationUnflagged:
		return "unflagged"
	case MigrationCompleted:
		return "completed"
	default:
		return fmt.Sprintf("MigrationState(%d)", int(s))
	}
}

// MarshalText lets the state print as its name in JSON and YAML.
func (s MigrationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MigrationReport describes one migration run. Failed > 0 means some
// legacy records were dropped.
type MigrationReport struct {
	RunID    uuid.UUID      `json:"run_id"`
	State    MigrationState `json:"state"`
	Total    int            `json:"total"`
	Migrated int            `json:"migrated"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
}

// DetectMigrationState reads the flag and legacy key.
func DetectMigrationState(ctx context.Context, store kv.Store) (MigrationState, error) {
	flag, _, err := store.Get(ctx, MigrationFlagKey)
	if err != nil {
		return 0, fmt.Errorf("read migration flag: %w", err)
	}
	if flag == "true" {
		return MigrationCompleted, nil
	}
	legacy, found, err := store.Get(ctx, LegacyRecordsKey)
	if err != nil {
		return 0, fmt.Errorf("read legacy records: %w", err)
	}
	// An empty legacy value holds nothing to migrate.
	if found && strings.TrimSpace(legacy) != "" {
		return MigrationNotStarted, nil
	}
	return MigrationUnflagged, nil
}

// ResetMigrationFlag clears the completion flag so the next Initialize
// migrates again. Records already migrated are not duplicated.
func ResetMigrationFlag(ctx context.Context, store kv.Store) error {
	if err := store.Delete(ctx, MigrationFlagKey); err != nil {
		return fmt.Errorf("reset migration flag: %w", err)
	}
	return nil
}

// legacyRecord is the pre-adapter record shape. Duration may have been
// written as a float by older builds.
type legacyRecord struct {
	Date      string   `json:"date"`
	Mode      string   `json:"mode"`
	Duration  float64  `json:"duration"`
	Exercises []string `json:"exercises"`
	Rounds    *float64 `json:"rounds"`
	PlanID    *string  `json:"planId"`
}

func (c core) migrate(ctx context.Context, target recordInserter) (*MigrationReport, error) {
	if c.kv == nil {
		return nil, fmt.Errorf("migrate: %w: no kv store", ErrStorageUnavailable)
	}
	report := &MigrationReport{RunID: uuid.New()}
	logger := c.logger.With("run_id", report.RunID.String())

	state, err := DetectMigrationState(ctx, c.kv)
	if err != nil {
		return nil, err
	}
	report.State = state

	switch state {
	case MigrationCompleted:
		return report, nil
	case MigrationUnflagged:
		err := c.kv.Update(ctx, func(tx kv.Txn) error {
			if err := tx.Delete(LegacyRecordsKey); err != nil {
				return err
			}
			return tx.Set(MigrationFlagKey, "true")
		})
		if err != nil {
			return nil, fmt.Errorf("set migration flag: %w", err)
		}
		report.State = MigrationCompleted
		logger.Debug("no legacy workout history, migration flagged complete")
		return report, nil
	}

	raw, _, err := c.kv.Get(ctx, LegacyRecordsKey)
	if err != nil {
		return nil, fmt.Errorf("read legacy records: %w", err)
	}
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, fmt.Errorf("decode legacy records: %w", err)
	}
	report.Total = len(elements)

	existing, err := target.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read existing records: %w", err)
	}
	seen := fingerprintCounts(existing)

	for i, element := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := c.fromLegacy(element)
		if err != nil {
			report.Failed++
			logger.Warn("legacy record unreadable", "index", i, "error", err)
			continue
		}

		fp := fingerprint(rec)
		if seen[fp] > 0 {
			seen[fp]--
			report.Skipped++
			continue
		}

		if _, err := target.insert(ctx, rec); err != nil {
			report.Failed++
			logger.Warn("legacy record not migrated", "index", i, "date", rec.Date, "error", err)
			continue
		}
		report.Migrated++
	}

	err = c.kv.Update(ctx, func(tx kv.Txn) error {
		if err := tx.Delete(LegacyRecordsKey); err != nil {
			return err
		}
		return tx.Set(MigrationFlagKey, "true")
	})
	if err != nil {
		return nil, fmt.Errorf("finish migration: %w", err)
	}
	report.State = MigrationCompleted

	if report.Failed > 0 {
		logger.Warn("legacy migration completed with failures",
			"total", report.Total, "migrated", report.Migrated,
			"skipped", report.Skipped, "failed", report.Failed)
	} else {
		logger.Info("legacy migration completed",
			"total", report.Total, "migrated", report.Migrated, "skipped", report.Skipped)
	}
	return report, nil
}

// fromLegacy converts one legacy element. CreatedAt is the UTC midnight of
// its date, or now when the date cannot be parsed.
func (c core) fromLegacy(element json.RawMessage) (models.StoredRecord, error) {
	var lr *legacyRecord
	if err := json.Unmarshal(element, &lr); err != nil {
		return models.StoredRecord{}, err
	}
	if lr == nil {
		return models.StoredRecord{}, fmt.Errorf("null entry")
	}

	rec := models.StoredRecord{
		WorkoutRecord: *models.NewWorkoutRecord(lr.Date, models.WorkoutMode(lr.Mode), int(math.Round(lr.Duration)), lr.Exercises),
	}
	if lr.Rounds != nil {
		rec.WithRounds(int(math.Round(*lr.Rounds)))
	}
	if lr.PlanID != nil {
		rec.WithPlanID(*lr.PlanID)
	}

	createdAt, err := models.DateCreatedAt(lr.Date)
	if err != nil {
		createdAt = c.now().UnixMilli()
	}
	rec.CreatedAt = createdAt
	return rec, nil
}

// fingerprint identifies a record by content, ignoring its id.
func fingerprint(r models.StoredRecord) string {
	return fmt.Sprintf("%s|%s|%d|%s|%d", r.Date, r.Mode, r.Duration, strings.Join(r.Exercises, "\x1f"), r.CreatedAt)
}

func fingerprintCounts(records []models.StoredRecord) map[string]int {
	counts := make(map[string]int, len(records))
	for _, r := range records {
		counts[fingerprint(r)]++
	}
	return counts
}

// CopySummary holds counts from CopyRecords.
type CopySummary struct {
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
}

// CopyRecords copies every record from src into dst, oldest first, keeping
// CreatedAt. Records already present in dst are skipped, so a repeated copy
// does not duplicate history. Retention is not applied.
func CopyRecords(ctx context.Context, src, dst Adapter) (*CopySummary, error) {
	target, ok := dst.(recordInserter)
	if !ok {
		return nil, fmt.Errorf("copy records: %s backend cannot accept copies", dst.Backend())
	}

	records, err := src.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source records: %w", err)
	}
	return insertMissing(ctx, target, records)
}

// insertMissing writes records not already in target, oldest first.
func insertMissing(ctx context.Context, target recordInserter, records []models.StoredRecord) (*CopySummary, error) {
	existing, err := target.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list destination records: %w", err)
	}
	seen := fingerprintCounts(existing)

	summary := &CopySummary{}
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		fp := fingerprint(r)
		if seen[fp] > 0 {
			seen[fp]--
			summary.Skipped++
			continue
		}
		if _, err := target.insert(ctx, r); err != nil {
			return nil, fmt.Errorf("copy record %d: %w", r.ID, err)
		}
		summary.Copied++
	}
	return summary, nil
}
