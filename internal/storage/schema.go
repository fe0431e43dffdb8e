// ABOUTME: SQLite schema definition and versioning for workout records.
// ABOUTME: Creation is idempotent and runs on every open.
package storage

import (
	"context"
	"fmt"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

// initSchema creates the workout_records table and its indices.
// AUTOINCREMENT keeps ids from being reused after deletion.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("%w: found version %d, support up to %d", ErrSchemaTooNew, current, schemaVersion)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS workout_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		mode TEXT NOT NULL,
		duration INTEGER NOT NULL DEFAULT 0,
		exercises TEXT NOT NULL DEFAULT '[]',
		rounds INTEGER,
		plan_id TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_workout_records_date ON workout_records(date);
	CREATE INDEX IF NOT EXISTS idx_workout_records_mode ON workout_records(mode);
	CREATE INDEX IF NOT EXISTS idx_workout_records_created_at ON workout_records(created_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if current < schemaVersion {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}
