// ABOUTME: SQLite-backed workout history (the structured backend).
// ABOUTME: Uses modernc.org/sqlite (pure Go, no CGO required) with date/mode/created_at indices.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harperreed/afterwod/internal/models"
	_ "modernc.org/sqlite"
)

const recordColumns = `id, date, mode, duration, exercises, rounds, plan_id, created_at`

// SQLiteStore is the structured backend.
type SQLiteStore struct {
	core
	db     *sql.DB
	dbPath string
}

// Compile-time check that SQLiteStore implements Adapter.
var _ Adapter = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at dbPath.
func OpenSQLite(ctx context.Context, dbPath string, opts Options) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps per-connection pragmas in force and serialises writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{core: newCore(opts), db: db, dbPath: dbPath}

	if err := s.configurePragmas(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure pragmas: %w", err)
	}

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

// configurePragmas sets up SQLite for a single-user local database.
func (s *SQLiteStore) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Backend returns "sqlite".
func (s *SQLiteStore) Backend() string { return BackendSQLite }

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Initialize runs the legacy migration once.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	return s.initialize(ctx, s)
}

// Migrate transfers legacy records into the database.
func (s *SQLiteStore) Migrate(ctx context.Context) (*MigrationReport, error) {
	return s.migrate(ctx, s)
}

// GetAll returns every record, newest first.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]models.StoredRecord, error) {
	return s.query(ctx, "get all records", "")
}

// GetByDate returns records whose date equals date exactly.
func (s *SQLiteStore) GetByDate(ctx context.Context, date string) ([]models.StoredRecord, error) {
	return s.query(ctx, "get records by date", "WHERE date = ?", date)
}

// GetByMonth returns records dated within the given month, inclusive.
func (s *SQLiteStore) GetByMonth(ctx context.Context, year int, month time.Month) ([]models.StoredRecord, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d out of range", ErrInvalidRecord, month)
	}
	first, last := models.MonthBounds(year, month)
	return s.query(ctx, "get records by month", "WHERE date BETWEEN ? AND ?", first, last)
}

// GetByMode returns records with the given mode.
func (s *SQLiteStore) GetByMode(ctx context.Context, mode models.WorkoutMode) ([]models.StoredRecord, error) {
	return s.query(ctx, "get records by mode", "WHERE mode = ?", string(mode))
}

func (s *SQLiteStore) query(ctx context.Context, op, where string, args ...interface{}) ([]models.StoredRecord, error) {
	query := "SELECT " + recordColumns + " FROM workout_records"
	if where != "" {
		query += " " + where
	}
	query += " ORDER BY created_at DESC, id DESC"

	s.logger.Debug("sqlite query", "op", op, "args", args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTransactionFailure, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTransactionFailure, err)
	}
	return records, nil
}

// Add stores rec and enforces retention in the same transaction.
func (s *SQLiteStore) Add(ctx context.Context, rec models.WorkoutRecord) (models.StoredRecord, error) {
	if err := rec.Validate(); err != nil {
		return models.StoredRecord{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	stored := models.StoredRecord{WorkoutRecord: rec, CreatedAt: s.now().UnixMilli()}

	var plan RetentionPlan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := insertRecord(ctx, tx, stored)
		if err != nil {
			return err
		}
		stored.ID = id

		plan, err = s.enforceRetention(ctx, tx)
		return err
	})
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("add workout record: %w: %w", ErrTransactionFailure, err)
	}

	s.logEvictions(plan)
	if stored.Exercises == nil {
		stored.Exercises = []string{}
	}
	return stored, nil
}

// Delete removes the record with id. Missing ids are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM workout_records WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete workout record: %w: %w", ErrTransactionFailure, err)
	}
	return nil
}

// Cleanup applies the retention policy.
func (s *SQLiteStore) Cleanup(ctx context.Context) (RetentionPlan, error) {
	var plan RetentionPlan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		plan, err = s.enforceRetention(ctx, tx)
		return err
	})
	if err != nil {
		return RetentionPlan{}, fmt.Errorf("cleanup: %w: %w", ErrTransactionFailure, err)
	}
	s.logEvictions(plan)
	return plan, nil
}

// insert writes a record that already carries its CreatedAt.
func (s *SQLiteStore) insert(ctx context.Context, rec models.StoredRecord) (models.StoredRecord, error) {
	id, err := insertRecord(ctx, s.db, rec)
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("insert workout record: %w: %w", ErrTransactionFailure, err)
	}
	rec.ID = id
	return rec, nil
}

// enforceRetention reads the minimal columns, plans, and deletes within tx.
func (s *SQLiteStore) enforceRetention(ctx context.Context, tx *sql.Tx) (RetentionPlan, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, date, created_at FROM workout_records")
	if err != nil {
		return RetentionPlan{}, fmt.Errorf("read retention candidates: %w", err)
	}
	var records []models.StoredRecord
	for rows.Next() {
		var r models.StoredRecord
		if err := rows.Scan(&r.ID, &r.Date, &r.CreatedAt); err != nil {
			rows.Close()
			return RetentionPlan{}, fmt.Errorf("scan retention candidate: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return RetentionPlan{}, fmt.Errorf("read retention candidates: %w", err)
	}
	rows.Close()

	plan := s.retention.Plan(records, s.now())
	if plan.Empty() {
		return plan, nil
	}

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM workout_records WHERE id = ?")
	if err != nil {
		return RetentionPlan{}, fmt.Errorf("prepare eviction: %w", err)
	}
	defer stmt.Close()
	for _, id := range plan.Evict {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return RetentionPlan{}, fmt.Errorf("evict record %d: %w", id, err)
		}
	}
	return plan, nil
}

func (s *SQLiteStore) logEvictions(plan RetentionPlan) {
	if plan.Empty() {
		return
	}
	s.logger.Info("retention evicted records",
		"backend", BackendSQLite,
		"evicted", len(plan.Evict),
		"past", plan.Past,
		"over_limit", plan.OverLimit)
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertRecord(ctx context.Context, db execer, rec models.StoredRecord) (int64, error) {
	exercises := rec.Exercises
	if exercises == nil {
		exercises = []string{}
	}
	exercisesJSON, err := json.Marshal(exercises)
	if err != nil {
		return 0, fmt.Errorf("marshal exercises: %w", err)
	}

	var rounds sql.NullInt64
	if rec.Rounds != nil {
		rounds = sql.NullInt64{Int64: int64(*rec.Rounds), Valid: true}
	}
	var planID sql.NullString
	if rec.PlanID != nil {
		planID = sql.NullString{String: *rec.PlanID, Valid: true}
	}

	query := `
		INSERT INTO workout_records (date, mode, duration, exercises, rounds, plan_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.ExecContext(ctx, query,
		rec.Date,
		string(rec.Mode),
		rec.Duration,
		string(exercisesJSON),
		rounds,
		planID,
		rec.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	return result.LastInsertId()
}

// scanRecords scans rows selected with recordColumns.
func scanRecords(rows *sql.Rows) ([]models.StoredRecord, error) {
	records := []models.StoredRecord{}

	for rows.Next() {
		var r models.StoredRecord
		var mode, exercisesJSON string
		var rounds sql.NullInt64
		var planID sql.NullString

		err := rows.Scan(&r.ID, &r.Date, &mode, &r.Duration, &exercisesJSON, &rounds, &planID, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan workout record: %w", err)
		}

		r.Mode = models.WorkoutMode(mode)
		if err := json.Unmarshal([]byte(exercisesJSON), &r.Exercises); err != nil {
			return nil, fmt.Errorf("decode exercises for record %d: %w", r.ID, err)
		}
		if r.Exercises == nil {
			r.Exercises = []string{}
		}
		if rounds.Valid {
			n := int(rounds.Int64)
			r.Rounds = &n
		}
		if planID.Valid {
			r.PlanID = &planID.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}
