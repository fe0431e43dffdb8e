// ABOUTME: WorkoutRecord and StoredRecord models for workout-completion history.
// ABOUTME: Defines workout modes, date helpers, validation, and builder helpers.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by the date field.
const DateLayout = "2006-01-02"

// WorkoutMode identifies how a workout plan was generated.
type WorkoutMode string

const (
	ModeBalance WorkoutMode = "BALANCE" // fill the gaps in recent training
	ModeGoal    WorkoutMode = "GOAL"    // work toward one goal movement
	ModePart    WorkoutMode = "PART"    // target specific muscle groups

	// ModeWOD is the pre-BALANCE name still found in legacy history.
	ModeWOD WorkoutMode = "WOD"
)

// AllModes lists every mode accepted on write.
var AllModes = []WorkoutMode{ModeBalance, ModeGoal, ModePart, ModeWOD}

// IsValidMode checks if a string is a known workout mode.
func IsValidMode(s string) bool {
	for _, m := range AllModes {
		if string(m) == s {
			return true
		}
	}
	return false
}

// WorkoutRecord is one logged workout completion as the rest of the app sees it.
type WorkoutRecord struct {
	Date      string      `json:"date" yaml:"date"`
	Mode      WorkoutMode `json:"mode" yaml:"mode"`
	Duration  int         `json:"duration" yaml:"duration"`
	Exercises []string    `json:"exercises" yaml:"exercises"`
	Rounds    *int        `json:"rounds,omitempty" yaml:"rounds,omitempty"`
	PlanID    *string     `json:"planId,omitempty" yaml:"plan_id,omitempty"`
}

// StoredRecord is a WorkoutRecord after a backend has persisted it.
// ID is zero only for records that have not been written yet.
// CreatedAt is epoch milliseconds and is the sole ordering key.
type StoredRecord struct {
	ID            int64 `json:"id,omitempty" yaml:"id"`
	WorkoutRecord `yaml:",inline"`
	CreatedAt     int64 `json:"createdAt,omitempty" yaml:"created_at"`
}

// NewWorkoutRecord creates a record with the required fields set.
func NewWorkoutRecord(date string, mode WorkoutMode, duration int, exercises []string) *WorkoutRecord {
	if exercises == nil {
		exercises = []string{}
	}
	return &WorkoutRecord{
		Date:      date,
		Mode:      mode,
		Duration:  duration,
		Exercises: exercises,
	}
}

// WithRounds sets the number of completed rounds.
func (r *WorkoutRecord) WithRounds(rounds int) *WorkoutRecord {
	r.Rounds = &rounds
	return r
}

// WithPlanID sets the identifier of the plan the workout came from.
func (r *WorkoutRecord) WithPlanID(planID string) *WorkoutRecord {
	r.PlanID = &planID
	return r
}

// ErrInvalid is wrapped by every validation error returned from Validate.
var ErrInvalid = errors.New("invalid workout record")

// Validate checks the fields the storage layer depends on.
// Exercise names are opaque and not inspected.
func (r WorkoutRecord) Validate() error {
	if _, err := ParseDate(r.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !IsValidMode(string(r.Mode)) {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, r.Mode)
	}
	if r.Duration < 0 {
		return fmt.Errorf("%w: negative duration %d", ErrInvalid, r.Duration)
	}
	if r.Rounds != nil && *r.Rounds < 0 {
		return fmt.Errorf("%w: negative rounds %d", ErrInvalid, *r.Rounds)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", s)
	}
	return t, nil
}

// MonthOf returns the calendar month a date string belongs to.
func MonthOf(date string) (int, time.Month, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

// MonthBounds returns the first and last date of a month as YYYY-MM-DD strings.
// Canonical dates compare lexicographically, so the pair is a valid range.
func MonthBounds(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateLayout), last.Format(DateLayout)
}

// FormatDate formats t in its own location as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateCreatedAt derives a creation timestamp for records that never had one.
// It is the UTC midnight of the record's date in epoch milliseconds.
func DateCreatedAt(date string) (int64, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// MonthLayout is the calendar month format accepted by month filters.
const MonthLayout = "2006-01"

// ParseMonth parses a YYYY-MM month.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month %q is not YYYY-MM", ErrInvalid, s)
	}
	return t.Year(), t.Month(), nil
}
