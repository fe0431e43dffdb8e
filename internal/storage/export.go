// ABOUTME: Export and import functionality for workout history.
// ABOUTME: Supports JSON, YAML, and Markdown export formats over any Adapter.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/harperreed/afterwod/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportData represents the full export format for workout history.
type ExportData struct {
	Version    string                `json:"version" yaml:"version"`
	ExportedAt time.Time             `json:"exported_at" yaml:"exported_at"`
	Tool       string                `json:"tool" yaml:"tool"`
	Backend    string                `json:"backend" yaml:"backend"`
	Records    []models.StoredRecord `json:"records" yaml:"records"`
}

// GetAllData retrieves all records for export, newest first.
func GetAllData(ctx context.Context, a Adapter) (*ExportData, error) {
	records, err := a.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Tool:       "afterwod",
		Backend:    a.Backend(),
		Records:    records,
	}, nil
}

// ExportJSON exports all records as JSON.
func ExportJSON(ctx context.Context, a Adapter) ([]byte, error) {
	data, err := GetAllData(ctx, a)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports all records as YAML, grouped by month.
func ExportYAML(ctx context.Context, a Adapter) ([]byte, error) {
	data, err := GetAllData(ctx, a)
	if err != nil {
		return nil, err
	}

	yamlData := struct {
		Version    string                   `yaml:"version"`
		ExportedAt string                   `yaml:"exported_at"`
		Tool       string                   `yaml:"tool"`
		Backend    string                   `yaml:"backend"`
		Months     map[string][]yamlWorkout `yaml:"months"`
	}{
		Version:    data.Version,
		ExportedAt: data.ExportedAt.Format(time.RFC3339),
		Tool:       data.Tool,
		Backend:    data.Backend,
		Months:     make(map[string][]yamlWorkout),
	}

	for _, r := range data.Records {
		yw := yamlWorkout{
			ID:        r.ID,
			Date:      r.Date,
			Mode:      string(r.Mode),
			Duration:  r.Duration,
			Exercises: r.Exercises,
			CreatedAt: time.UnixMilli(r.CreatedAt).UTC().Format(time.RFC3339),
		}
		if r.Rounds != nil {
			yw.Rounds = *r.Rounds
		}
		if r.PlanID != nil {
			yw.PlanID = *r.PlanID
		}
		key := monthKey(r.Date)
		yamlData.Months[key] = append(yamlData.Months[key], yw)
	}

	return yaml.Marshal(yamlData)
}

type yamlWorkout struct {
	ID        int64    `yaml:"id"`
	Date      string   `yaml:"date"`
	Mode      string   `yaml:"mode"`
	Duration  int      `yaml:"duration"`
	Exercises []string `yaml:"exercises,flow"`
	Rounds    int      `yaml:"rounds,omitempty"`
	PlanID    string   `yaml:"plan_id,omitempty"`
	CreatedAt string   `yaml:"created_at"`
}

// ExportMarkdown exports records as Markdown tables, one per month,
// optionally filtered by mode and a minimum date (inclusive).
func ExportMarkdown(ctx context.Context, a Adapter, mode *models.WorkoutMode, since *string) (string, error) {
	var records []models.StoredRecord
	var err error
	if mode != nil {
		records, err = a.GetByMode(ctx, *mode)
	} else {
		records, err = a.GetAll(ctx)
	}
	if err != nil {
		return "", err
	}

	grouped := make(map[string][]models.StoredRecord)
	for _, r := range records {
		if since != nil && r.Date < *since {
			continue
		}
		key := monthKey(r.Date)
		grouped[key] = append(grouped[key], r)
	}

	months := make([]string, 0, len(grouped))
	for m := range grouped {
		months = append(months, m)
	}
	// Newest month first, matching record order.
	slices.Sort(months)
	slices.Reverse(months)

	var sb strings.Builder
	now := time.Now()
	sb.WriteString(fmt.Sprintf("# Workout History - %s\n\n", now.Format(models.DateLayout)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	for _, m := range months {
		sb.WriteString(fmt.Sprintf("## %s\n\n", m))
		sb.WriteString("| Date | Mode | Duration | Exercises |\n")
		sb.WriteString("|------|------|----------|-----------|\n")
		for _, r := range grouped[m] {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n",
				r.Date, r.Mode, r.Duration, strings.Join(r.Exercises, ", ")))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// ImportData inserts exported records that dst does not already hold.
// CreatedAt is preserved and retention is not applied.
func ImportData(ctx context.Context, dst Adapter, data *ExportData) (*CopySummary, error) {
	target, ok := dst.(recordInserter)
	if !ok {
		return nil, fmt.Errorf("import: %s backend cannot accept imports", dst.Backend())
	}

	records := slices.Clone(data.Records)
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("import record %d: %w: %w", i, ErrInvalidRecord, err)
		}
		if r.CreatedAt == 0 {
			ms, _ := models.DateCreatedAt(r.Date)
			records[i].CreatedAt = ms
		}
	}
	sortRecords(records)
	return insertMissing(ctx, target, records)
}

// ImportJSON imports records from JSON bytes produced by ExportJSON.
func ImportJSON(ctx context.Context, dst Adapter, data []byte) (*CopySummary, error) {
	var exportData ExportData
	if err := json.Unmarshal(data, &exportData); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return ImportData(ctx, dst, &exportData)
}

// monthKey returns YYYY-MM for a canonical date, or "unknown".
func monthKey(date string) string {
	if _, err := models.ParseDate(date); err != nil {
		return "unknown"
	}
	return date[:7]
}
