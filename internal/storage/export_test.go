// ABOUTME: Tests for JSON, YAML, and Markdown export plus JSON import.
// ABOUTME: Import goes into the other backend to check formats travel between them.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/harperreed/afterwod/internal/models"
	"gopkg.in/yaml.v3"
)

func seedExport(t *testing.T, a Adapter) []models.StoredRecord {
	t.Helper()
	return []models.StoredRecord{
		mustAdd(t, a, models.NewWorkoutRecord("2026-10-18", models.ModeGoal, 600, []string{"Pull-up"}).WithPlanID("goal-pullup")),
		mustAdd(t, a, models.NewWorkoutRecord("2026-10-19", models.ModePart, 1140, []string{"Air Squat", "Burpee"}).WithRounds(3)),
		mustAdd(t, a, models.NewWorkoutRecord("2026-11-02", models.ModeBalance, 900, nil)),
	}
}

func TestExportJSON(t *testing.T) {
	store := setupTestKV(t)
	s := setupTestSQLite(t, store, newTestClock())
	seedExport(t, s)

	data, err := ExportJSON(context.Background(), s)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	var decoded ExportData
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Tool != "afterwod" || decoded.Version != "1.0" {
		t.Errorf("unexpected header: %s %s", decoded.Tool, decoded.Version)
	}
	if decoded.Backend != BackendSQLite {
		t.Errorf("Backend = %s, want sqlite", decoded.Backend)
	}
	if len(decoded.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(decoded.Records))
	}
	if decoded.Records[0].Date != "2026-11-02" {
		t.Errorf("expected newest first, got %s", decoded.Records[0].Date)
	}
	if !strings.Contains(string(data), `"planId": "goal-pullup"`) {
		t.Errorf("expected planId in export:\n%s", data)
	}
}

func TestExportYAMLGroupsByMonth(t *testing.T) {
	store := setupTestKV(t)
	s := setupTestFlat(t, store, newTestClock())
	seedExport(t, s)

	data, err := ExportYAML(context.Background(), s)
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}

	var decoded struct {
		Tool   string                   `yaml:"tool"`
		Months map[string][]yamlWorkout `yaml:"months"`
	}
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(decoded.Months["2026-10"]) != 2 || len(decoded.Months["2026-11"]) != 1 {
		t.Errorf("unexpected grouping: %v", decoded.Months)
	}
	for _, w := range decoded.Months["2026-10"] {
		if w.Mode == "PART" && w.Rounds != 3 {
			t.Errorf("rounds = %d, want 3", w.Rounds)
		}
	}
}

func TestExportYAMLEmpty(t *testing.T) {
	s := setupTestFlat(t, setupTestKV(t), newTestClock())

	data, err := ExportYAML(context.Background(), s)
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}
	if !strings.Contains(string(data), "months: {}") {
		t.Errorf("expected empty months map:\n%s", data)
	}
}

func TestExportMarkdown(t *testing.T) {
	s := setupTestSQLite(t, setupTestKV(t), newTestClock())
	seedExport(t, s)
	ctx := context.Background()

	md, err := ExportMarkdown(ctx, s, nil, nil)
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}
	if !strings.Contains(md, "# Workout History") {
		t.Error("missing title")
	}
	nov := strings.Index(md, "## 2026-11")
	oct := strings.Index(md, "## 2026-10")
	if nov < 0 || oct < 0 || nov > oct {
		t.Errorf("expected November section before October:\n%s", md)
	}
	if !strings.Contains(md, "| 2026-10-19 | PART | 1140 | Air Squat, Burpee |") {
		t.Errorf("missing PART row:\n%s", md)
	}

	mode := models.ModeGoal
	md, err = ExportMarkdown(ctx, s, &mode, nil)
	if err != nil {
		t.Fatalf("ExportMarkdown with mode failed: %v", err)
	}
	if strings.Contains(md, "PART") || !strings.Contains(md, "GOAL") {
		t.Errorf("mode filter not applied:\n%s", md)
	}

	since := "2026-11-01"
	md, err = ExportMarkdown(ctx, s, nil, &since)
	if err != nil {
		t.Fatalf("ExportMarkdown with since failed: %v", err)
	}
	if strings.Contains(md, "## 2026-10") || strings.Contains(md, "| 2026-10-") {
		t.Errorf("since filter not applied:\n%s", md)
	}
	if !strings.Contains(md, "## 2026-11") {
		t.Errorf("since filter dropped November:\n%s", md)
	}
}

func TestImportJSONIntoOtherBackend(t *testing.T) {
	ctx := context.Background()
	store := setupTestKV(t)
	clock := newTestClock()
	src := setupTestSQLite(t, store, clock)
	dst := setupTestFlat(t, store, clock)
	seeded := seedExport(t, src)

	data, err := ExportJSON(ctx, src)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	summary, err := ImportJSON(ctx, dst, data)
	if err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}
	if summary.Copied != 3 {
		t.Errorf("Copied = %d, want 3", summary.Copied)
	}

	imported, _ := dst.GetAll(ctx)
	if len(imported) != 3 {
		t.Fatalf("expected 3 records, got %d", len(imported))
	}
	if imported[0].CreatedAt != seeded[2].CreatedAt {
		t.Errorf("CreatedAt not preserved: %d vs %d", imported[0].CreatedAt, seeded[2].CreatedAt)
	}

	again, err := ImportJSON(ctx, dst, data)
	if err != nil {
		t.Fatalf("second ImportJSON failed: %v", err)
	}
	if again.Copied != 0 || again.Skipped != 3 {
		t.Errorf("re-import should skip all, got %+v", again)
	}
}

func TestImportJSONInvalid(t *testing.T) {
	s := setupTestFlat(t, setupTestKV(t), newTestClock())

	if _, err := ImportJSON(context.Background(), s, []byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}

	bad := []byte(`{"records":[{"date":"2026-10-19","mode":"YOGA","duration":1,"exercises":[]}]}`)
	if _, err := ImportJSON(context.Background(), s, bad); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}
}
