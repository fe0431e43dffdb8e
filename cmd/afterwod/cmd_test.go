// ABOUTME: Tests for CLI helper functions and command execution.
// ABOUTME: Drives run() against temp data directories with both backends.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/afterwod/internal/kv"
	"github.com/harperreed/afterwod/internal/mcp"
	"github.com/harperreed/afterwod/internal/models"
	"github.com/harperreed/afterwod/internal/storage"
)

func init() {
	color.NoColor = true
}

// cli runs the command line against one data directory.
type cli struct {
	t       *testing.T
	dataDir string
	flags   []string
}

func newCLI(t *testing.T, flags ...string) *cli {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dataDir := t.TempDir()
	base := []string{"--data-dir", dataDir, "--kv-engine", "bolt", "--log-level", "error"}
	return &cli{t: t, dataDir: dataDir, flags: append(base, flags...)}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append(args, c.flags...), &stdout, &stderr)
	return stdout.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("afterwod %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func today() string {
	return models.FormatDate(time.Now())
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"600", 600, false},
		{"0", 0, false},
		{"19m", 1140, false},
		{"1h2m3s", 3723, false},
		{"90s", 90, false},
		{"-5", 0, true},
		{"-1m", 0, true},
		{"ten", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseDuration(%q) expected error, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDuration(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{1140, "19:00"},
		{3723, "1:02:03"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.in); got != tt.want {
			t.Errorf("formatSeconds(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string no truncation", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "Pull-up, Dip, Air Squat", 10, "Pull-up..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("GOAL", 8); got != "GOAL    " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("BALANCE!", 4); got != "BALANCE!" {
		t.Errorf("padRight should not cut, got %q", got)
	}
}

func TestAddAndList(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("add", "GOAL", "10m", "Pull-up", "Dip")
	if !strings.Contains(out, "Added GOAL workout") || !strings.Contains(out, "10:00") {
		t.Errorf("unexpected add output: %s", out)
	}
	c.mustRun("add", "part", "1140", "--rounds", "3", "Air Squat")

	out = c.mustRun("list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "PART") || !strings.Contains(lines[0], "x3") {
		t.Errorf("expected newest PART first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "Pull-up, Dip") {
		t.Errorf("expected exercises in order, got %q", lines[1])
	}

	out = c.mustRun("list", "--mode", "goal")
	if strings.Contains(out, "PART") || !strings.Contains(out, "GOAL") {
		t.Errorf("mode filter not applied:\n%s", out)
	}

	month := time.Now().Format(models.MonthLayout)
	out = c.mustRun("list", "--month", month, "--mode", "PART")
	if strings.Contains(out, "GOAL") || !strings.Contains(out, "PART") {
		t.Errorf("month+mode filter not applied:\n%s", out)
	}

	out = c.mustRun("list", "--date", "1999-01-01")
	if !strings.Contains(out, "No workouts found.") {
		t.Errorf("expected empty result, got:\n%s", out)
	}

	out = c.mustRun("list", "-n", "1")
	if n := len(strings.Split(strings.TrimSpace(out), "\n")); n != 1 {
		t.Errorf("limit not applied, got %d lines", n)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	c := newCLI(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"add", "YOGA", "600"}},
		{"bad duration", []string{"add", "GOAL", "ten"}},
		{"bad date", []string{"add", "GOAL", "600", "--date", "19/10/2026"}},
		{"missing duration", []string{"add", "GOAL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.run(tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestListRejectsBadFilters(t *testing.T) {
	c := newCLI(t)

	if _, err := c.run("list", "--month", "2026-13"); err == nil {
		t.Error("expected error for bad month")
	}
	if _, err := c.run("list", "--mode", "yoga"); err == nil {
		t.Error("expected error for bad mode")
	}
	if _, err := c.run("list", "--date", today(), "--month", "2026-10"); err == nil {
		t.Error("expected error for --date with --month")
	}
}

func TestDeleteAndCleanup(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "GOAL", "600")

	out := c.mustRun("delete", "1")
	if !strings.Contains(out, "Deleted GOAL workout") {
		t.Errorf("unexpected delete output: %s", out)
	}
	out = c.mustRun("delete", "1")
	if !strings.Contains(out, "No workout with ID 1") {
		t.Errorf("expected missing message, got: %s", out)
	}
	if _, err := c.run("delete", "abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}

	out = c.mustRun("cleanup")
	if !strings.Contains(out, "Nothing to clean up.") {
		t.Errorf("unexpected cleanup output: %s", out)
	}
}

func TestBackendCommand(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("backend")
	if !strings.Contains(out, "Backend:   sqlite (auto)") {
		t.Errorf("expected auto sqlite, got:\n%s", out)
	}
	if !strings.Contains(out, filepath.Join(c.dataDir, storage.DBFileName)) {
		t.Errorf("expected database path, got:\n%s", out)
	}

	out = c.mustRun("backend", "--backend", "flat")
	if !strings.Contains(out, "Backend:   flat") || strings.Contains(out, "Database:") {
		t.Errorf("expected flat backend, got:\n%s", out)
	}
}

func TestUnknownBackendFails(t *testing.T) {
	c := newCLI(t, "--backend", "indexeddb")
	if _, err := c.run("list"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestExportImportAcrossBackends(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "GOAL", "600", "Pull-up", "--plan-id", "goal-pullup")
	c.mustRun("add", "BALANCE", "900")

	backup := filepath.Join(t.TempDir(), "backup.json")
	out := c.mustRun("export", "json", "-o", backup)
	if !strings.Contains(out, "Exported to") {
		t.Errorf("unexpected export output: %s", out)
	}

	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var decoded storage.ExportData
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON backup: %v", err)
	}
	if len(decoded.Records) != 2 {
		t.Fatalf("expected 2 records in backup, got %d", len(decoded.Records))
	}

	out = c.mustRun("import", backup, "--backend", "flat")
	if !strings.Contains(out, "Imported 2 workouts") {
		t.Errorf("unexpected import output: %s", out)
	}
	out = c.mustRun("import", backup, "--backend", "flat")
	if !strings.Contains(out, "Imported 0 workouts") || !strings.Contains(out, "2 already present") {
		t.Errorf("re-import should skip, got: %s", out)
	}

	out = c.mustRun("export", "yaml")
	if !strings.Contains(out, "months:") {
		t.Errorf("expected YAML months, got:\n%s", out)
	}
	out = c.mustRun("export", "markdown", "--mode", "goal")
	if !strings.Contains(out, "# Workout History") || strings.Contains(out, "BALANCE") {
		t.Errorf("unexpected markdown:\n%s", out)
	}
	if _, err := c.run("export", "csv"); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := c.run("export", "markdown", "--since", "yesterday"); err == nil {
		t.Error("expected error for bad --since")
	}
}

func seedLegacy(t *testing.T, dataDir, legacy string) {
	t.Helper()
	store, err := kv.Open(kv.EngineBolt, dataDir, nil)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	defer store.Close()
	if err := store.Set(context.Background(), storage.LegacyRecordsKey, legacy); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
}

func TestMigrateCommands(t *testing.T) {
	c := newCLI(t)
	seedLegacy(t, c.dataDir, `[{"date":"`+today()+`","mode":"GOAL","duration":600,"exercises":["Pull-up"]}]`)

	out := c.mustRun("migrate", "status")
	if !strings.Contains(out, "Migration: not-started") || !strings.Contains(out, "Records:   0") {
		t.Errorf("expected not-started before any other command, got:\n%s", out)
	}

	out = c.mustRun("migrate", "run")
	if !strings.Contains(out, "Migration completed") || !strings.Contains(out, "migrated 1") {
		t.Errorf("unexpected migrate run output:\n%s", out)
	}

	out = c.mustRun("migrate", "status")
	if !strings.Contains(out, "Migration: completed") || !strings.Contains(out, "Records:   1") {
		t.Errorf("expected completed, got:\n%s", out)
	}

	out = c.mustRun("migrate", "reset")
	if !strings.Contains(out, "Migration flag cleared") {
		t.Errorf("unexpected reset output: %s", out)
	}
	out = c.mustRun("migrate", "status")
	if !strings.Contains(out, "Migration: unflagged") {
		t.Errorf("expected unflagged after reset, got:\n%s", out)
	}

	// Any ordinary command runs Initialize, which sets the flag again
	// without duplicating records.
	out = c.mustRun("list")
	if n := len(strings.Split(strings.TrimSpace(out), "\n")); n != 1 {
		t.Errorf("expected 1 record after re-initialize, got %d:\n%s", n, out)
	}
	out = c.mustRun("migrate", "status")
	if !strings.Contains(out, "Migration: completed") {
		t.Errorf("expected completed after list, got:\n%s", out)
	}
}

func TestInitializeMigratesLegacyOnStart(t *testing.T) {
	c := newCLI(t, "--backend", "flat")
	seedLegacy(t, c.dataDir, `[{"date":"`+today()+`","mode":"PART","duration":700.6,"exercises":["Burpee"],"rounds":2.4}]`)

	out := c.mustRun("list")
	if !strings.Contains(out, "PART") || !strings.Contains(out, "11:41") || !strings.Contains(out, "x2") {
		t.Errorf("expected migrated legacy record, got:\n%s", out)
	}
}

func TestMigrateCopy(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "GOAL", "600", "--backend", "flat")
	c.mustRun("add", "PART", "700", "--backend", "flat")

	out := c.mustRun("migrate", "copy", "--from", "flat")
	if !strings.Contains(out, "Copied 2 workouts from flat to sqlite") {
		t.Errorf("unexpected copy output: %s", out)
	}
	out = c.mustRun("migrate", "copy", "--from", "flat")
	if !strings.Contains(out, "Copied 0 workouts") {
		t.Errorf("second copy should skip all, got: %s", out)
	}

	out = c.mustRun("list")
	if n := len(strings.Split(strings.TrimSpace(out), "\n")); n != 2 {
		t.Errorf("expected 2 records in sqlite, got %d:\n%s", n, out)
	}

	for _, from := range []string{"sqlite", "auto", "csv"} {
		if _, err := c.run("migrate", "copy", "--from", from); err == nil {
			t.Errorf("expected error copying from %s into sqlite", from)
		}
	}
}

func TestBadgerEngine(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dataDir := t.TempDir()
	args := []string{"--data-dir", dataDir, "--log-level", "error", "--backend", "flat"}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), append([]string{"add", "GOAL", "600"}, args...), &stdout, &stderr); err != nil {
		t.Fatalf("add with badger failed: %v\n%s", err, stderr.String())
	}
	stdout.Reset()
	if err := run(context.Background(), append([]string{"list"}, args...), &stdout, &stderr); err != nil {
		t.Fatalf("list with badger failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "GOAL") {
		t.Errorf("expected record persisted in badger, got:\n%s", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(dataDir, "kv")); err != nil {
		t.Errorf("expected badger directory: %v", err)
	}
}

func TestCompletePlan(t *testing.T) {
	c := newCLI(t)
	plan := filepath.Join(t.TempDir(), "plan.json")
	body := `{"mode":"part","duration":1200,"rounds":3,"exercises":[{"name":"Air Squat"},{"name":"Burpee"},{"name":"Push-up"}]}`
	if err := os.WriteFile(plan, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	out := c.mustRun("complete", plan, "19m30s")
	if !strings.Contains(out, "Completed PART plan") || !strings.Contains(out, "19:30 3 exercises") {
		t.Errorf("unexpected complete output: %s", out)
	}

	out = c.mustRun("list")
	if !strings.Contains(out, "x3") || !strings.Contains(out, "Air Squat, Burpee, Push-up") {
		t.Errorf("plan fields not stored:\n%s", out)
	}

	if err := os.WriteFile(plan, []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := c.run("complete", plan, "600"); err == nil {
		t.Error("expected error for invalid plan file")
	}
}

func TestMCPCommandBuildsServer(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var served *mcp.Server
	a := &app{serveMCP: func(ctx context.Context, server *mcp.Server) error {
		served = server
		return nil
	}}
	defer func() { _ = a.close() }()

	root := newRootCmd(a)
	root.SetArgs([]string{"mcp", "--data-dir", t.TempDir(), "--kv-engine", "bolt", "--log-level", "error"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("afterwod mcp: %v", err)
	}
	if served == nil {
		t.Fatal("expected mcp command to build a server")
	}
}
