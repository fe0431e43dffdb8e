// ABOUTME: MCP tool implementations for workout history.
// ABOUTME: Provides add, list, delete, cleanup, and migration status tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/afterwod/internal/models"
	"github.com/harperreed/afterwod/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultListLimit = 20

func (s *Server) registerTools() {
	// add_workout_record
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_workout_record",
		Description: "Log a completed workout (date, mode, duration in seconds, exercises)",
	}, s.handleAddRecord)

	// list_workout_records
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_workout_records",
		Description: "List workout history newest first, optionally filtered by date, month, or mode",
	}, s.handleListRecords)

	// delete_workout_record
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_workout_record",
		Description: "Delete a workout record by ID",
	}, s.handleDeleteRecord)

	// cleanup_workout_records
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "cleanup_workout_records",
		Description: "Apply the monthly retention policy now",
	}, s.handleCleanup)

	// migration_status
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "migration_status",
		Description: "Report the active backend and the legacy migration state",
	}, s.handleMigrationStatus)
}

// Tool input/output types

type addRecordInput struct {
	Date      string   `json:"date,omitempty" jsonschema:"Workout date (YYYY-MM-DD), defaults to today"`
	Mode      string   `json:"mode" jsonschema:"Workout mode (BALANCE, GOAL, PART, WOD)"`
	Duration  int      `json:"duration" jsonschema:"Elapsed time in seconds"`
	Exercises []string `json:"exercises,omitempty" jsonschema:"Exercise names in execution order"`
	Rounds    int      `json:"rounds,omitempty" jsonschema:"Completed rounds"`
	PlanID    string   `json:"plan_id,omitempty" jsonschema:"Identifier of the plan the workout came from"`
}

type recordOutput struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Mode      string `json:"mode"`
	CreatedAt int64  `json:"created_at"`
	Message   string `json:"message"`
}

type listRecordsInput struct {
	Date  string `json:"date,omitempty" jsonschema:"Only records on this date (YYYY-MM-DD)"`
	Month string `json:"month,omitempty" jsonschema:"Only records in this month (YYYY-MM)"`
	Mode  string `json:"mode,omitempty" jsonschema:"Only records with this mode"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type listRecordsOutput struct {
	Backend string                `json:"backend"`
	Count   int                   `json:"count"`
	Records []models.StoredRecord `json:"records"`
}

type deleteRecordInput struct {
	ID int64 `json:"id" jsonschema:"Record ID"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type cleanupInput struct{}

type cleanupOutput struct {
	Evicted []int64 `json:"evicted"`
	Current int     `json:"current"`
	Past    int     `json:"past"`
	Future  int     `json:"future"`
	Message string  `json:"message"`
}

type migrationStatusInput struct{}

type migrationStatusOutput struct {
	Backend string `json:"backend"`
	State   string `json:"state"`
	Records int    `json:"records"`
}

// Tool handlers

func (s *Server) handleAddRecord(ctx context.Context, req *mcp.CallToolRequest, input addRecordInput) (*mcp.CallToolResult, recordOutput, error) {
	date := input.Date
	if date == "" {
		date = models.FormatDate(time.Now())
	}

	rec := models.NewWorkoutRecord(date, models.WorkoutMode(strings.ToUpper(input.Mode)), input.Duration, input.Exercises)
	if input.Rounds > 0 {
		rec.WithRounds(input.Rounds)
	}
	if input.PlanID != "" {
		rec.WithPlanID(input.PlanID)
	}

	stored, err := s.history.Add(ctx, *rec)
	if err != nil {
		return nil, recordOutput{}, fmt.Errorf("failed to add workout record: %w", err)
	}

	return nil, recordOutput{
		ID:        stored.ID,
		Date:      stored.Date,
		Mode:      string(stored.Mode),
		CreatedAt: stored.CreatedAt,
		Message:   fmt.Sprintf("Logged %s workout on %s (ID: %d)", stored.Mode, stored.Date, stored.ID),
	}, nil
}

func (s *Server) handleListRecords(ctx context.Context, req *mcp.CallToolRequest, input listRecordsInput) (*mcp.CallToolResult, listRecordsOutput, error) {
	if input.Limit <= 0 {
		input.Limit = defaultListLimit
	}

	records, err := s.query(ctx, input)
	if err != nil {
		return nil, listRecordsOutput{}, fmt.Errorf("failed to list workout records: %w", err)
	}
	if input.Mode != "" && (input.Date != "" || input.Month != "") {
		records = filterMode(records, models.WorkoutMode(strings.ToUpper(input.Mode)))
	}
	if len(records) > input.Limit {
		records = records[:input.Limit]
	}
	if records == nil {
		records = []models.StoredRecord{}
	}

	return nil, listRecordsOutput{
		Backend: s.history.Backend(),
		Count:   len(records),
		Records: records,
	}, nil
}

// query picks the narrowest adapter lookup for the filters given.
func (s *Server) query(ctx context.Context, input listRecordsInput) ([]models.StoredRecord, error) {
	switch {
	case input.Date != "":
		return s.history.GetByDate(ctx, input.Date)
	case input.Month != "":
		year, month, err := models.ParseMonth(input.Month)
		if err != nil {
			return nil, err
		}
		return s.history.GetByMonth(ctx, year, month)
	case input.Mode != "":
		return s.history.GetByMode(ctx, models.WorkoutMode(strings.ToUpper(input.Mode)))
	default:
		return s.history.GetAll(ctx)
	}
}

func filterMode(records []models.StoredRecord, mode models.WorkoutMode) []models.StoredRecord {
	var out []models.StoredRecord
	for _, r := range records {
		if r.Mode == mode {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) handleDeleteRecord(ctx context.Context, req *mcp.CallToolRequest, input deleteRecordInput) (*mcp.CallToolResult, simpleOutput, error) {
	if input.ID <= 0 {
		return nil, simpleOutput{}, errors.New("id must be positive")
	}
	if err := s.history.Delete(ctx, input.ID); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete workout record: %w", err)
	}

	return nil, simpleOutput{
		Message: fmt.Sprintf("Deleted workout record: %d", input.ID),
	}, nil
}

func (s *Server) handleCleanup(ctx context.Context, req *mcp.CallToolRequest, input cleanupInput) (*mcp.CallToolResult, cleanupOutput, error) {
	plan, err := s.history.Cleanup(ctx)
	if err != nil {
		return nil, cleanupOutput{}, fmt.Errorf("failed to clean up workout records: %w", err)
	}

	evicted := plan.Evict
	if evicted == nil {
		evicted = []int64{}
	}
	return nil, cleanupOutput{
		Evicted: evicted,
		Current: plan.Current,
		Past:    plan.Past,
		Future:  plan.Future,
		Message: fmt.Sprintf("Evicted %d workout records", len(evicted)),
	}, nil
}

func (s *Server) handleMigrationStatus(ctx context.Context, req *mcp.CallToolRequest, input migrationStatusInput) (*mcp.CallToolResult, migrationStatusOutput, error) {
	out := migrationStatusOutput{
		Backend: s.history.Backend(),
		State:   "unknown",
	}

	if s.kv != nil {
		state, err := storage.DetectMigrationState(ctx, s.kv)
		if err != nil {
			return nil, migrationStatusOutput{}, fmt.Errorf("failed to read migration state: %w", err)
		}
		out.State = state.String()
	}

	all, err := s.history.GetAll(ctx)
	if err != nil {
		return nil, migrationStatusOutput{}, fmt.Errorf("failed to count workout records: %w", err)
	}
	out.Records = len(all)

	return nil, out, nil
}
