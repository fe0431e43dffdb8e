// ABOUTME: MCP resource implementations for workout history.
// ABOUTME: Provides afterwod://recent and afterwod://month resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/afterwod/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerResources() {
	// afterwod://recent - last 10 workouts
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "afterwod://recent",
		Name:        "Recent Workouts",
		Description: "Last 10 logged workouts",
		MIMEType:    "application/json",
	}, s.handleRecentResource)

	// afterwod://month - current month with per-mode counts
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "afterwod://month",
		Name:        "This Month",
		Description: "Workouts logged this calendar month with totals per mode",
		MIMEType:    "application/json",
	}, s.handleMonthResource)
}

// Resource handlers

func (s *Server) handleRecentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	records, err := s.history.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workout records: %w", err)
	}
	if len(records) > 10 {
		records = records[:10]
	}

	return jsonResource("afterwod://recent", map[string]interface{}{
		"backend": s.history.Backend(),
		"records": records,
	})
}

func (s *Server) handleMonthResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	now := time.Now()
	records, err := s.history.GetByMonth(ctx, now.Year(), now.Month())
	if err != nil {
		return nil, fmt.Errorf("failed to list workout records: %w", err)
	}

	byMode := make(map[models.WorkoutMode]int)
	seconds := 0
	for _, r := range records {
		byMode[r.Mode]++
		seconds += r.Duration
	}

	return jsonResource("afterwod://month", map[string]interface{}{
		"month":          now.Format("2006-01"),
		"count":          len(records),
		"total_duration": seconds,
		"by_mode":        byMode,
		"records":        records,
	})
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
