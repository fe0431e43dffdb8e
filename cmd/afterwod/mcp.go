// ABOUTME: CLI commands for the MCP server and backend information.
// ABOUTME: mcp serves stdio until the context is canceled; backend prints where history lives.
package main

import (
	"fmt"
	"path/filepath"

	"github.com/harperreed/afterwod/internal/mcp"
	"github.com/harperreed/afterwod/internal/storage"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout. Add to your MCP client config:

  {
    "mcpServers": {
      "afterwod": {
        "command": "afterwod",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  add_workout_record        Log a completed workout
  list_workout_records      List history by date, month, or mode
  delete_workout_record     Delete a workout by ID
  cleanup_workout_records   Apply the monthly retention policy
  migration_status          Active backend and legacy migration state

AVAILABLE RESOURCES:

  afterwod://recent   Last 10 workouts
  afterwod://month    This month with totals per mode`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := mcp.NewServer(a.storage, a.storage.KV(), a.logger)
			if err != nil {
				return err
			}
			if a.serveMCP != nil {
				return a.serveMCP(cmd.Context(), server)
			}
			return server.Serve(cmd.Context())
		},
	}
}

func newBackendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Show the active storage backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dataDir := a.cfg.GetDataDir()

			fmt.Fprintf(out, "Backend:   %s", a.storage.Backend())
			if a.cfg.GetBackend() == storage.BackendAuto {
				fmt.Fprint(out, " (auto)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "KV engine: %s\n", a.cfg.GetKVEngine())
			fmt.Fprintf(out, "Data dir:  %s\n", dataDir)
			if a.storage.Backend() == storage.BackendSQLite {
				fmt.Fprintf(out, "Database:  %s\n", filepath.Join(dataDir, storage.DBFileName))
			}
			fmt.Fprintf(out, "Retention: %d per month\n", a.cfg.GetRetention().MonthlyLimit)
			return nil
		},
	}
}
