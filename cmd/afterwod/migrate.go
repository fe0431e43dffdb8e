// ABOUTME: CLI commands for the legacy history migration and backend copies.
// ABOUTME: status, run, and reset act on the migration flag; copy moves records between backends.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/afterwod/internal/storage"
	"github.com/spf13/cobra"
)

// skipInitialize marks commands that inspect or drive migration themselves.
var skipInitialize = map[string]string{annotationNoInitialize: annotationValueTrue}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or run the legacy history migration",
		Long: `Older versions kept workout history as one JSON list under a single
key. On start, afterwod moves those records into the active backend once and
sets a completion flag. These commands inspect and control that step.

USAGE:

  afterwod migrate status              # flag state and record counts
  afterwod migrate run                 # migrate now and print the report
  afterwod migrate reset               # clear the flag (next start migrates again)
  afterwod migrate copy --from flat    # copy flat history into the active backend

Re-running the migration does not duplicate records already migrated.`,
	}

	cmd.AddCommand(
		newMigrateStatusCmd(a),
		newMigrateRunCmd(a),
		newMigrateResetCmd(a),
		newMigrateCopyCmd(a),
	)
	return cmd
}

func newMigrateStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Show migration state",
		Args:        cobra.NoArgs,
		Annotations: skipInitialize,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			state, err := storage.DetectMigrationState(ctx, a.storage.KV())
			if err != nil {
				return err
			}
			records, err := a.storage.GetAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to count workouts: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:   %s\n", a.storage.Backend())
			fmt.Fprintf(out, "Migration: %s\n", stateColor(state).Sprint(state))
			fmt.Fprintf(out, "Records:   %d\n", len(records))
			return nil
		},
	}
}

func stateColor(state storage.MigrationState) *color.Color {
	switch state {
	case storage.MigrationCompleted:
		return color.New(color.FgGreen)
	case storage.MigrationNotStarted:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Faint)
	}
}

func newMigrateRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "run",
		Short:       "Run the legacy migration now",
		Args:        cobra.NoArgs,
		Annotations: skipInitialize,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.storage.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "✓ Migration %s\n", report.State)
			fmt.Fprintf(out, "  total %d, migrated %d, skipped %d, failed %d\n",
				report.Total, report.Migrated, report.Skipped, report.Failed)
			if report.Failed > 0 {
				color.New(color.FgYellow).Fprintf(out, "  %d legacy records could not be read and were dropped\n", report.Failed)
			}
			return nil
		},
	}
}

func newMigrateResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "reset",
		Short:       "Clear the migration flag",
		Args:        cobra.NoArgs,
		Annotations: skipInitialize,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.ResetMigrationFlag(cmd.Context(), a.storage.KV()); err != nil {
				return err
			}
			color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "✓ Migration flag cleared")
			return nil
		},
	}
}

func newMigrateCopyCmd(a *app) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy history from another backend into the active one",
		Long: `Copy every record from --from into the active backend, keeping creation
times. Records already present are skipped, so the copy can be repeated.

Use this after SQLite becomes available to move history written while
afterwod was running on the flat fallback:

  afterwod migrate copy --from flat --backend sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if from != storage.BackendFlat && from != storage.BackendSQLite {
				return fmt.Errorf("unknown source backend: %s (use flat or sqlite)", from)
			}
			if from == a.storage.Backend() {
				return fmt.Errorf("source and destination are both %s", from)
			}

			src, err := a.storage.OpenBackend(cmd.Context(), from)
			if err != nil {
				return fmt.Errorf("failed to open %s backend: %w", from, err)
			}
			defer func() { _ = src.Close() }()
			if src.Backend() == a.storage.Backend() {
				return fmt.Errorf("source and destination are both %s", src.Backend())
			}

			summary, err := storage.CopyRecords(cmd.Context(), src, a.storage.Adapter)
			if err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Copied %d workouts from %s to %s (%d already present)\n",
				summary.Copied, src.Backend(), a.storage.Backend(), summary.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", storage.BackendFlat, "source backend: flat or sqlite")
	return cmd
}
