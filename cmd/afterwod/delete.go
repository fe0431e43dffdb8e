// ABOUTME: CLI commands for deleting workouts and applying retention.
// ABOUTME: delete removes one record by ID; cleanup runs the monthly policy.
package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"del", "rm"},
		Short:   "Delete a workout",
		Long: `Delete a workout by the numeric ID shown in 'afterwod list'.

Deleting an ID that does not exist is not an error.

EXAMPLES:

  afterwod delete 42
  afterwod rm 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid id: %s", args[0])
			}

			records, err := a.storage.GetAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to look up workout: %w", err)
			}

			if err := a.storage.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete workout: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, r := range records {
				if r.ID == id {
					color.New(color.FgYellow).Fprintf(out, "✗ Deleted %s workout\n", r.Mode)
					fmt.Fprintf(out, "  %s %s\n", color.New(color.Faint).Sprintf("#%d", r.ID), r.Date)
					return nil
				}
			}
			fmt.Fprintf(out, "No workout with ID %d\n", id)
			return nil
		},
	}
}

func newCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Apply the monthly retention policy",
		Long: `Drop workouts from earlier months and trim the current month to its limit.

This also happens on every add; run it after changing monthly_limit or when
a new month starts without any new workouts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := a.storage.Cleanup(cmd.Context())
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if plan.Empty() {
				fmt.Fprintln(out, "Nothing to clean up.")
				return nil
			}
			color.New(color.FgYellow).Fprintf(out, "✗ Removed %d workouts\n", len(plan.Evict))
			fmt.Fprintf(out, "  %d from earlier months, %d over this month's limit\n", plan.Past, plan.OverLimit)
			return nil
		},
	}
}
