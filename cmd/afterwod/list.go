// ABOUTME: CLI command for listing workout history.
// ABOUTME: Filters by date, month, or mode and limits results.
package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/afterwod/internal/models"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var (
		date  string
		month string
		mode  string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "l"},
		Short:   "List workout history",
		Long: `List logged workouts, newest first.

OUTPUT FORMAT:

  Each line shows: #ID  DATE  MODE  DURATION  EXERCISES

FILTERING:

  --date YYYY-MM-DD    only that day
  --month YYYY-MM      only that calendar month
  --mode MODE          only BALANCE, GOAL, PART, or WOD

  --mode combines with --date or --month.

EXAMPLES:

  afterwod list                          # Last 20 workouts
  afterwod list --month 2026-10          # October 2026
  afterwod list --mode goal -n 50        # Last 50 GOAL workouts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filterMode *models.WorkoutMode
			if mode != "" {
				m := models.WorkoutMode(strings.ToUpper(mode))
				if !models.IsValidMode(string(m)) {
					return fmt.Errorf("unknown mode: %s", mode)
				}
				filterMode = &m
			}

			records, err := a.query(cmd.Context(), date, month, filterMode)
			if err != nil {
				return fmt.Errorf("failed to list workouts: %w", err)
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No workouts found.")
				return nil
			}
			printRecords(out, records)
			return nil
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "only workouts on this date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&month, "month", "m", "", "only workouts in this month (YYYY-MM)")
	cmd.Flags().StringVarP(&mode, "mode", "t", "", "filter by workout mode")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max number of results")
	cmd.MarkFlagsMutuallyExclusive("date", "month")
	return cmd
}

// query uses the narrowest adapter lookup and applies mode on top of a
// date or month filter.
func (a *app) query(ctx context.Context, date, month string, mode *models.WorkoutMode) ([]models.StoredRecord, error) {
	var (
		records []models.StoredRecord
		err     error
	)
	switch {
	case date != "":
		records, err = a.storage.GetByDate(ctx, date)
	case month != "":
		year, m, perr := models.ParseMonth(month)
		if perr != nil {
			return nil, perr
		}
		records, err = a.storage.GetByMonth(ctx, year, m)
	case mode != nil:
		return a.storage.GetByMode(ctx, *mode)
	default:
		return a.storage.GetAll(ctx)
	}
	if err != nil || mode == nil {
		return records, err
	}

	kept := records[:0]
	for _, r := range records {
		if r.Mode == *mode {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func printRecords(out io.Writer, records []models.StoredRecord) {
	faint := color.New(color.Faint)
	for _, r := range records {
		rounds := ""
		if r.Rounds != nil {
			rounds = faint.Sprintf(" x%d", *r.Rounds)
		}
		fmt.Fprintf(out, "%s %s %s %s%s %s\n",
			faint.Sprint(padRight(fmt.Sprintf("#%d", r.ID), 6)),
			r.Date,
			padRight(string(r.Mode), 8),
			padRight(formatSeconds(r.Duration), 8),
			rounds,
			truncate(strings.Join(r.Exercises, ", "), 50))
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}
