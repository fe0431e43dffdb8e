// ABOUTME: CLI command for logging a completed workout.
// ABOUTME: add takes fields directly; complete reads a generator plan file.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/afterwod/internal/models"
	"github.com/spf13/cobra"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		date   string
		rounds int
		planID string
	)

	cmd := &cobra.Command{
		Use:     "add <mode> <duration> [exercise...]",
		Aliases: []string{"a"},
		Short:   "Log a completed workout",
		Long: `Log a completed workout.

MODES:

  BALANCE  fill the gaps in recent training
  GOAL     work toward one goal movement
  PART     target specific muscle groups
  WOD      older name for BALANCE

Exercises are stored in the order given, which is the execution order.

EXAMPLES:

  afterwod add GOAL 600 Pull-up
  afterwod add part 19m --rounds 3 "Air Squat" Burpee
  afterwod add BALANCE 15m --date 2026-10-18 --plan-id balance-42`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := models.WorkoutMode(strings.ToUpper(args[0]))
			if !models.IsValidMode(string(mode)) {
				return fmt.Errorf("unknown mode: %s\nValid modes: BALANCE, GOAL, PART, WOD", args[0])
			}

			seconds, err := parseDuration(args[1])
			if err != nil {
				return err
			}

			if date == "" {
				date = models.FormatDate(time.Now())
			}

			rec := models.NewWorkoutRecord(date, mode, seconds, args[2:])
			if rounds > 0 {
				rec.WithRounds(rounds)
			}
			if planID != "" {
				rec.WithPlanID(planID)
			}

			stored, err := a.storage.Add(cmd.Context(), *rec)
			if err != nil {
				return fmt.Errorf("failed to add workout: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "✓ Added %s workout\n", stored.Mode)
			fmt.Fprintf(out, "  %s %s %s\n",
				color.New(color.Faint).Sprintf("#%d", stored.ID),
				stored.Date,
				formatSeconds(stored.Duration))
			return nil
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "workout date YYYY-MM-DD (default today)")
	cmd.Flags().IntVarP(&rounds, "rounds", "r", 0, "completed rounds")
	cmd.Flags().StringVar(&planID, "plan-id", "", "identifier of the plan the workout came from")
	return cmd
}

// parseDuration reads whole seconds or a Go duration string.
func parseDuration(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration: %s (use seconds or e.g. 19m30s)", s)
	}
	return int(d / time.Second), nil
}

// formatSeconds renders a duration as m:ss, or h:mm:ss past an hour.
func formatSeconds(total int) string {
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func newCompleteCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "complete <plan.json> <duration>",
		Short: "Log a finished workout plan",
		Long: `Log a workout plan written by the generator as completed.

The mode, rounds, and exercise order come from the plan file; duration is the
time you actually took.

EXAMPLES:

  afterwod complete plan.json 19m30s
  afterwod complete plan.json 1170 --date 2026-10-18`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read plan: %w", err)
			}
			var plan models.WorkoutPlan
			if err := json.Unmarshal(data, &plan); err != nil {
				return fmt.Errorf("invalid plan file: %w", err)
			}
			plan.Mode = models.WorkoutMode(strings.ToUpper(string(plan.Mode)))

			seconds, err := parseDuration(args[1])
			if err != nil {
				return err
			}
			if date == "" {
				date = models.FormatDate(time.Now())
			}

			stored, err := a.storage.Add(cmd.Context(), *models.FromPlan(plan, date, seconds))
			if err != nil {
				return fmt.Errorf("failed to add workout: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "✓ Completed %s plan\n", stored.Mode)
			fmt.Fprintf(out, "  %s %s %s %d exercises\n",
				color.New(color.Faint).Sprintf("#%d", stored.ID),
				stored.Date,
				formatSeconds(stored.Duration),
				len(stored.Exercises))
			return nil
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "workout date YYYY-MM-DD (default today)")
	return cmd
}
