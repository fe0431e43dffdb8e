// ABOUTME: CLI commands for exporting and importing workout history.
// ABOUTME: Supports JSON, YAML, and Markdown export; imports JSON exports.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/afterwod/internal/models"
	"github.com/harperreed/afterwod/internal/storage"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		output string
		mode   string
		since  string
	)

	cmd := &cobra.Command{
		Use:   "export <format>",
		Short: "Export workout history",
		Long: `Export workout history in various formats.

FORMATS:

  json       Full JSON export (suitable for backup and 'afterwod import')
  yaml       YAML grouped by month
  markdown   Markdown tables per month

OPTIONS:

  --output, -o   Write to file instead of stdout
  --mode, -t     Only this workout mode (markdown only)
  --since        Only workouts on or after this date (markdown only)

EXAMPLES:

  afterwod export json -o backup.json
  afterwod export yaml
  afterwod export markdown --mode GOAL --since 2026-10-01`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"json", "yaml", "markdown"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var data []byte
			var err error
			switch args[0] {
			case "json":
				data, err = storage.ExportJSON(ctx, a.storage)
			case "yaml":
				data, err = storage.ExportYAML(ctx, a.storage)
			case "markdown":
				var modeFilter *models.WorkoutMode
				if mode != "" {
					m := models.WorkoutMode(strings.ToUpper(mode))
					modeFilter = &m
				}
				var sinceFilter *string
				if since != "" {
					if _, err := models.ParseDate(since); err != nil {
						return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", since)
					}
					sinceFilter = &since
				}
				var md string
				md, err = storage.ExportMarkdown(ctx, a.storage, modeFilter, sinceFilter)
				data = []byte(md)
			default:
				return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", args[0])
			}
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if output != "" {
				if err := os.WriteFile(output, data, 0600); err != nil {
					return fmt.Errorf("failed to write file: %w", err)
				}
				color.New(color.FgGreen).Fprintf(out, "✓ Exported to %s\n", output)
				return nil
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&mode, "mode", "t", "", "filter by workout mode (markdown only)")
	cmd.Flags().StringVar(&since, "since", "", "only include workouts since date (YYYY-MM-DD)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import workout history from a JSON export",
		Long: `Import workouts from a file written by 'afterwod export json'.

Records already present (same date, mode, duration, exercises, and creation
time) are skipped, so importing the same file twice is harmless. Retention is
not applied to imported records; run 'afterwod cleanup' afterwards if needed.

EXAMPLES:

  afterwod import backup.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			summary, err := storage.ImportJSON(cmd.Context(), a.storage.Adapter, data)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Imported %d workouts from %s (%d already present)\n",
				summary.Copied, args[0], summary.Skipped)
			return nil
		},
	}
}
