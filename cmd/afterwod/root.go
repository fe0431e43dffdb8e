// ABOUTME: Root Cobra command for afterwod CLI.
// ABOUTME: Builds logger, config, and storage once in PersistentPreRunE and hands them to subcommands.
package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/harperreed/afterwod/internal/config"
	"github.com/harperreed/afterwod/internal/logging"
	"github.com/harperreed/afterwod/internal/mcp"
	"github.com/spf13/cobra"
)

// Annotations on commands that manage their own storage lifecycle.
const (
	annotationNoStorage    = "afterwod/no-storage"
	annotationNoInitialize = "afterwod/no-initialize"
	annotationValueTrue    = "true"
)

// app carries everything a subcommand needs. It is built once per process
// by the root command and closed after the command returns.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	logs    io.Closer
	storage *config.Storage

	// serveMCP, when set, runs instead of serving on stdio.
	serveMCP func(ctx context.Context, server *mcp.Server) error

	// flag overrides, applied on top of config file and environment
	dataDir  string
	backend  string
	kvEngine string
	logLevel string
	logFile  string
}

// run executes the CLI with args and releases storage afterwards, even when
// the command fails.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer func() { _ = a.close() }()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "afterwod",
		Short: "Workout completion history",
		Long: `afterwod keeps the history of workouts you have finished.

WHAT IT STORES:

  One record per completed workout: date, mode (BALANCE, GOAL, PART, WOD),
  elapsed seconds, the exercises in execution order, rounds, and plan ID.

QUICK START:

  $ afterwod add GOAL 10m Pull-up Dip        # Log a workout
  $ afterwod add PART 1140 --rounds 3        # Duration in seconds works too
  $ afterwod list                            # Newest first
  $ afterwod list --month 2026-10 --mode GOAL

RETENTION:

  The current month keeps the newest 100 records (monthly_limit in config).
  Earlier months are dropped on every add and by 'afterwod cleanup'.

STORAGE:

  SQLite at ~/.local/share/afterwod/afterwod.db when available, otherwise a
  flat record list in the key-value store beside it. 'afterwod backend'
  shows which one is active.

MCP INTEGRATION:

  Run 'afterwod mcp' to start the Model Context Protocol server:

  {
    "mcpServers": {
      "afterwod": { "command": "afterwod", "args": ["mcp"] }
    }
  }`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.dataDir, "data-dir", "", "data directory (default ~/.local/share/afterwod)")
	flags.StringVar(&a.backend, "backend", "", "storage backend: auto, sqlite, or flat")
	flags.StringVar(&a.kvEngine, "kv-engine", "", "key-value engine: badger or bolt")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFile, "log-file", "", "also write JSON logs to this file")

	root.AddCommand(
		newAddCmd(a),
		newCompleteCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newCleanupCmd(a),
		newMigrateCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newMCPCmd(a),
		newBackendCmd(a),
	)
	return root
}

// setup loads config, builds the logger, opens storage, and runs Initialize.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Annotations[annotationNoStorage] == annotationValueTrue {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.applyFlags(cfg)
	a.cfg = cfg

	logger, logs, err := logging.New(logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.GetLogFile(),
		Out:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.logger, a.logs = logger, logs

	s, err := cfg.OpenStorage(cmd.Context(), logger)
	if err != nil {
		return err
	}
	a.storage = s

	if cmd.Annotations[annotationNoInitialize] == annotationValueTrue {
		return nil
	}
	return s.Initialize(cmd.Context())
}

func (a *app) applyFlags(cfg *config.Config) {
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	if a.kvEngine != "" {
		cfg.KVEngine = a.kvEngine
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFile != "" {
		cfg.LogFile = a.logFile
	}
}

// close releases storage and the log file. It is safe to call twice.
func (a *app) close() error {
	var firstErr error
	if a.storage != nil {
		firstErr = a.storage.Close()
		a.storage = nil
	}
	if a.logs != nil {
		if err := a.logs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.logs = nil
	}
	return firstErr
}
