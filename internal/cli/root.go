// Package cli implements the listctl command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/listingest/internal/config"
	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/logging"
	"github.com/JonMunkholm/listingest/internal/store"
)

// app carries what every subcommand needs once the root has run.
type app struct {
	cfg     *config.Config
	backend store.Backend

	// Flag values that override configuration.
	driver     string
	sqlitePath string
	dbURL      string
}

// NewRootCmd builds the command tree. Each call returns an independent tree,
// so tests can run commands in isolation.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "listctl",
		Short:         "Ingest task and contact lists",
		Long:          `listctl ingests CSV and Excel lists, distributes tasks across agents and inspects upload history.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.driver, "store", "", "store driver: postgres, sqlite or memory (overrides STORE_DRIVER)")
	flags.StringVar(&a.sqlitePath, "sqlite-path", "", "SQLite database file (overrides SQLITE_PATH)")
	flags.StringVar(&a.dbURL, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")

	root.AddCommand(
		newIngestCmd(a),
		newWatchCmd(a),
		newAttemptsCmd(a),
		newListsCmd(a),
		newWorkersCmd(a),
		newSweepCmd(a),
	)
	return root, a
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	root, a := newRoot()
	// PostRun is skipped when a command fails.
	defer a.close()

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// open loads configuration, applies flag overrides and connects the store.
func (a *app) open(cmd *cobra.Command) error {
	if !needsStore(cmd) {
		return nil
	}

	// Flags win over the environment; feeding them through it keeps
	// validation in one place.
	overrides := map[string]string{
		"STORE_DRIVER": a.driver,
		"SQLITE_PATH":  a.sqlitePath,
		"DATABASE_URL": a.dbURL,
	}
	for env, v := range overrides {
		if v != "" {
			if err := os.Setenv(env, v); err != nil {
				return fmt.Errorf("set %s: %w", env, err)
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	// stdout is reserved for command output.
	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	a.backend = backend
	return nil
}

// needsStore is false for cobra's built-in help and completion commands.
func needsStore(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	if p := cmd.Parent(); p != nil && p.Name() == "completion" {
		return false
	}
	return true
}

func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	return err
}

func (a *app) engine() *core.Engine {
	return core.NewEngine(a.backend, a.cfg.EngineConfig())
}

// formatAge returns a human-readable relative time string.
func formatAge(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	}

	minutes := int(duration.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}

	hours := int(duration.Hours())
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}

	return fmt.Sprintf("%dd ago", hours/24)
}
