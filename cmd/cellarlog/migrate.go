package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cellarlog/cellarlog/internal/config"
	"github.com/cellarlog/cellarlog/internal/database"
	"github.com/cellarlog/cellarlog/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpTarget string

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.SetDefault()
		cfg, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if migrateUpTarget != "" {
			if err := database.MigrateTo(db, logger, migrateUpTarget); err != nil {
				return err
			}
		} else {
			if err := database.MigrateWithLogger(db, logger); err != nil {
				return err
			}
		}

		current, err := database.CurrentSchemaVersion(db)
		if err != nil {
			return err
		}
		logger.Info("schema up to date", "version", current, "database", cfg.DatabaseURL)
		return nil
	},
}

var (
	migrateDownTarget  string
	migrateDownConfirm bool
)

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert schema migrations down to a target revision",
	Long: `Reverts applied migrations until the target revision is the newest
one remaining. Use "base" to revert everything. Downgrades drop tables
and indexes; take a backup first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.SetDefault()
		if migrateDownTarget == "" {
			return fmt.Errorf("--target is required (revision ID or \"base\")")
		}
		if !migrateDownConfirm {
			return fmt.Errorf("downgrades are destructive; re-run with --yes to confirm")
		}

		_, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := database.Downgrade(db, logger, migrateDownTarget); err != nil {
			return err
		}
		current, err := database.CurrentSchemaVersion(db)
		if err != nil {
			return err
		}
		logger.Info("schema downgraded", "version", current)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		current, err := database.CurrentSchemaVersion(db)
		if err != nil {
			return err
		}
		head, err := database.HeadSchemaVersion()
		if err != nil {
			return err
		}
		applied, err := database.GetAppliedMigrations(db)
		if err != nil {
			return err
		}
		pending, err := database.GetPendingMigrations(db)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "current: %s\n", orNone(current))
		fmt.Fprintf(out, "head:    %s\n\n", head)
		for _, m := range applied {
			fmt.Fprintf(out, "  applied  %s  %s\n", m.ID, m.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		for _, m := range pending {
			fmt.Fprintf(out, "  pending  %s  %s\n", m.ID, m.Description)
		}
		if len(pending) == 0 {
			fmt.Fprintln(out, "\nschema is up to date")
		}
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// openDatabase loads config and opens the configured database without
// running migrations.
func openDatabase() (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, err
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, db, nil
}

func init() {
	migrateUpCmd.Flags().StringVar(&migrateUpTarget, "target", "", "stop after this revision instead of head")
	migrateDownCmd.Flags().StringVar(&migrateDownTarget, "target", "", `revision to downgrade to, or "base"`)
	migrateDownCmd.Flags().BoolVar(&migrateDownConfirm, "yes", false, "confirm the destructive downgrade")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
