package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cellarlog/cellarlog/internal/config"
	"github.com/cellarlog/cellarlog/internal/logging"
	"github.com/cellarlog/cellarlog/internal/repository"
	"github.com/cellarlog/cellarlog/internal/service"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the database into a backup archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.SetDefault()
		cfg, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		repos := repository.NewRepositories(db)
		services, err := service.NewServices(cfg, db, repos, logger)
		if err != nil {
			return err
		}

		archive, err := services.Backup.Run(context.Background())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "wrote %s (%d bytes)\n", archive.Path, archive.SizeBytes)
		if archive.StorageKey != "" {
			fmt.Fprintf(out, "uploaded as %s\n", archive.StorageKey)
		}
		return nil
	},
}

var restoreConfirm bool

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Replace the database with a backup archive",
	Long: `Replaces the live database file with the given archive. The server
must not be running. The current database is kept alongside as a
pre-restore copy.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.SetDefault()
		if !restoreConfirm {
			return fmt.Errorf("restoring replaces the current database; re-run with --yes to confirm")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		dbPath := cfg.DatabasePath()
		if dbPath == "" {
			return fmt.Errorf("DATABASE_URL does not point at a local file, cannot restore")
		}

		if err := service.RestoreFromArchive(args[0], dbPath, logger); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", dbPath, args[0])
		fmt.Fprintln(cmd.OutOrStdout(), "run \"cellarlog migrate up\" before serving in case the archive predates the current schema")
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreConfirm, "yes", false, "confirm replacing the current database")
}
