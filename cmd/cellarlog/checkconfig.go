package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cellarlog/cellarlog/internal/config"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration and print the resolved settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "port:              %d\n", cfg.Port)
		fmt.Fprintf(out, "base url:          %s\n", cfg.BaseURL)
		fmt.Fprintf(out, "data dir:          %s\n", cfg.DataDir)
		fmt.Fprintf(out, "database:          %s\n", cfg.DatabaseURL)
		fmt.Fprintf(out, "api auth:          %s\n", onOff(cfg.AuthRequired()))
		fmt.Fprintf(out, "license key:       %s\n", presence(cfg.LicenseKey))
		fmt.Fprintf(out, "cors origins:      %s\n", strings.Join(cfg.CORSOrigins, ", "))
		fmt.Fprintf(out, "worker:            %s (poll %s, concurrency %d)\n",
			onOff(cfg.WorkerEnabled), cfg.WorkerPollInterval, cfg.WorkerConcurrency)
		fmt.Fprintf(out, "scheduled backups: %s (every %s, keep %d, dir %s)\n",
			onOff(cfg.BackupEnabled), cfg.BackupInterval, cfg.BackupRetention, cfg.BackupDir)
		fmt.Fprintf(out, "object storage:    %s\n", storageSummary(cfg))
		if cfg.LogFilterPath != "" {
			fmt.Fprintf(out, "log filters:       %s\n", cfg.LogFilterPath)
		}
		if cfg.IdleTimeout > 0 {
			fmt.Fprintf(out, "idle shutdown:     after %s\n", cfg.IdleTimeout)
		}

		fmt.Fprintln(out, "\nconfiguration OK")
		return nil
	},
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func presence(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "(set)"
}

func storageSummary(cfg *config.Config) string {
	if !cfg.StorageEnabled {
		return "disabled"
	}
	return fmt.Sprintf("bucket %s at %s", cfg.StorageBucket, cfg.StorageEndpoint)
}
