package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifehub/internal/cli"
	"lifehub/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := cli.LoadConfig(nil)
		if err != nil {
			return err
		}
		logger := cli.SetupLogger(cfg)
		if cfg.DataBackend != "sqlite" {
			return fmt.Errorf("migrate needs DATA_BACKEND=sqlite, got %q", cfg.DataBackend)
		}

		version, err := storage.Migrate(cfg.SQLiteDBPath)
		if err != nil {
			return err
		}
		logger.Info("Migrations applied", "db_path", cfg.SQLiteDBPath, "version", version)
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
		return nil
	},
}
