package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codevault/codevault/internal/repository/sqlstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and exit",
	Long: `Apply pending schema migrations to the configured database and exit.
"serve" migrates on start as well; this command lets a deploy run migrations
as a separate step.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.DB.Driver == "sqlite" {
		if err := ensureDir(cfg.DB.DSN); err != nil {
			return err
		}
	}

	// Open applies every pending migration before returning.
	db, err := sqlstore.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		return err
	}
	defer db.Close()

	version, err := db.SchemaVersion(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("database is up to date",
		slog.String("driver", cfg.DB.Driver),
		slog.Int("schema_version", version),
	)
	return nil
}
