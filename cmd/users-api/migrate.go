package main

import (
	"github.com/deppfellow/users-api/internal/config"
	"github.com/deppfellow/users-api/internal/database"
	"github.com/deppfellow/users-api/internal/logger"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			log := logger.NewLogger(cfg.Observability)

			dsn, err := config.NewCredentialResolver(&log, nil).Resolve(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}

			if err := database.Migrate(cmd.Context(), &log, dsn); err != nil {
				log.Error().Err(err).Msg("migration failed")
				return err
			}

			return nil
		},
	}
}
