package main

import (
	"storefront-orders/internal/core/database"
	"storefront-orders/internal/core/logger"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := database.MigrateURL(cfg.Database.URL); err != nil {
				return err
			}
			logger.Get().Info("Database migrations applied")
			return nil
		},
	}
}
