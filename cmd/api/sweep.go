package main

import (
	"context"
	"fmt"

	"storefront-orders/internal/core/logger"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Retry parked payment events once and exit",
		Long: `Retry payment events that arrived before their order existed.

Useful from cron when the API runs without its built-in sweeper, or after an
outage to drain the backlog immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			app, err := newApplication(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.reconciler.Sweep(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "resolved=%d rescheduled=%d failed=%d\n",
				result.Resolved, result.Rescheduled, result.Failed)
			return nil
		},
	}
}
