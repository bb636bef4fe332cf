package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

// @title Storefront Orders API
// @version 1.0
// @description Order intake, payment reconciliation and order notifications for the storefront.
// @contact.name API Support
// @contact.email support@storefront.test
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	rootCmd := &cobra.Command{
		Use:     "storefront-orders",
		Short:   "Storefront order intake and payment reconciliation service",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing the .env file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
