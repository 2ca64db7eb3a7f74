package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aliscan/aliscan-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "aliscan",
	Short: "Supplier verification for marketplace sourcing",
	Long:  "Extracts supplier data from OCR captures of marketplace listings, scores reliability, estimates landed costs and margins, and tracks shipments.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
