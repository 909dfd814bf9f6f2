package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "accident-cli",
	Short: "Mountain accident news extraction pipeline",
	Long:  "Fetches mountain accident news articles, extracts structured incident records via LLM with deterministic fallbacks, clusters them into events, and renders incident reports.",
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
