package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civic-archive/fppc-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fppc",
	Short: "FPPC advice letter extraction pipeline",
	Long:  "Extracts trusted text from scanned FPPC advice letters through escalating engines, verifies vision output against baseline OCR, and structures letters into sections, citations, and topics.",
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
