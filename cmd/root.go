package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mnemosyn1154/WVP-QNA/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wvp-qna",
	Short: "Q&A service over portfolio company financial documents",
	Long:  "Answers investment-team questions about portfolio companies by routing across LLM tiers: cheap text models for extractable documents, PDF-capable models for scanned filings.",
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
