package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cohort-cli/internal/config"
)

var (
	cfg        *config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "cohort-cli",
	Short: "Monthly customer retention cohorts from retail transaction logs",
	Long: `Reads a retail transaction log (CSV, XLSX, zip, URL or Postgres table), drops
cancelled and anonymous line items, groups customers by the month of their first
purchase and writes a long-format retention table ready for Tableau.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml if present)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("command failed", zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
}
