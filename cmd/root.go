package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/splitlabs/max-visibility/internal/config"
	"github.com/splitlabs/max-visibility/internal/metrics"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "maxvis",
	Short: "AI visibility aggregation and scoring",
	Long:  "Aggregates assessment runs into competitive visibility snapshots: share of voice, rankings, trend charts and citation feeds.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		metrics.Register()

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
