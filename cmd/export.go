package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/splitlabs/max-visibility/internal/config"
	"github.com/splitlabs/max-visibility/internal/report"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <workspace-id>",
	Short: "Write the visibility leaderboard to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		return runExport(cmd.Context(), cfg, args[0], exportOutput)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output .xlsx path (required)")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, c *config.Config, workspaceID, path string) error {
	snap, err := computeSnapshot(ctx, c, workspaceID)
	if err != nil {
		return err
	}

	if err := report.WriteLeaderboard(path, snap); err != nil {
		return err
	}

	zap.L().Info("export complete",
		zap.String("workspace_id", workspaceID),
		zap.String("status", string(snap.Status)),
		zap.String("file", path),
	)
	return nil
}
