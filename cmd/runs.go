package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/splitlabs/max-visibility/internal/config"
	"github.com/splitlabs/max-visibility/internal/model"
	"github.com/splitlabs/max-visibility/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect assessment runs",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list <workspace-id>",
	Short: "List assessment runs for a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
			Offset: offset,
		}
		return listRuns(cmd.Context(), cfg, args[0], filter, os.Stdout, os.Stderr)
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (pending, running, completed, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsCmd.AddCommand(runsListCmd)
	rootCmd.AddCommand(runsCmd)
}

func listRuns(ctx context.Context, c *config.Config, workspaceID string, filter store.RunFilter, out, errOut io.Writer) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return eris.Errorf("runs list: unknown status %q", filter.Status)
	}

	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, workspaceID, filter)
	if err != nil {
		return eris.Wrap(err, "runs list")
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(errOut, "No runs found.")
		return nil
	}

	formatRunsList(out, runs)
	return nil
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.AssessmentRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSCORE\tMENTION_RATE\tCREATED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%.2f\t%s\n",
			r.ID,
			r.Status,
			r.TotalScore,
			r.PerRunMentionRate,
			r.CreatedAt.UTC().Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
