package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/splitlabs/max-visibility/internal/config"
	"github.com/splitlabs/max-visibility/internal/model"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

var snapshotFormat string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <workspace-id>",
	Short: "Compute and print a visibility snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		return runSnapshot(cmd.Context(), cfg, args[0], snapshotFormat, os.Stdout)
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotFormat, "format", formatTable, "output format (json, table)")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(ctx context.Context, c *config.Config, workspaceID, format string, out io.Writer) error {
	if format != formatJSON && format != formatTable {
		return eris.Errorf("unsupported format %q (want json or table)", format)
	}

	snap, err := computeSnapshot(ctx, c, workspaceID)
	if err != nil {
		return err
	}
	return writeSnapshot(out, snap, format)
}

// computeSnapshot opens the store and assembles one snapshot without the
// cache.
func computeSnapshot(ctx context.Context, c *config.Config, workspaceID string) (*model.CompetitiveSnapshot, error) {
	st, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	svc, err := newService(st, c)
	if err != nil {
		return nil, err
	}

	snap, err := svc.Snapshot(ctx, workspaceID)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot")
	}
	return snap, nil
}

func writeSnapshot(out io.Writer, snap *model.CompetitiveSnapshot, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	formatSnapshotTable(out, snap)
	return nil
}

// formatSnapshotTable writes a human-readable summary of snap to out.
func formatSnapshotTable(out io.Writer, snap *model.CompetitiveSnapshot) {
	p := message.NewPrinter(language.English)

	_, _ = p.Fprintf(out, "Workspace:  %s\n", snap.WorkspaceID)
	_, _ = p.Fprintf(out, "Status:     %s\n", snap.Status)
	if snap.Status != model.SnapshotOK {
		if snap.Message != "" {
			_, _ = p.Fprintf(out, "Message:    %s\n", snap.Message)
		}
		return
	}
	for _, w := range snap.Warnings {
		_, _ = p.Fprintf(out, "Warning:    %s\n", w)
	}

	comp := snap.Competitive
	_, _ = p.Fprintf(out, "Score:      %.2f\n", snap.Score.OverallScore)
	_, _ = p.Fprintf(out, "Rank:       %d of %d (percentile %d)\n", comp.CurrentRank, comp.TotalCompetitors, comp.Percentile)
	_, _ = p.Fprintf(out, "Share:      %.2f%%\n", comp.ShareOfVoice)
	_, _ = p.Fprintf(out, "Market:     %.2f mentions over %d assessments\n",
		snap.CumulativeData.TotalMarketMentions, snap.CumulativeData.TotalAssessments)
	_, _ = p.Fprintf(out, "Citations:  %d direct, %d indirect\n\n", snap.Citations.DirectCount, snap.Citations.IndirectCount)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tNAME\tMENTIONS\tASSESSMENTS\tLATEST")
	for _, c := range comp.Top10Competitors {
		name := c.Name
		if c.IsSubject {
			name += " *"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			c.Rank,
			name,
			p.Sprintf("%.2f", c.CumulativeMentionScore),
			c.AssessmentCount,
			p.Sprintf("%.2f", c.LatestScore),
		)
	}
	_ = w.Flush()
}
