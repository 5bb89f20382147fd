package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/splitlabs/max-visibility/internal/cache"
	"github.com/splitlabs/max-visibility/internal/config"
	"github.com/splitlabs/max-visibility/internal/fixture"
)

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load assessment runs from a YAML fixture into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		return runImport(cmd.Context(), cfg, args[0], os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(ctx context.Context, c *config.Config, path string, out io.Writer) error {
	fx, err := fixture.Load(path)
	if err != nil {
		return err
	}
	fx.Normalize(time.Now().UTC())

	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	summary, err := fx.Apply(ctx, st)
	if err != nil {
		return eris.Wrap(err, "import")
	}

	invalidateShared(ctx, c, fx.Workspace.ID)

	zap.L().Info("import complete",
		zap.String("file", path),
		zap.String("workspace_id", fx.Workspace.ID),
		zap.Int("runs", summary.Runs),
		zap.Int64("questions", summary.Questions),
		zap.Int64("competitors", summary.Competitors),
	)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// invalidateShared drops the workspace's entry from a cache shared with
// running servers. Only the redis backend outlives this process. Failures
// are logged; the import itself already succeeded.
func invalidateShared(ctx context.Context, c *config.Config, workspaceID string) {
	if c.Cache.Backend != cache.BackendRedis {
		return
	}

	snapCache, _, closeCache, err := initCache(ctx, c)
	if err != nil {
		zap.L().Warn("import: cache unavailable, skipping invalidation", zap.Error(err))
		return
	}
	defer closeCache()

	if err := snapCache.Invalidate(ctx, workspaceID); err != nil {
		zap.L().Warn("import: invalidate cached snapshot",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
	}
}
