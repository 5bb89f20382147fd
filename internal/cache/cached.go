package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/splitlabs/max-visibility/internal/metrics"
	"github.com/splitlabs/max-visibility/internal/model"
)

// Source produces snapshots. *visibility.Service satisfies it.
type Source interface {
	Snapshot(ctx context.Context, workspaceID string) (*model.CompetitiveSnapshot, error)
}

// Cached serves snapshots cache-aside. Cache failures are logged and fall
// through to the source. Only complete snapshots are stored: status ok and
// no degraded sections.
type Cached struct {
	src     Source
	cache   SnapshotCache
	backend string
}

// NewCached wraps src with cache. backend labels the metrics.
func NewCached(src Source, cache SnapshotCache, backend string) *Cached {
	if cache == nil {
		cache = Nop{}
		backend = BackendOff
	}
	return &Cached{src: src, cache: cache, backend: backend}
}

// Snapshot returns the cached snapshot or computes and stores a fresh one.
func (c *Cached) Snapshot(ctx context.Context, workspaceID string) (*model.CompetitiveSnapshot, error) {
	snap, ok, err := c.cache.Get(ctx, workspaceID)
	if err != nil {
		zap.L().Warn("cache: get failed, computing snapshot",
			zap.String("workspace_id", workspaceID),
			zap.String("backend", c.backend),
			zap.Error(err),
		)
	}
	if ok {
		metrics.CacheHits.WithLabelValues(c.backend).Inc()
		return snap, nil
	}
	metrics.CacheMisses.WithLabelValues(c.backend).Inc()
	return c.Refresh(ctx, workspaceID)
}

// Refresh computes a snapshot without reading the cache and stores it.
func (c *Cached) Refresh(ctx context.Context, workspaceID string) (*model.CompetitiveSnapshot, error) {
	snap, err := c.src.Snapshot(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if snap.Status != model.SnapshotOK || len(snap.Warnings) > 0 {
		return snap, nil
	}
	if err := c.cache.Set(ctx, workspaceID, snap); err != nil {
		zap.L().Warn("cache: set failed",
			zap.String("workspace_id", workspaceID),
			zap.String("backend", c.backend),
			zap.Error(err),
		)
	}
	return snap, nil
}

// Invalidate drops the workspace's cached snapshot. Called when a new
// assessment completes.
func (c *Cached) Invalidate(ctx context.Context, workspaceID string) error {
	metrics.CacheInvalidations.WithLabelValues(c.backend).Inc()
	return c.cache.Invalidate(ctx, workspaceID)
}
