// Package cache stores assembled visibility snapshots per workspace.
package cache

import (
	"context"

	"github.com/splitlabs/max-visibility/internal/model"
)

// Backend names accepted by config.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendOff    = "off"
)

// SnapshotCache stores one snapshot per workspace. Get reports a miss with
// (nil, false, nil). Cached snapshots must not be mutated by callers.
type SnapshotCache interface {
	Get(ctx context.Context, workspaceID string) (*model.CompetitiveSnapshot, bool, error)
	Set(ctx context.Context, workspaceID string, snap *model.CompetitiveSnapshot) error
	Invalidate(ctx context.Context, workspaceID string) error
}

// Nop never stores anything. It backs the "off" setting.
type Nop struct{}

func (Nop) Get(context.Context, string) (*model.CompetitiveSnapshot, bool, error) {
	return nil, false, nil
}

func (Nop) Set(context.Context, string, *model.CompetitiveSnapshot) error { return nil }

func (Nop) Invalidate(context.Context, string) error { return nil }
