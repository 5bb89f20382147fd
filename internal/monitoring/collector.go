// Package monitoring watches assessment run health for a set of workspaces
// and posts alerts to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/splitlabs/max-visibility/internal/model"
	"github.com/splitlabs/max-visibility/internal/store"
)

// maxRunsPerWorkspace caps how much run history one check reads.
const maxRunsPerWorkspace = 1000

// WorkspaceHealth summarises one workspace's runs in the lookback window.
type WorkspaceHealth struct {
	WorkspaceID string  `json:"workspace_id"`
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	InFlight    int     `json:"in_flight"`
	FailRate    float64 `json:"fail_rate"`

	// LastCompletedAt is the newest completed run regardless of the window.
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
}

// HealthReport is a point-in-time view across the watched workspaces.
type HealthReport struct {
	Workspaces    []WorkspaceHealth `json:"workspaces"`
	LookbackHours int               `json:"lookback_hours"`
	CollectedAt   time.Time         `json:"collected_at"`
}

// RunLister is the store surface the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, workspaceID string, filter store.RunFilter) ([]model.AssessmentRun, error)
}

// Collector gathers run health from the store.
type Collector struct {
	runs       RunLister
	workspaces []string
	now        func() time.Time
}

// NewCollector creates a collector for the given workspaces.
func NewCollector(runs RunLister, workspaces []string) *Collector {
	return &Collector{
		runs:       runs,
		workspaces: workspaces,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Collect gathers a health report over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*HealthReport, error) {
	now := c.now()
	report := &HealthReport{
		Workspaces:    make([]WorkspaceHealth, 0, len(c.workspaces)),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	for _, ws := range c.workspaces {
		// Newest first.
		runs, err := c.runs.ListRuns(ctx, ws, store.RunFilter{Limit: maxRunsPerWorkspace})
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: list runs for %s", ws)
		}
		report.Workspaces = append(report.Workspaces, summarize(ws, runs, cutoff))
	}
	return report, nil
}

func summarize(workspaceID string, runs []model.AssessmentRun, cutoff time.Time) WorkspaceHealth {
	h := WorkspaceHealth{WorkspaceID: workspaceID}

	for _, r := range runs {
		if r.Completed() && (h.LastCompletedAt == nil || r.CreatedAt.After(*h.LastCompletedAt)) {
			at := r.CreatedAt
			h.LastCompletedAt = &at
		}
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		h.Total++
		switch r.Status {
		case model.RunStatusCompleted:
			h.Completed++
		case model.RunStatusFailed:
			h.Failed++
		default:
			h.InFlight++
		}
	}

	if finished := h.Completed + h.Failed; finished > 0 {
		h.FailRate = float64(h.Failed) / float64(finished)
	}
	return h
}
