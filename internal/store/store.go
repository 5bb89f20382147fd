// Package store persists workspaces, assessment runs and their children, and
// serves the read side of the visibility pipeline.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/splitlabs/max-visibility/internal/model"
	"github.com/splitlabs/max-visibility/internal/visibility"
)

// ErrNotFound is returned by writes that target a missing row.
var ErrNotFound = eris.New("store: not found")

// ErrInvalidTransition is returned when a run status change breaks the run
// lifecycle.
var ErrInvalidTransition = eris.New("store: invalid run status transition")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store is the full persistence interface: the visibility read side plus
// the writes used by fixture import and the run lifecycle.
type Store interface {
	visibility.Repository

	// Tenancy
	CreateWorkspace(ctx context.Context, ws model.Workspace) error
	CreateCompany(ctx context.Context, c model.Company) error

	// Runs
	CreateRun(ctx context.Context, run model.AssessmentRun) (*model.AssessmentRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	ListRuns(ctx context.Context, workspaceID string, filter RunFilter) ([]model.AssessmentRun, error)

	// Run children. Rows with an existing ID are skipped.
	AddQuestions(ctx context.Context, questions []model.Question) (int64, error)
	AddResponses(ctx context.Context, responses []model.Response) (int64, error)
	AddCitations(ctx context.Context, citations []model.Citation) (int64, error)
	AddCompetitors(ctx context.Context, competitors []model.CompetitorRecord) (int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(f RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func checkTransition(runID string, from, to model.RunStatus) error {
	if !to.Valid() {
		return eris.Wrapf(ErrInvalidTransition, "run %s: unknown status %q", runID, to)
	}
	if !model.CanTransition(from, to) {
		return eris.Wrapf(ErrInvalidTransition, "run %s: %s -> %s", runID, from, to)
	}
	return nil
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
