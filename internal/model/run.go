package model

import "time"

// RunStatus represents the lifecycle state of an assessment run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// CanTransition reports whether a run may move from one status to another.
// Runs go pending -> running -> completed|failed. A pending run may also fail
// before it starts.
func CanTransition(from, to RunStatus) bool {
	switch from {
	case RunStatusPending:
		return to == RunStatusRunning || to == RunStatusFailed
	case RunStatusRunning:
		return to == RunStatusCompleted || to == RunStatusFailed
	}
	return false
}

// AssessmentRun is one execution of the AI-visibility question battery.
type AssessmentRun struct {
	ID          string    `json:"id" yaml:"id"`
	WorkspaceID string    `json:"workspace_id" yaml:"workspace_id"`
	CompanyID   string    `json:"company_id" yaml:"company_id"`
	Status      RunStatus `json:"status" yaml:"status"`
	TotalScore  float64   `json:"total_score" yaml:"total_score"`
	// PerRunMentionRate is the fraction of this run's questions that
	// mentioned the subject. Cross-run sums are CumulativeMentionScore.
	PerRunMentionRate float64   `json:"per_run_mention_rate" yaml:"mention_rate"`
	SentimentScore    float64   `json:"sentiment_score" yaml:"sentiment_score"`
	CitationScore     float64   `json:"citation_score" yaml:"citation_score"`
	CompetitiveScore  float64   `json:"competitive_score" yaml:"competitive_score"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"updated_at"`
}

// Completed reports whether the run participates in aggregation.
func (r AssessmentRun) Completed() bool {
	return r.Status == RunStatusCompleted
}

// LatestRun returns the most recently created run. Ties on created_at go to
// the greater ID. Returns false for an empty slice.
func LatestRun(runs []AssessmentRun) (AssessmentRun, bool) {
	if len(runs) == 0 {
		return AssessmentRun{}, false
	}
	latest := runs[0]
	for _, r := range runs[1:] {
		if r.CreatedAt.After(latest.CreatedAt) ||
			(r.CreatedAt.Equal(latest.CreatedAt) && r.ID > latest.ID) {
			latest = r
		}
	}
	return latest, true
}

// RunIDs returns the IDs of runs in order.
func RunIDs(runs []AssessmentRun) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
