package model

// CompetitorRecord is a competitor detected during one run. Name is free text
// and is the only identity across runs.
type CompetitorRecord struct {
	ID                string  `json:"id" yaml:"id"`
	RunID             string  `json:"run_id" yaml:"run_id"`
	Name              string  `json:"competitor_name" yaml:"name"`
	Domain            string  `json:"competitor_domain,omitempty" yaml:"domain"`
	AIVisibilityScore float64 `json:"ai_visibility_score" yaml:"ai_visibility_score"`
	PerRunMentionRate float64 `json:"per_run_mention_rate" yaml:"mention_rate"`
	RankPosition      *int    `json:"rank_position,omitempty" yaml:"rank_position"`
}
