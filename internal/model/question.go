package model

import "time"

// MentionPositionPrimary marks a response where the subject was the primary
// recommendation.
const MentionPositionPrimary = "primary"

// BucketOwned marks a citation that points at the subject's own site.
const BucketOwned = "owned"

// Question is one prompt asked of the AI engine during a run.
type Question struct {
	ID        string    `json:"id" yaml:"id"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	Text      string    `json:"text" yaml:"text"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// QuestionIDs returns the IDs of questions in order.
func QuestionIDs(questions []Question) []string {
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return ids
}

// Response is the AI engine's answer to a question. Nullable columns are
// resolved to zero values by the store: MentionPosition, MentionSentiment
// and MentionContext are "" when absent.
type Response struct {
	ID               string    `json:"id" yaml:"id"`
	QuestionID       string    `json:"question_id" yaml:"question_id"`
	FullResponse     string    `json:"full_response" yaml:"full_response"`
	MentionDetected  bool      `json:"mention_detected" yaml:"mention_detected"`
	MentionPosition  string    `json:"mention_position,omitempty" yaml:"mention_position"`
	MentionSentiment string    `json:"mention_sentiment,omitempty" yaml:"mention_sentiment"`
	MentionContext   string    `json:"mention_context,omitempty" yaml:"mention_context"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
}

// Citation is a source URL referenced by a response.
type Citation struct {
	ID                  string    `json:"id" yaml:"id"`
	ResponseID          string    `json:"response_id" yaml:"response_id"`
	URL                 string    `json:"citation_url" yaml:"url"`
	Title               string    `json:"citation_title" yaml:"title"`
	Domain              string    `json:"citation_domain" yaml:"domain"`
	Excerpt             string    `json:"citation_excerpt" yaml:"excerpt"`
	Bucket              string    `json:"bucket" yaml:"bucket"`
	InfluenceScore      float64   `json:"influence_score" yaml:"influence_score"`
	PositionInCitations int       `json:"position_in_citations" yaml:"position"`
	RelevanceScore      float64   `json:"relevance_score" yaml:"relevance_score"`
	CreatedAt           time.Time `json:"created_at" yaml:"created_at"`
}

// CitationRow is a citation joined with its owning response and question.
type CitationRow struct {
	Citation
	QuestionID     string `json:"question_id"`
	QuestionText   string `json:"question_text"`
	FullResponse   string `json:"full_response"`
	MentionContext string `json:"mention_context"`
}
