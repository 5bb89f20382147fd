package model

import "time"

// SnapshotStatus distinguishes a populated snapshot from the defined empty
// states. Empty states are not errors.
type SnapshotStatus string

const (
	SnapshotOK           SnapshotStatus = "ok"
	SnapshotNoDomain     SnapshotStatus = "no_domain"
	SnapshotNoCompany    SnapshotStatus = "no_company"
	SnapshotNoAssessment SnapshotStatus = "no_assessment"
)

// AggregatedCompetitor collapses every per-run record sharing a name.
type AggregatedCompetitor struct {
	Name                   string  `json:"name"`
	Domain                 string  `json:"domain,omitempty"`
	CumulativeMentionScore float64 `json:"cumulative_mention_score"`
	TotalScore             float64 `json:"total_score"`
	AssessmentCount        int     `json:"assessment_count"`
	LatestScore            float64 `json:"latest_score"`
	LatestRank             *int    `json:"latest_rank,omitempty"`
}

// RankedParticipant is the subject or a competitor placed in the ranking.
type RankedParticipant struct {
	Name                   string  `json:"name"`
	Domain                 string  `json:"domain,omitempty"`
	IsSubject              bool    `json:"is_user_company"`
	CumulativeMentionScore float64 `json:"cumulative_mention_score"`
	Rank                   int     `json:"rank"`
	AssessmentCount        int     `json:"assessment_count"`
	LatestScore            float64 `json:"latest_score"`
}

// MentionRecord is the uniform mention shape produced from either citation
// rows or mentioned responses.
type MentionRecord struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Snippet      string    `json:"snippet"`
	MatchType    string    `json:"match_type"`
	Favicon      *string   `json:"favicon"`
	MentionQuote string    `json:"mention_quote"`
	Question     string    `json:"question"`
	CreatedAt    time.Time `json:"created_at"`
}

// Match types for MentionRecord.
const (
	MatchDirect   = "direct"
	MatchIndirect = "indirect"
)

// ChartPoint is one point of the visibility trend chart.
type ChartPoint struct {
	DateLabel       string    `json:"date"`
	Score           float64   `json:"score"`
	FullTimestamp   time.Time `json:"fullDate"`
	IsCurrentPeriod bool      `json:"isCurrentPeriod"`
	TimeLabel       string    `json:"timeLabel,omitempty"`
	RunID           string    `json:"runId,omitempty"`
}

// TopicGapEstimate is a heuristic per-topic mention estimate. It is scaled
// from the overall mention rate, not classified per question.
type TopicGapEstimate struct {
	Topic             string  `json:"topic"`
	EstimatedRate     float64 `json:"estimated_rate"`
	MentionPercentage float64 `json:"mention_percentage"`
	EstimatedMentions int     `json:"estimated_mentions"`
	IsGap             bool    `json:"is_gap"`
	Heuristic         bool    `json:"heuristic"`
}

// ScoreSection summarises the latest completed run.
type ScoreSection struct {
	OverallScore float64 `json:"overall_score"`
	TrendPeriod  string  `json:"trend_period"`
}

// CitationSection holds the normalized mention feed.
type CitationSection struct {
	DirectCount    int             `json:"direct_count"`
	IndirectCount  int             `json:"indirect_count"`
	TotalCount     int             `json:"total_count"`
	AllMentions    []MentionRecord `json:"all_mentions"`
	RecentMentions []MentionRecord `json:"recent_mentions"`
}

// CompetitiveSection holds the ranking and market figures.
type CompetitiveSection struct {
	CurrentRank         int                 `json:"current_rank"`
	TotalCompetitors    int                 `json:"total_competitors"`
	Competitors         []RankedParticipant `json:"competitors"`
	Top10Competitors    []RankedParticipant `json:"top10_competitors"`
	Percentile          int                 `json:"percentile"`
	ShareOfVoice        float64             `json:"share_of_voice"`
	TotalMarketMentions float64             `json:"total_market_mentions"`
}

// CumulativeData reports the cross-run totals behind the competitive section.
type CumulativeData struct {
	TotalAssessments       int     `json:"total_assessments"`
	UserCumulativeMentions float64 `json:"user_cumulative_mentions"`
	TotalMarketMentions    float64 `json:"total_market_mentions"`
	CumulativeShareOfVoice float64 `json:"cumulative_share_of_voice"`
}

// CompetitiveSnapshot is the assembled visibility view for a workspace.
type CompetitiveSnapshot struct {
	WorkspaceID    string             `json:"workspace_id"`
	Status         SnapshotStatus     `json:"status"`
	Message        string             `json:"message,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
	GeneratedAt    time.Time          `json:"generated_at"`
	Score          ScoreSection       `json:"score"`
	Citations      CitationSection    `json:"citations"`
	Competitive    CompetitiveSection `json:"competitive"`
	Topics         []TopicGapEstimate `json:"topics"`
	ChartData      []ChartPoint       `json:"chartData"`
	CumulativeData CumulativeData     `json:"cumulative_data"`
}

// EmptySnapshot returns a snapshot in the given state with every list
// non-nil so that consumers never see JSON nulls.
func EmptySnapshot(workspaceID string, status SnapshotStatus, message string, now time.Time) *CompetitiveSnapshot {
	return &CompetitiveSnapshot{
		WorkspaceID: workspaceID,
		Status:      status,
		Message:     message,
		GeneratedAt: now,
		Score:       ScoreSection{TrendPeriod: "30d"},
		Citations: CitationSection{
			AllMentions:    []MentionRecord{},
			RecentMentions: []MentionRecord{},
		},
		Competitive: CompetitiveSection{
			Competitors:      []RankedParticipant{},
			Top10Competitors: []RankedParticipant{},
		},
		Topics:    []TopicGapEstimate{},
		ChartData: []ChartPoint{},
	}
}
