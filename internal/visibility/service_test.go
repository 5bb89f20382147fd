package visibility

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitlabs/max-visibility/internal/metrics"
	"github.com/splitlabs/max-visibility/internal/model"
	"github.com/splitlabs/max-visibility/internal/resilience"
)

// fakeRepo is an in-memory Repository. Setting an *Err field makes the
// matching method fail.
type fakeRepo struct {
	workspace   *model.Workspace
	company     *model.Company
	runs        []model.AssessmentRun
	questions   []model.Question
	responses   []model.Response
	citations   []model.CitationRow
	competitors []model.CompetitorRecord

	workspaceErr   error
	runsErr        error
	responsesErr   error
	citationsErr   error
	competitorsErr error

	// citationsWait makes ListCitations block until its context is done.
	citationsWait bool

	competitorRunIDs []string
	companyWorkspace string
}

func (f *fakeRepo) GetWorkspace(_ context.Context, _ string) (*model.Workspace, error) {
	return f.workspace, f.workspaceErr
}

func (f *fakeRepo) FindCompanyByDomain(_ context.Context, workspaceID, _ string) (*model.Company, error) {
	f.companyWorkspace = workspaceID
	return f.company, nil
}

func (f *fakeRepo) ListCompletedRuns(_ context.Context, _ string) ([]model.AssessmentRun, error) {
	return f.runs, f.runsErr
}

func (f *fakeRepo) ListQuestions(_ context.Context, _ string) ([]model.Question, error) {
	return f.questions, nil
}

func (f *fakeRepo) ListResponses(_ context.Context, _ []string) ([]model.Response, error) {
	if f.responsesErr != nil {
		return nil, f.responsesErr
	}
	return f.responses, nil
}

func (f *fakeRepo) ListCitations(ctx context.Context, _ []string) ([]model.CitationRow, error) {
	if f.citationsWait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.citationsErr != nil {
		return nil, f.citationsErr
	}
	return f.citations, nil
}

func (f *fakeRepo) ListCompetitors(_ context.Context, runIDs []string) ([]model.CompetitorRecord, error) {
	f.competitorRunIDs = runIDs
	if f.competitorsErr != nil {
		return nil, f.competitorsErr
	}
	return f.competitors, nil
}

var svcNow = time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	return NewService(repo, Options{
		Retry: resilience.RetryConfig{MaxAttempts: 1},
		Now:   func() time.Time { return svcNow },
	})
}

func oneRunRepo() *fakeRepo {
	runAt := svcNow.Add(-2 * time.Hour)
	return &fakeRepo{
		workspace: &model.Workspace{ID: "ws-1", Name: "Subject", Domain: "subject.com"},
		company:   &model.Company{ID: "co-1", WorkspaceID: "ws-1", Name: "Subject", Domain: "subject.com"},
		runs: []model.AssessmentRun{{
			ID: "run-1", WorkspaceID: "ws-1", CompanyID: "co-1", Status: model.RunStatusCompleted,
			TotalScore: 62, PerRunMentionRate: 0.4, CreatedAt: runAt,
		}},
		questions: []model.Question{
			{ID: "q1", RunID: "run-1", Text: "Best CRM?"},
			{ID: "q2", RunID: "run-1", Text: "Cheapest CRM?"},
		},
		responses: []model.Response{
			{ID: "resp-1", QuestionID: "q1", MentionDetected: true, MentionPosition: "primary", MentionContext: "Subject is great", CreatedAt: runAt},
			{ID: "resp-2", QuestionID: "q2", MentionDetected: false, CreatedAt: runAt},
		},
		citations: []model.CitationRow{{
			Citation:     model.Citation{ID: "cit-1", ResponseID: "resp-1", URL: "https://subject.com/", Domain: "subject.com", Bucket: model.BucketOwned, CreatedAt: runAt},
			QuestionID:   "q1",
			QuestionText: "Best CRM?",
		}},
		competitors: []model.CompetitorRecord{
			{ID: "comp-1", RunID: "run-1", Name: "A", PerRunMentionRate: 0.3, AIVisibilityScore: 40},
			{ID: "comp-2", RunID: "run-1", Name: "B", PerRunMentionRate: 0.9, AIVisibilityScore: 80},
		},
	}
}

func TestSnapshot_SingleRun(t *testing.T) {
	snap, err := newTestService(oneRunRepo()).Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, model.SnapshotOK, snap.Status)
	assert.Empty(t, snap.Warnings)
	assert.InDelta(t, 0.62, snap.Score.OverallScore, 1e-9)

	c := snap.Competitive
	assert.InDelta(t, 1.6, c.TotalMarketMentions, 1e-9)
	assert.InDelta(t, 25.0, c.ShareOfVoice, 1e-9)
	assert.Equal(t, 2, c.CurrentRank)
	assert.Equal(t, 3, c.TotalCompetitors)
	assert.Len(t, c.Top10Competitors, 3)

	assert.Equal(t, 1, snap.CumulativeData.TotalAssessments)
	assert.InDelta(t, 0.4, snap.CumulativeData.UserCumulativeMentions, 1e-9)

	assert.Equal(t, 1, snap.Citations.TotalCount)
	assert.Equal(t, 1, snap.Citations.DirectCount)
	assert.Len(t, snap.Topics, len(TopicCatalog))
	require.Len(t, snap.ChartData, 1)
	assert.Equal(t, "run-1", snap.ChartData[0].RunID)
}

func TestSnapshot_CumulativeAcrossRuns(t *testing.T) {
	repo := oneRunRepo()
	repo.runs = append(repo.runs, model.AssessmentRun{
		ID: "run-2", WorkspaceID: "ws-1", Status: model.RunStatusCompleted,
		TotalScore: 48, PerRunMentionRate: 0.2, CreatedAt: svcNow.Add(-time.Hour),
	})
	repo.competitors = append(repo.competitors, model.CompetitorRecord{ID: "comp-3", RunID: "run-2", Name: "A", PerRunMentionRate: 0.1})

	snap, err := newTestService(repo).Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"run-1", "run-2"}, repo.competitorRunIDs)
	assert.Equal(t, 2, snap.CumulativeData.TotalAssessments)
	assert.InDelta(t, 0.6, snap.CumulativeData.UserCumulativeMentions, 1e-9)
	assert.InDelta(t, 1.9, snap.CumulativeData.TotalMarketMentions, 1e-9)
	assert.InDelta(t, 31.6, snap.Competitive.ShareOfVoice, 0.05)
	assert.InDelta(t, 0.48, snap.Score.OverallScore, 1e-9, "latest run drives overall score")
	assert.Len(t, snap.ChartData, 2)
}

func TestSnapshot_EmptyStates(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*fakeRepo)
		status  model.SnapshotStatus
		message string
	}{
		{"missing workspace", func(f *fakeRepo) { f.workspace = nil }, model.SnapshotNoDomain, MsgNoDomain},
		{"no domain", func(f *fakeRepo) { f.workspace.Domain = "" }, model.SnapshotNoDomain, MsgNoDomain},
		{"no company", func(f *fakeRepo) { f.company = nil }, model.SnapshotNoCompany, MsgNoCompany},
		{"no runs", func(f *fakeRepo) { f.runs = nil }, model.SnapshotNoAssessment, MsgNoAssessment},
		{"only failed runs", func(f *fakeRepo) { f.runs[0].Status = model.RunStatusFailed }, model.SnapshotNoAssessment, MsgNoAssessment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := oneRunRepo()
			tt.mutate(repo)

			snap, err := newTestService(repo).Snapshot(context.Background(), "ws-1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, snap.Status)
			assert.Equal(t, tt.message, snap.Message)
			assert.Zero(t, snap.Score.OverallScore)
			assert.Zero(t, snap.Competitive.CurrentRank)
			assert.Empty(t, snap.Competitive.Competitors)
			assert.Empty(t, snap.ChartData)
			assert.Zero(t, snap.CumulativeData.TotalAssessments)
		})
	}
}

func TestSnapshot_CitationFailureDegrades(t *testing.T) {
	repo := oneRunRepo()
	repo.citationsErr = errors.New("relation does not exist")

	snap, err := newTestService(repo).Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, []string{SectionCitations}, snap.Warnings)
	require.Len(t, snap.Citations.AllMentions, 1, "falls back to mentioned responses")
	assert.Equal(t, "resp-1", snap.Citations.AllMentions[0].ID)
	assert.Equal(t, 2, snap.Competitive.CurrentRank)
}

func TestSnapshot_CompetitorFailureDegrades(t *testing.T) {
	repo := oneRunRepo()
	repo.competitorsErr = errors.New("timeout")
	repo.citationsErr = errors.New("timeout")

	snap, err := newTestService(repo).Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, []string{SectionCitations, SectionCompetitors}, snap.Warnings)
	assert.Equal(t, 1, snap.Competitive.CurrentRank)
	assert.Equal(t, 1, snap.Competitive.TotalCompetitors)
	assert.InDelta(t, 100.0, snap.Competitive.ShareOfVoice, 1e-9)
}

func TestSnapshot_HardFailuresWrapErrRepository(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeRepo)
	}{
		{"workspace", func(f *fakeRepo) { f.workspaceErr = errors.New("conn refused") }},
		{"runs", func(f *fakeRepo) { f.runsErr = errors.New("conn refused") }},
		{"responses", func(f *fakeRepo) { f.responsesErr = errors.New("conn refused") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := oneRunRepo()
			tt.mutate(repo)

			snap, err := newTestService(repo).Snapshot(context.Background(), "ws-1")
			require.Error(t, err)
			assert.Nil(t, snap)
			assert.True(t, eris.Is(err, ErrRepository))
		})
	}
}

func TestSnapshot_HardFailureDoesNotDegradeSiblings(t *testing.T) {
	repo := oneRunRepo()
	repo.responsesErr = errors.New("conn refused")
	repo.citationsWait = true

	before := testutil.ToFloat64(metrics.DegradedSections.WithLabelValues(SectionCitations))
	snap, err := newTestService(repo).Snapshot(context.Background(), "ws-1")
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, eris.Is(err, ErrRepository))
	assert.Equal(t, before, testutil.ToFloat64(metrics.DegradedSections.WithLabelValues(SectionCitations)))
}

func TestSnapshot_DegradationCounted(t *testing.T) {
	repo := oneRunRepo()
	repo.citationsErr = errors.New("timeout")

	before := testutil.ToFloat64(metrics.DegradedSections.WithLabelValues(SectionCitations))
	snap, err := newTestService(repo).Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, []string{SectionCitations}, snap.Warnings)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DegradedSections.WithLabelValues(SectionCitations)))
}

func TestSnapshot_CompanyLookupScopedToWorkspace(t *testing.T) {
	repo := oneRunRepo()

	_, err := newTestService(repo).Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "ws-1", repo.companyWorkspace)
}

func TestSnapshot_Idempotent(t *testing.T) {
	svc := newTestService(oneRunRepo())

	first, err := svc.Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)
	second, err := svc.Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestSnapshot_ShareOfVoiceBounded(t *testing.T) {
	repo := oneRunRepo()
	repo.runs[0].PerRunMentionRate = 0
	repo.competitors = nil

	snap, err := newTestService(repo).Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Zero(t, snap.Competitive.ShareOfVoice)
	assert.Equal(t, 1, snap.Competitive.CurrentRank)
}
