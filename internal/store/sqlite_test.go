package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitlabs/max-visibility/internal/model"
	"github.com/splitlabs/max-visibility/internal/visibility"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var sqliteBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// seedWorkspace writes one workspace with two completed runs and a failed
// one, plus questions, responses, citations and competitors for each.
func seedWorkspace(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.CreateWorkspace(ctx, model.Workspace{ID: "ws-1", Name: "Acme", Domain: "acme.com"}))
	require.NoError(t, st.CreateCompany(ctx, model.Company{ID: "co-1", WorkspaceID: "ws-1", Name: "Acme", Domain: "https://www.acme.com"}))

	runs := []model.AssessmentRun{
		{ID: "r1", WorkspaceID: "ws-1", CompanyID: "co-1", Status: model.RunStatusCompleted, TotalScore: 62, PerRunMentionRate: 0.4, CreatedAt: sqliteBase},
		{ID: "r2", WorkspaceID: "ws-1", CompanyID: "co-1", Status: model.RunStatusCompleted, TotalScore: 48, PerRunMentionRate: 0.2, CreatedAt: sqliteBase.Add(24 * time.Hour)},
		{ID: "r3", WorkspaceID: "ws-1", CompanyID: "co-1", Status: model.RunStatusFailed, CreatedAt: sqliteBase.Add(25 * time.Hour)},
	}
	for _, r := range runs {
		_, err := st.CreateRun(ctx, r)
		require.NoError(t, err)
	}

	_, err := st.AddQuestions(ctx, []model.Question{
		{ID: "q1", RunID: "r1", Text: "Best CRM?", CreatedAt: sqliteBase},
		{ID: "q2", RunID: "r2", Text: "Best CRM?", CreatedAt: sqliteBase.Add(24 * time.Hour)},
		{ID: "q3", RunID: "r2", Text: "Cheapest CRM?", CreatedAt: sqliteBase.Add(24 * time.Hour)},
	})
	require.NoError(t, err)

	_, err = st.AddResponses(ctx, []model.Response{
		{ID: "resp-1", QuestionID: "q1", FullResponse: "Acme leads.", MentionDetected: true, MentionPosition: "primary", CreatedAt: sqliteBase},
		{ID: "resp-2", QuestionID: "q2", FullResponse: "Acme and Rival.", MentionDetected: true, MentionPosition: "secondary", CreatedAt: sqliteBase.Add(24 * time.Hour)},
		{ID: "resp-3", QuestionID: "q3", FullResponse: "Rival is cheap.", CreatedAt: sqliteBase.Add(24*time.Hour + time.Minute)},
	})
	require.NoError(t, err)

	_, err = st.AddCitations(ctx, []model.Citation{
		{ID: "cit-1", ResponseID: "resp-2", URL: "https://acme.com/pricing", Domain: "acme.com", Bucket: "owned", PositionInCitations: 1, CreatedAt: sqliteBase.Add(24 * time.Hour)},
		{ID: "cit-2", ResponseID: "resp-3", URL: "https://review.io/crm", Domain: "review.io", Bucket: "earned", PositionInCitations: 2, CreatedAt: sqliteBase.Add(24*time.Hour + time.Minute)},
	})
	require.NoError(t, err)

	rank := 1
	_, err = st.AddCompetitors(ctx, []model.CompetitorRecord{
		{ID: "c-1", RunID: "r1", Name: "Rival", Domain: "rival.io", PerRunMentionRate: 0.3, AIVisibilityScore: 55},
		{ID: "c-2", RunID: "r1", Name: "Other", PerRunMentionRate: 0.9, AIVisibilityScore: 80, RankPosition: &rank},
		{ID: "c-3", RunID: "r2", Name: "Rival", PerRunMentionRate: 0.1, AIVisibilityScore: 60},
	})
	require.NoError(t, err)
}

func TestSQLite_WorkspaceAndCompany(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedWorkspace(t, st)
	ctx := context.Background()

	ws, err := st.GetWorkspace(ctx, "ws-1")
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "acme.com", ws.Domain)

	missing, err := st.GetWorkspace(ctx, "ws-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	c, err := st.FindCompanyByDomain(ctx, "ws-1", "ACME.com")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "co-1", c.ID)

	none, err := st.FindCompanyByDomain(ctx, "ws-1", "rival.io")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLite_FindCompanyByDomain_PrefersOwnWorkspace(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateWorkspace(ctx, model.Workspace{ID: "ws-1", Domain: "acme.com"}))
	require.NoError(t, st.CreateWorkspace(ctx, model.Workspace{ID: "ws-2", Domain: "acme.com"}))
	// co-0 sorts first by id, so it would win without the workspace preference.
	require.NoError(t, st.CreateCompany(ctx, model.Company{ID: "co-0", WorkspaceID: "ws-2", Name: "Acme (agency)", Domain: "acme.com"}))
	require.NoError(t, st.CreateCompany(ctx, model.Company{ID: "co-1", WorkspaceID: "ws-1", Name: "Acme", Domain: "acme.com"}))

	c, err := st.FindCompanyByDomain(ctx, "ws-1", "acme.com")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "co-1", c.ID)
	assert.Equal(t, "Acme", c.Name)

	c, err = st.FindCompanyByDomain(ctx, "ws-2", "acme.com")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "co-0", c.ID)

	// A workspace without its own company still resolves by domain.
	c, err = st.FindCompanyByDomain(ctx, "ws-3", "acme.com")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "co-0", c.ID)
}

func TestSQLite_Upserts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateWorkspace(ctx, model.Workspace{ID: "ws-1", Name: "Old"}))
	require.NoError(t, st.CreateWorkspace(ctx, model.Workspace{ID: "ws-1", Name: "New", Domain: "new.com"}))

	ws, err := st.GetWorkspace(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "New", ws.Name)
	assert.Equal(t, "new.com", ws.Domain)
}

func TestSQLite_ListCompletedRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedWorkspace(t, st)

	runs, err := st.ListCompletedRuns(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r1", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
	assert.True(t, runs[0].CreatedAt.Equal(sqliteBase))
	assert.InDelta(t, 0.2, runs[1].PerRunMentionRate, 1e-9)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedWorkspace(t, st)
	ctx := context.Background()

	all, err := st.ListRuns(ctx, "ws-1", RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r3", all[0].ID, "newest first")

	failed, err := st.ListRuns(ctx, "ws-1", RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "r3", failed[0].ID)

	page, err := st.ListRuns(ctx, "ws-1", RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r2", page[0].ID)
}

func TestSQLite_Children(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedWorkspace(t, st)
	ctx := context.Background()

	qs, err := st.ListQuestions(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, []string{"q2", "q3"}, model.QuestionIDs(qs))

	resps, err := st.ListResponses(ctx, []string{"q2", "q3"})
	require.NoError(t, err)
	require.Len(t, resps, 2)
	assert.True(t, resps[0].MentionDetected)
	assert.False(t, resps[1].MentionDetected)

	cits, err := st.ListCitations(ctx, []string{"q2", "q3"})
	require.NoError(t, err)
	require.Len(t, cits, 2)
	assert.Equal(t, "cit-1", cits[0].ID)
	assert.Equal(t, "q2", cits[0].QuestionID)
	assert.Equal(t, "Best CRM?", cits[0].QuestionText)
	assert.Equal(t, "Acme and Rival.", cits[0].FullResponse)

	comps, err := st.ListCompetitors(ctx, []string{"r1", "r2"})
	require.NoError(t, err)
	require.Len(t, comps, 3)
	assert.Equal(t, []string{"c-1", "c-2", "c-3"}, []string{comps[0].ID, comps[1].ID, comps[2].ID})
	assert.Nil(t, comps[0].RankPosition)
	require.NotNil(t, comps[1].RankPosition)
	assert.Equal(t, 1, *comps[1].RankPosition)
}

func TestSQLite_EmptyIDLists(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	resps, err := st.ListResponses(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, resps)

	cits, err := st.ListCitations(ctx, []string{})
	require.NoError(t, err)
	assert.Empty(t, cits)

	comps, err := st.ListCompetitors(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, comps)
}

func TestSQLite_AddIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedWorkspace(t, st)
	ctx := context.Background()

	n, err := st.AddQuestions(ctx, []model.Question{{ID: "q1", RunID: "r1", Text: "changed"}})
	require.NoError(t, err)
	assert.Zero(t, n)

	qs, err := st.ListQuestions(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Best CRM?", qs[0].Text)
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateWorkspace(ctx, model.Workspace{ID: "ws-1"}))

	run, err := st.CreateRun(ctx, model.AssessmentRun{WorkspaceID: "ws-1"})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPending, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))
	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusCompleted))

	err = st.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed)
	assert.True(t, eris.Is(err, ErrInvalidTransition))

	err = st.UpdateRunStatus(ctx, "missing", model.RunStatusRunning)
	assert.True(t, eris.Is(err, ErrNotFound))

	runs, err := st.ListCompletedRuns(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_SnapshotEndToEnd(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedWorkspace(t, st)

	now := sqliteBase.Add(30 * time.Hour)
	svc := visibility.NewService(st, visibility.Options{Now: func() time.Time { return now }})

	snap, err := svc.Snapshot(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, model.SnapshotOK, snap.Status)
	assert.Empty(t, snap.Warnings)
	assert.InDelta(t, 0.48, snap.Score.OverallScore, 1e-9)

	// Acme 0.6, Rival 0.4, Other 0.9.
	assert.InDelta(t, 1.9, snap.CumulativeData.TotalMarketMentions, 1e-9)
	assert.InDelta(t, 0.6/1.9*100, snap.Competitive.ShareOfVoice, 1e-9)
	assert.Equal(t, 2, snap.Competitive.CurrentRank)
	assert.Equal(t, 3, snap.Competitive.TotalCompetitors)

	assert.Equal(t, 2, snap.Citations.TotalCount)
	assert.Equal(t, 1, snap.Citations.DirectCount)
	assert.Equal(t, "cit-2", snap.Citations.AllMentions[0].ID)

	assert.Len(t, snap.ChartData, 30)
}
