package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitlabs/max-visibility/internal/fixture"
	"github.com/splitlabs/max-visibility/internal/model"
	"github.com/splitlabs/max-visibility/internal/store"
)

const acmeFixture = "../internal/fixture/testdata/acme.yaml"

func TestImportThenSnapshot(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, runImport(ctx, c, acmeFixture, &out))

	var summary fixture.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 2, summary.Runs)
	assert.Positive(t, summary.Competitors)

	out.Reset()
	require.NoError(t, runSnapshot(ctx, c, "ws-acme", formatJSON, &out))

	var snap model.CompetitiveSnapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, model.SnapshotOK, snap.Status)
	assert.Equal(t, 2, snap.Competitive.CurrentRank)
	assert.Equal(t, 3, snap.Competitive.TotalCompetitors)
	assert.InDelta(t, 1.9, snap.CumulativeData.TotalMarketMentions, 1e-9)
	assert.Equal(t, 2, snap.CumulativeData.TotalAssessments)
}

func TestImport_Idempotent(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	require.NoError(t, runImport(ctx, c, acmeFixture, &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, runImport(ctx, c, acmeFixture, &out))
	var summary fixture.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, fixture.Summary{Runs: 2}, summary)
}

func TestImport_MissingFile(t *testing.T) {
	err := runImport(context.Background(), testConfig(t), "does-not-exist.yaml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSnapshot_TableAndEmptyState(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, runSnapshot(ctx, c, "ws-unknown", formatTable, &out))
	assert.Contains(t, out.String(), "ws-unknown")
	assert.NotContains(t, out.String(), "RANK")

	require.NoError(t, runImport(ctx, c, acmeFixture, &bytes.Buffer{}))
	out.Reset()
	require.NoError(t, runSnapshot(ctx, c, "ws-acme", formatTable, &out))
	assert.Contains(t, out.String(), "Rank:       2 of 3")
	assert.Contains(t, out.String(), "Acme *")
	assert.Contains(t, out.String(), "Bigco")
}

func TestSnapshot_BadFormat(t *testing.T) {
	err := runSnapshot(context.Background(), testConfig(t), "ws-acme", "yaml", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	require.NoError(t, runImport(ctx, c, acmeFixture, &bytes.Buffer{}))

	var out, errOut bytes.Buffer
	require.NoError(t, listRuns(ctx, c, "ws-acme", store.RunFilter{Status: model.RunStatusCompleted}, &out, &errOut))
	assert.Contains(t, out.String(), "run-1")
	assert.Contains(t, out.String(), "run-2")
	assert.Empty(t, errOut.String())

	out.Reset()
	require.NoError(t, listRuns(ctx, c, "ws-acme", store.RunFilter{Status: model.RunStatusFailed}, &out, &errOut))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "No runs found.")

	err := listRuns(ctx, c, "ws-acme", store.RunFilter{Status: "done"}, &out, &errOut)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	require.NoError(t, runImport(ctx, c, acmeFixture, &bytes.Buffer{}))

	path := filepath.Join(t.TempDir(), "acme.xlsx")
	require.NoError(t, runExport(ctx, c, "ws-acme", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.AssessmentRun{
		{ID: "run-a", Status: model.RunStatusCompleted, TotalScore: 62, PerRunMentionRate: 0.4, CreatedAt: now},
		{ID: "run-b", Status: model.RunStatusFailed, CreatedAt: now.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "MENTION_RATE")
	assert.Contains(t, output, "run-a")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "62.0")
	assert.Contains(t, output, "0.40")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "2026-03-15 10:30")
}

func TestFormatSnapshotTable_GroupsNumbers(t *testing.T) {
	snap := model.EmptySnapshot("ws-1", model.SnapshotOK, "", time.Time{})
	snap.Competitive.CurrentRank = 1
	snap.Competitive.TotalCompetitors = 2
	snap.Competitive.Top10Competitors = []model.RankedParticipant{
		{Name: "Me", IsSubject: true, CumulativeMentionScore: 1234.5, Rank: 1, AssessmentCount: 3},
		{Name: "Them", CumulativeMentionScore: 2, Rank: 2, AssessmentCount: 1},
	}
	snap.Warnings = []string{"citations unavailable"}

	var buf bytes.Buffer
	formatSnapshotTable(&buf, snap)

	output := buf.String()
	assert.Contains(t, output, "1,234.50")
	assert.Contains(t, output, "Me *")
	assert.Contains(t, output, "Warning:    citations unavailable")
}
