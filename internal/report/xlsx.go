// Package report exports visibility snapshots to spreadsheets.
package report

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/splitlabs/max-visibility/internal/model"
)

// Sheet names written by WriteLeaderboard, in order.
const (
	SheetSummary     = "Summary"
	SheetLeaderboard = "Leaderboard"
	SheetTrend       = "Trend"
	SheetMentions    = "Mentions"
	SheetTopics      = "Topics"
)

var (
	leaderboardHeader = []string{"Rank", "Name", "Domain", "Cumulative Mentions", "Assessments", "Latest Score", "You"}
	trendHeader       = []string{"Date", "Time", "Timestamp", "Score", "Run"}
	mentionsHeader    = []string{"Created", "Match", "Source", "Title", "URL", "Quote", "Question"}
	topicsHeader      = []string{"Topic", "Mention %", "Estimated Mentions", "Gap", "Heuristic"}
)

// WriteLeaderboard saves the snapshot as an XLSX workbook at path.
func WriteLeaderboard(path string, snap *model.CompetitiveSnapshot) error {
	f, err := Build(snap)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

// Build renders the snapshot into an in-memory workbook.
func Build(snap *model.CompetitiveSnapshot) (*xlsx.File, error) {
	if snap == nil {
		return nil, eris.New("report: nil snapshot")
	}
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, eris.Wrap(err, "report: add summary sheet")
	}
	addKV(summary, "Workspace", snap.WorkspaceID)
	addKV(summary, "Status", string(snap.Status))
	if snap.Message != "" {
		addKV(summary, "Message", snap.Message)
	}
	addKV(summary, "Generated", snap.GeneratedAt.UTC().Format(time.RFC3339))
	addKVFloat(summary, "Overall Score", snap.Score.OverallScore)
	addKVInt(summary, "Current Rank", snap.Competitive.CurrentRank)
	addKVInt(summary, "Participants", snap.Competitive.TotalCompetitors)
	addKVInt(summary, "Percentile", snap.Competitive.Percentile)
	addKVFloat(summary, "Share of Voice %", snap.Competitive.ShareOfVoice)
	addKVFloat(summary, "Market Mentions", snap.Competitive.TotalMarketMentions)
	addKVInt(summary, "Assessments", snap.CumulativeData.TotalAssessments)
	addKVInt(summary, "Direct Mentions", snap.Citations.DirectCount)
	addKVInt(summary, "Indirect Mentions", snap.Citations.IndirectCount)
	for _, w := range snap.Warnings {
		addKV(summary, "Degraded", w)
	}

	board, err := f.AddSheet(SheetLeaderboard)
	if err != nil {
		return nil, eris.Wrap(err, "report: add leaderboard sheet")
	}
	addHeader(board, leaderboardHeader)
	for _, p := range snap.Competitive.Competitors {
		row := board.AddRow()
		row.AddCell().SetInt(p.Rank)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.Domain)
		row.AddCell().SetFloat(p.CumulativeMentionScore)
		row.AddCell().SetInt(p.AssessmentCount)
		row.AddCell().SetFloat(p.LatestScore)
		row.AddCell().SetBool(p.IsSubject)
	}

	trend, err := f.AddSheet(SheetTrend)
	if err != nil {
		return nil, eris.Wrap(err, "report: add trend sheet")
	}
	addHeader(trend, trendHeader)
	for _, p := range snap.ChartData {
		row := trend.AddRow()
		row.AddCell().SetString(p.DateLabel)
		row.AddCell().SetString(p.TimeLabel)
		row.AddCell().SetDateTime(p.FullTimestamp)
		row.AddCell().SetFloat(p.Score)
		row.AddCell().SetString(p.RunID)
	}

	mentions, err := f.AddSheet(SheetMentions)
	if err != nil {
		return nil, eris.Wrap(err, "report: add mentions sheet")
	}
	addHeader(mentions, mentionsHeader)
	for _, m := range snap.Citations.AllMentions {
		row := mentions.AddRow()
		row.AddCell().SetDateTime(m.CreatedAt)
		row.AddCell().SetString(m.MatchType)
		row.AddCell().SetString(m.Source)
		row.AddCell().SetString(m.Title)
		row.AddCell().SetString(m.URL)
		row.AddCell().SetString(m.MentionQuote)
		row.AddCell().SetString(m.Question)
	}

	topics, err := f.AddSheet(SheetTopics)
	if err != nil {
		return nil, eris.Wrap(err, "report: add topics sheet")
	}
	addHeader(topics, topicsHeader)
	for _, g := range snap.Topics {
		row := topics.AddRow()
		row.AddCell().SetString(g.Topic)
		row.AddCell().SetFloat(g.MentionPercentage)
		row.AddCell().SetInt(g.EstimatedMentions)
		row.AddCell().SetBool(g.IsGap)
		row.AddCell().SetBool(g.Heuristic)
	}

	return f, nil
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	for _, c := range cols {
		cell := row.AddCell()
		cell.SetString(c)
		style := xlsx.NewStyle()
		style.Font.Bold = true
		cell.SetStyle(style)
	}
}

func addKV(sheet *xlsx.Sheet, key, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetString(value)
}

func addKVInt(sheet *xlsx.Sheet, key string, value int) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetInt(value)
}

func addKVFloat(sheet *xlsx.Sheet, key string, value float64) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetFloat(value)
}
