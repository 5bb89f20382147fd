package visibility

import (
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/splitlabs/max-visibility/internal/model"
)

const (
	quoteLimit      = 150
	recentMentions  = 5
	responseSource  = "AI Response"
	faviconEndpoint = "https://www.google.com/s2/favicons"
)

// NormalizeCitations converts joined citation rows into mention records.
// Citations in the "owned" bucket are direct matches.
func NormalizeCitations(rows []model.CitationRow) []model.MentionRecord {
	out := make([]model.MentionRecord, 0, len(rows))
	for _, row := range rows {
		snippet := row.Excerpt
		if snippet == "" {
			snippet = "Referenced source: " + row.URL
		}
		title := row.Title
		if title == "" {
			title = row.QuestionText
		}
		source := row.Domain
		if source == "" {
			source = responseSource
		}
		out = append(out, model.MentionRecord{
			ID:           row.ID,
			Source:       source,
			Title:        title,
			URL:          row.URL,
			Snippet:      snippet,
			MatchType:    matchType(row.Bucket == model.BucketOwned),
			Favicon:      faviconURL(row.Domain),
			MentionQuote: mentionQuote(row.MentionContext, row.FullResponse),
			Question:     row.QuestionText,
			CreatedAt:    row.CreatedAt,
		})
	}
	return out
}

// MentionsFromResponses is the fallback used when a run has no citation
// rows: every response that mentioned the subject becomes one record, direct
// when the subject was the primary recommendation. questionText maps
// question IDs to their text.
func MentionsFromResponses(responses []model.Response, questionText map[string]string) []model.MentionRecord {
	out := make([]model.MentionRecord, 0, len(responses))
	for _, r := range responses {
		if !r.MentionDetected {
			continue
		}
		quote := mentionQuote(r.MentionContext, r.FullResponse)
		q := questionText[r.QuestionID]
		out = append(out, model.MentionRecord{
			ID:           r.ID,
			Source:       responseSource,
			Title:        q,
			Snippet:      quote,
			MatchType:    matchType(r.MentionPosition == model.MentionPositionPrimary),
			MentionQuote: quote,
			Question:     q,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}

// BuildMentionFeed orders mentions newest first and fills the citation
// section counts. It uses citation rows when there are any and falls back
// to mentioned responses otherwise.
func BuildMentionFeed(rows []model.CitationRow, responses []model.Response, questions []model.Question) model.CitationSection {
	var records []model.MentionRecord
	if len(rows) > 0 {
		records = NormalizeCitations(rows)
	} else {
		text := make(map[string]string, len(questions))
		for _, q := range questions {
			text[q.ID] = q.Text
		}
		records = MentionsFromResponses(responses, text)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})

	sec := model.CitationSection{
		AllMentions: records,
		TotalCount:  len(records),
	}
	for _, r := range records {
		if r.MatchType == model.MatchDirect {
			sec.DirectCount++
		} else {
			sec.IndirectCount++
		}
	}
	n := min(recentMentions, len(records))
	sec.RecentMentions = append([]model.MentionRecord{}, records[:n]...)
	return sec
}

func matchType(direct bool) string {
	if direct {
		return model.MatchDirect
	}
	return model.MatchIndirect
}

func faviconURL(domain string) *string {
	if domain == "" {
		return nil
	}
	v := url.Values{}
	v.Set("domain", domain)
	v.Set("sz", "64")
	s := faviconEndpoint + "?" + v.Encode()
	return &s
}

// mentionQuote prefers the extracted mention context and otherwise clips
// the full response to quoteLimit runes.
func mentionQuote(context, full string) string {
	if context != "" {
		return context
	}
	full = strings.TrimSpace(full)
	if utf8.RuneCountInString(full) <= quoteLimit {
		return full
	}
	runes := []rune(full)
	return strings.TrimSpace(string(runes[:quoteLimit])) + "..."
}
