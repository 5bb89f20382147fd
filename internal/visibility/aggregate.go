package visibility

import "github.com/splitlabs/max-visibility/internal/model"

// AggregateCompetitors collapses per-run competitor records into one entry
// per exact competitor name. Mention rates and scores are summed, not
// averaged. LatestScore and LatestRank come from the highest-scoring record;
// on equal scores the earliest record in input order wins. Domain is taken
// from the first record that has one. Output follows first appearance of
// each name in the input.
func AggregateCompetitors(records []model.CompetitorRecord) []model.AggregatedCompetitor {
	out := make([]model.AggregatedCompetitor, 0)
	index := make(map[string]int)
	best := make(map[string]float64)

	for _, rec := range records {
		rate := nonNegative(rec.PerRunMentionRate)

		i, ok := index[rec.Name]
		if !ok {
			index[rec.Name] = len(out)
			best[rec.Name] = rec.AIVisibilityScore
			out = append(out, model.AggregatedCompetitor{
				Name:                   rec.Name,
				Domain:                 rec.Domain,
				CumulativeMentionScore: rate,
				TotalScore:             rec.AIVisibilityScore,
				AssessmentCount:        1,
				LatestScore:            rec.AIVisibilityScore,
				LatestRank:             copyRank(rec.RankPosition),
			})
			continue
		}

		agg := &out[i]
		agg.CumulativeMentionScore += rate
		agg.TotalScore += rec.AIVisibilityScore
		agg.AssessmentCount++
		if agg.Domain == "" && rec.Domain != "" {
			agg.Domain = rec.Domain
		}
		if rec.AIVisibilityScore > best[rec.Name] {
			best[rec.Name] = rec.AIVisibilityScore
			agg.LatestScore = rec.AIVisibilityScore
			agg.LatestRank = copyRank(rec.RankPosition)
		}
	}
	return out
}

func copyRank(r *int) *int {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
