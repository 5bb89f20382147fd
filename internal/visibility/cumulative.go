package visibility

import "github.com/splitlabs/max-visibility/internal/model"

// Cumulative holds the subject's cross-run totals and share of voice.
type Cumulative struct {
	TotalAssessments      int
	UserCumulativeMention float64
	TotalMarketMentions   float64
	ShareOfVoice          float64 // percent, 0..100
}

// ComputeCumulative sums the subject's per-run mention rate over completed
// runs and compares it with the aggregated competitor totals. Runs in any
// other status are skipped. Share of voice is 0 when there are no mentions
// at all.
func ComputeCumulative(runs []model.AssessmentRun, competitors []model.AggregatedCompetitor) Cumulative {
	var c Cumulative
	for _, r := range runs {
		if !r.Completed() {
			continue
		}
		c.TotalAssessments++
		c.UserCumulativeMention += nonNegative(r.PerRunMentionRate)
	}

	c.TotalMarketMentions = c.UserCumulativeMention
	for _, comp := range competitors {
		c.TotalMarketMentions += nonNegative(comp.CumulativeMentionScore)
	}

	if c.TotalMarketMentions > 0 {
		c.ShareOfVoice = c.UserCumulativeMention / c.TotalMarketMentions * 100
	}
	return c
}
