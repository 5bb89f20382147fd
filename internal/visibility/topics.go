package visibility

import (
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/splitlabs/max-visibility/internal/model"
)

// TopicCatalog is the fixed list of topics shown in the content-gap view.
var TopicCatalog = []string{
	"Product comparisons",
	"Pricing and plans",
	"Best-of recommendations",
	"Alternatives",
	"How-to guides",
	"Reviews and reputation",
	"Integrations",
	"Industry trends",
}

// gapThreshold is the mention percentage below which a topic is a gap.
const gapThreshold = 50.0

// TopicSeed derives a stable seed from a workspace ID so that the same
// workspace always gets the same topic factors.
func TopicSeed(workspaceID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(workspaceID))
	return h.Sum64()
}

// EstimateTopicGaps is a placeholder heuristic, not a topic classifier: it
// scales the overall mention rate by a seeded per-topic factor in [0.5, 1.5).
// Every estimate is marked Heuristic.
func EstimateTopicGaps(seed uint64, baseRate float64, totalQuestions int) []model.TopicGapEstimate {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perTopic := max(1, totalQuestions/len(TopicCatalog))
	base := math.Min(nonNegative(baseRate), 1)

	out := make([]model.TopicGapEstimate, 0, len(TopicCatalog))
	for _, topic := range TopicCatalog {
		factor := 0.5 + rng.Float64()
		rate := math.Min(base*factor, 1)
		pct := math.Round(rate*1000) / 10
		out = append(out, model.TopicGapEstimate{
			Topic:             topic,
			EstimatedRate:     rate,
			MentionPercentage: pct,
			EstimatedMentions: int(math.Round(rate * float64(perTopic))),
			IsGap:             pct < gapThreshold,
			Heuristic:         true,
		})
	}
	return out
}
