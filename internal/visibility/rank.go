package visibility

import (
	"math"
	"sort"

	"github.com/splitlabs/max-visibility/internal/model"
)

// DefaultTopN is the size of the display leaderboard.
const DefaultTopN = 10

// Ranking is the ordered leaderboard plus the subject's position in it.
type Ranking struct {
	Participants []model.RankedParticipant // full list, rank order
	Top          []model.RankedParticipant // Smart Top-N display list
	SubjectRank  int
	Total        int // participants including the subject
	Percentile   int
}

// Rank orders the subject and the aggregated competitors by cumulative
// mention score, highest first, and assigns ranks 1..N with no sharing.
// Equal scores keep the subject ahead of competitors and order competitors
// by name.
//
// The Top list holds the first topN participants when the subject is among
// them; otherwise the first topN-1 followed by the subject, whose Rank still
// reports its true position.
func Rank(subject model.Company, userScore float64, competitors []model.AggregatedCompetitor, topN int) Ranking {
	if topN < 1 {
		topN = DefaultTopN
	}

	all := make([]model.RankedParticipant, 0, len(competitors)+1)
	all = append(all, model.RankedParticipant{
		Name:                   subject.Name,
		Domain:                 subject.Domain,
		IsSubject:              true,
		CumulativeMentionScore: nonNegative(userScore),
	})
	for _, c := range competitors {
		all = append(all, model.RankedParticipant{
			Name:                   c.Name,
			Domain:                 c.Domain,
			CumulativeMentionScore: nonNegative(c.CumulativeMentionScore),
			AssessmentCount:        c.AssessmentCount,
			LatestScore:            c.LatestScore,
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.CumulativeMentionScore != b.CumulativeMentionScore {
			return a.CumulativeMentionScore > b.CumulativeMentionScore
		}
		if a.IsSubject != b.IsSubject {
			return a.IsSubject
		}
		return a.Name < b.Name
	})

	r := Ranking{Participants: all, Total: len(all)}
	for i := range all {
		all[i].Rank = i + 1
		if all[i].IsSubject {
			r.SubjectRank = i + 1
		}
	}

	r.Top = smartTop(all, r.SubjectRank, topN)
	r.Percentile = percentile(r.SubjectRank, r.Total)
	return r
}

func smartTop(ranked []model.RankedParticipant, subjectRank, topN int) []model.RankedParticipant {
	if subjectRank <= topN {
		n := min(topN, len(ranked))
		return append([]model.RankedParticipant(nil), ranked[:n]...)
	}
	top := make([]model.RankedParticipant, 0, topN)
	top = append(top, ranked[:topN-1]...)
	return append(top, ranked[subjectRank-1])
}

// percentile maps rank 1 of N to 100 and rank N of N to 100/N.
func percentile(rank, total int) int {
	if rank < 1 || total < 1 {
		return 0
	}
	return int(math.Round(float64(total-rank+1) / float64(total) * 100))
}
