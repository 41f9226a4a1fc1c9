package scoring

import (
	"math"
	"sort"
)

// RankPolicy controls the fairness tie-break of the ranker. CloseScoreRatio
// is the relative score difference under which two candidates are considered
// "close" and the fairness comparison applies.
type RankPolicy struct {
	CloseScoreRatio float64
}

func DefaultRankPolicy() RankPolicy {
	return RankPolicy{CloseScoreRatio: 0.10}
}

// comparator orders two candidates: negative means a ranks above b, positive
// means b ranks above a, zero is inconclusive.
type comparator func(a, b *Candidate) int

// Rank sorts candidates by descending desirability with the default policy
// and returns at most limit entries. It is pure: stamping last_matched_at on
// the returned sellers is the pipeline's responsibility.
func Rank(candidates []*Candidate, limit int) []*Candidate {
	return DefaultRankPolicy().Rank(candidates, limit)
}

// Rank sorts candidates with this policy's comparator chain, first non-zero
// result wins.
func (p RankPolicy) Rank(candidates []*Candidate, limit int) []*Candidate {
	chain := []comparator{
		p.compareFairness,
		compareScore,
		compareRating,
		compareSpecialist,
	}

	ranked := make([]*Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		for _, cmp := range chain {
			if c := cmp(ranked[i], ranked[j]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}

// compareFairness applies only when scores are close: a never-matched seller
// ranks strictly above a matched one, and of two matched sellers the one
// matched longer ago ranks above the more recent. Both unmatched is
// inconclusive.
func (p RankPolicy) compareFairness(a, b *Candidate) int {
	avg := (a.Final + b.Final) / 2
	if avg <= 0 {
		return 0
	}
	if math.Abs(a.Final-b.Final)/avg >= p.CloseScoreRatio {
		return 0
	}

	am := a.Seller.LastMatchedAt
	bm := b.Seller.LastMatchedAt

	switch {
	case am == nil && bm == nil:
		return 0
	case am == nil:
		return -1
	case bm == nil:
		return 1
	case am.Before(*bm):
		return -1
	case bm.Before(*am):
		return 1
	}

	return 0
}

func compareScore(a, b *Candidate) int {
	switch {
	case a.Final > b.Final:
		return -1
	case a.Final < b.Final:
		return 1
	}
	return 0
}

func compareRating(a, b *Candidate) int {
	switch {
	case a.Seller.AverageRating > b.Seller.AverageRating:
		return -1
	case a.Seller.AverageRating < b.Seller.AverageRating:
		return 1
	}
	return 0
}

// compareSpecialist prefers sellers with fewer, more focused categories.
func compareSpecialist(a, b *Candidate) int {
	switch {
	case len(a.Seller.Categories) < len(b.Seller.Categories):
		return -1
	case len(a.Seller.Categories) > len(b.Seller.Categories):
		return 1
	}
	return 0
}
