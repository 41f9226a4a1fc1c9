package scoring

import (
	"strings"
	"time"

	"github.com/unimarket/matchmaker/internal/catalog"
	"github.com/unimarket/matchmaker/internal/sellers"
)

// Params holds the scoring constants. The literal values are heuristics kept
// for behavioral compatibility with the original ranking; treat them as
// tunable, not principled.
type Params struct {
	ExactPairScore       float64
	ContainmentScore     float64
	WordEqualityScore    float64
	WordContainmentScore float64

	MinContainRunes     int
	MinWordRunes        int
	MinWordContainRunes int

	NeutralRating   float64
	RatingWeight    float64
	VolumeBonus     float64
	VolumeThreshold int

	RecencyWindow time.Duration
	RecencyFloor  float64
}

func DefaultParams() Params {
	return Params{
		ExactPairScore:       100,
		ContainmentScore:     50,
		WordEqualityScore:    20,
		WordContainmentScore: 10,

		MinContainRunes:     3,
		MinWordRunes:        3,
		MinWordContainRunes: 4,

		NeutralRating:   3,
		RatingWeight:    0.1,
		VolumeBonus:     0.2,
		VolumeThreshold: 5,

		RecencyWindow: 24 * time.Hour,
		RecencyFloor:  0.5,
	}
}

// Candidate is the ephemeral result unit produced for one ranking call. Only
// Final induces the ordering; the intermediate values are kept for audit.
type Candidate struct {
	Seller     *sellers.Seller
	Matched    []string
	RawOverlap float64
	Normalized float64
	Final      float64
}

// Score computes the relevance score of one seller for the given target
// categories with the default parameters. The value has no absolute scale; it
// exists to induce a total order among eligible sellers for one call.
func Score(sellerCats, targetCats []string, avgRating float64, ratingCount int, lastMatchedAt *time.Time, now time.Time) float64 {
	return DefaultParams().Score(sellerCats, targetCats, avgRating, ratingCount, lastMatchedAt, now)
}

// Score computes the relevance score with explicit parameters.
func (p Params) Score(sellerCats, targetCats []string, avgRating float64, ratingCount int, lastMatchedAt *time.Time, now time.Time) float64 {
	raw := p.RawOverlap(sellerCats, targetCats)

	divisor := len(sellerCats)
	if divisor < 1 {
		divisor = 1
	}
	score := raw / float64(divisor)

	if ratingCount > 0 {
		score *= 1 + (avgRating-p.NeutralRating)*p.RatingWeight
	}
	if ratingCount >= p.VolumeThreshold {
		score += p.VolumeBonus
	}

	return score * p.RecencyFactor(lastMatchedAt, now)
}

// RawOverlap sums the category overlap score across every (target, seller
// category) pair, before normalization.
func (p Params) RawOverlap(sellerCats, targetCats []string) float64 {
	var total float64
	for _, target := range targetCats {
		for _, sellerCat := range sellerCats {
			total += p.pairScore(target, sellerCat)
		}
	}
	return total
}

// RecencyFactor is the fairness penalty applied to recently matched sellers.
// It ranges linearly from RecencyFloor (just matched) to 1.0 (matched a full
// window ago); sellers never matched, or matched outside the window, receive
// no penalty.
func (p Params) RecencyFactor(lastMatchedAt *time.Time, now time.Time) float64 {
	if lastMatchedAt == nil {
		return 1.0
	}

	elapsed := now.Sub(*lastMatchedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= p.RecencyWindow {
		return 1.0
	}

	progress := float64(elapsed) / float64(p.RecencyWindow)
	return p.RecencyFloor + progress*(1.0-p.RecencyFloor)
}

func (p Params) pairScore(target, sellerCat string) float64 {
	a := catalog.Canonicalize(target)
	b := catalog.Canonicalize(sellerCat)
	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return p.ExactPairScore
	}

	if containedLen(a, b) >= p.MinContainRunes {
		return p.ContainmentScore
	}

	// Word-level rules are additive across distinct word pairs within the
	// same category pair.
	var total float64
	for _, wa := range strings.Fields(a) {
		for _, wb := range strings.Fields(b) {
			switch {
			case wa == wb && runeLen(wa) >= p.MinWordRunes:
				total += p.WordEqualityScore
			case runeLen(wa) >= p.MinWordContainRunes && runeLen(wb) >= p.MinWordContainRunes &&
				(strings.Contains(wa, wb) || strings.Contains(wb, wa)):
				total += p.WordContainmentScore
			}
		}
	}

	return total
}

// containedLen returns the rune length of the contained string when one
// contains the other, and 0 otherwise.
func containedLen(a, b string) int {
	if strings.Contains(b, a) {
		return runeLen(a)
	}
	if strings.Contains(a, b) {
		return runeLen(b)
	}
	return 0
}

func runeLen(s string) int {
	return len([]rune(s))
}
