package matching

import (
	"strings"

	"github.com/unimarket/matchmaker/internal/catalog"
)

const (
	// minContainRunes is the minimum length of a string for containment to
	// count as a match. Shorter fragments match too aggressively.
	minContainRunes = 3
	// minWordRunes is the minimum word length for whole-word equality.
	minWordRunes = 3
	// minWordContainRunes is the minimum length of both words for word-level
	// containment.
	minWordContainRunes = 4
)

// Lexical reconciles generated labels against catalog entries using
// deterministic string rules: exact equality, containment, and word overlap,
// all case-insensitive. Each catalog entry appears at most once in the output
// regardless of how many rules fired, keeping its catalog casing.
func Lexical(generated, catalogNames []string) []string {
	matched := make([]string, 0)
	seen := make(map[string]struct{})

	for _, entry := range catalogNames {
		canonical := catalog.Canonicalize(entry)
		if canonical == "" {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}

		for _, label := range generated {
			if PairMatches(label, entry) {
				matched = append(matched, entry)
				seen[canonical] = struct{}{}
				break
			}
		}
	}

	return matched
}

// PairMatches reports whether a single generated label lexically matches a
// single catalog entry.
func PairMatches(label, entry string) bool {
	a := catalog.Canonicalize(label)
	b := catalog.Canonicalize(entry)
	if a == "" || b == "" {
		return false
	}

	if a == b {
		return true
	}

	if containsEitherWay(a, b, minContainRunes) {
		return true
	}

	for _, wa := range strings.Fields(a) {
		for _, wb := range strings.Fields(b) {
			if wa == wb && runeLen(wa) >= minWordRunes {
				return true
			}
			if runeLen(wa) >= minWordContainRunes && runeLen(wb) >= minWordContainRunes &&
				(strings.Contains(wa, wb) || strings.Contains(wb, wa)) {
				return true
			}
		}
	}

	return false
}

// containsEitherWay reports containment in either direction, provided the
// contained string is at least minRunes long.
func containsEitherWay(a, b string, minRunes int) bool {
	if runeLen(a) >= minRunes && strings.Contains(b, a) {
		return true
	}
	if runeLen(b) >= minRunes && strings.Contains(a, b) {
		return true
	}
	return false
}

func runeLen(s string) int {
	return len([]rune(s))
}
