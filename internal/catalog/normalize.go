package catalog

import "strings"

// Canonicalize produces the canonical comparison form of a category name:
// trimmed, inner whitespace collapsed to single spaces, case folded.
func Canonicalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Dedupe removes duplicate names by canonical form, keeping the first
// occurrence and its original casing. Entries that canonicalize to the empty
// string are dropped.
func Dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))

	for _, name := range names {
		canonical := Canonicalize(name)
		if canonical == "" {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		result = append(result, strings.Join(strings.Fields(name), " "))
	}

	return result
}
