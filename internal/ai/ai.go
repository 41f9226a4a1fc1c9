package ai

import "context"

// Generator is a single-shot text-generation capability. Implementations may
// fail or time out; callers own prompt construction and response parsing.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Suggester turns free text into candidate category labels and finds catalog
// entries conceptually related to already generated labels.
type Suggester interface {
	// SuggestCategories infers up to a handful of short category labels from
	// the given text. ok is false when the capability failed or returned an
	// unparsable response; the caller must treat that as "no categories
	// inferred", never as a fatal error.
	SuggestCategories(ctx context.Context, freeText string) (categories []string, ok bool)

	// RelatedCategories returns catalog entries that are conceptually, not
	// lexically, related to the generated labels. Entries outside the
	// supplied catalog are already filtered out. A failed call returns nil.
	RelatedCategories(ctx context.Context, generated, catalog []string) []string
}
