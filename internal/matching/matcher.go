package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/unimarket/matchmaker/internal/ai"
	"github.com/unimarket/matchmaker/internal/catalog"
)

// Matcher combines the deterministic lexical pass with an AI-assisted
// semantic pass. Lexical matches always take precedence; semantic results
// only add entries the lexical pass missed.
type Matcher struct {
	suggester ai.Suggester
	logger    *zap.Logger
}

func New(suggester ai.Suggester, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{suggester: suggester, logger: logger}
}

// Match returns the catalog entries matching the generated labels. The
// lexical pass is pure and never fails; the semantic pass contributes nothing
// when the suggester is missing, either list is empty, or the call fails.
// Semantic results not literally present in the catalog are discarded.
func (m *Matcher) Match(ctx context.Context, generated, catalogNames []string) []string {
	matched := Lexical(generated, catalogNames)

	if m.suggester == nil || len(generated) == 0 || len(catalogNames) == 0 {
		return matched
	}

	semantic := m.suggester.RelatedCategories(ctx, generated, catalogNames)
	if len(semantic) == 0 {
		return matched
	}

	byCanonical := make(map[string]string, len(catalogNames))
	for _, entry := range catalogNames {
		byCanonical[catalog.Canonicalize(entry)] = entry
	}

	seen := make(map[string]struct{}, len(matched))
	for _, entry := range matched {
		seen[catalog.Canonicalize(entry)] = struct{}{}
	}

	for _, suggestion := range semantic {
		canonical := catalog.Canonicalize(suggestion)

		entry, inCatalog := byCanonical[canonical]
		if !inCatalog {
			// Hallucinated entry, silently dropped.
			m.logger.Debug("semantic suggestion outside catalog",
				zap.String("suggestion", suggestion),
			)
			continue
		}

		if _, dup := seen[canonical]; dup {
			continue
		}

		seen[canonical] = struct{}{}
		matched = append(matched, entry)
	}

	return matched
}
