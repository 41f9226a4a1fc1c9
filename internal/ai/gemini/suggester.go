package gemini

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/unimarket/matchmaker/internal/utils"
)

//go:embed categories_prompt.md
var categoriesPromptTemplate string

//go:embed semantic_prompt.md
var semanticPromptTemplate string

const (
	maxGeneratedCategories = 5
	maxSemanticMatches     = 3
	defaultMaxLogLength    = 200
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Suggester turns free text into category labels and finds conceptually
// related catalog entries. Every failure path degrades to an empty result;
// the response is never trusted to be schema compliant.
type Suggester struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewSuggester(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Suggester {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Suggester{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// SuggestCategories infers up to five short, title-cased category labels from
// the given text. ok is false on any generation or parse failure.
func (s *Suggester) SuggestCategories(ctx context.Context, freeText string) ([]string, bool) {
	freeText = strings.TrimSpace(freeText)
	if freeText == "" {
		return nil, false
	}

	prompt := strings.ReplaceAll(categoriesPromptTemplate, "{{REQUEST_TEXT}}", freeText)

	s.logger.Debug("gemini category generation request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		s.logger.Warn("category generation failed", zap.Error(err))
		return nil, false
	}

	s.logger.Debug("gemini category generation response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	labels, err := parseStringList(raw)
	if err != nil {
		s.logger.Warn("unparsable category generation response",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
		)
		return nil, false
	}

	if len(labels) > maxGeneratedCategories {
		labels = labels[:maxGeneratedCategories]
	}

	return labels, true
}

// RelatedCategories asks the model for catalog entries conceptually related
// to the generated labels. Entries not literally present in the supplied
// catalog are discarded; a failed call returns nil.
func (s *Suggester) RelatedCategories(ctx context.Context, generated, catalog []string) []string {
	if len(generated) == 0 || len(catalog) == 0 {
		return nil
	}

	generatedJSON, err := json.Marshal(generated)
	if err != nil {
		return nil
	}
	catalogJSON, err := json.Marshal(catalog)
	if err != nil {
		return nil
	}

	prompt := strings.ReplaceAll(semanticPromptTemplate, "{{GENERATED_JSON}}", string(generatedJSON))
	prompt = strings.ReplaceAll(prompt, "{{CATALOG_JSON}}", string(catalogJSON))

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		s.logger.Warn("semantic matching failed", zap.Error(err))
		return nil
	}

	entries, err := parseStringList(raw)
	if err != nil {
		s.logger.Warn("unparsable semantic matching response",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
		)
		return nil
	}

	known := make(map[string]struct{}, len(catalog))
	for _, entry := range catalog {
		known[strings.ToLower(strings.TrimSpace(entry))] = struct{}{}
	}

	matches := make([]string, 0, maxSemanticMatches)
	for _, entry := range entries {
		if _, ok := known[strings.ToLower(entry)]; !ok {
			s.logger.Debug("dropping semantic match outside catalog", zap.String("entry", entry))
			continue
		}
		matches = append(matches, entry)
		if len(matches) == maxSemanticMatches {
			break
		}
	}

	return matches
}

// parseStringList parses the model output as a JSON array of strings,
// tolerating fenced code blocks. Any other shape is a parse failure.
func parseStringList(raw string) ([]string, error) {
	cleaned := extractJSON(raw)

	var list []string
	if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(list))
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		result = append(result, item)
	}

	return result, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
