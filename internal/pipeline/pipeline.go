package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unimarket/matchmaker/internal/ai"
	"github.com/unimarket/matchmaker/internal/catalog"
	"github.com/unimarket/matchmaker/internal/filtering"
	"github.com/unimarket/matchmaker/internal/matching"
	"github.com/unimarket/matchmaker/internal/scoring"
	"github.com/unimarket/matchmaker/internal/sellers"
)

const defaultLimit = 10

// CatalogStore is the slice of the catalog repository the engine needs.
type CatalogStore interface {
	AllNames(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, name string) (catalog.Category, error)
	ByNames(ctx context.Context, names []string) ([]catalog.Category, error)
	Associate(ctx context.Context, sellerID string, categoryIDs []string) error
}

// SellerStore is the slice of the seller repository the engine needs.
type SellerStore interface {
	ByCategoryIDs(ctx context.Context, categoryIDs []string, institution string) (*sellers.Sellers, error)
	TouchLastMatched(ctx context.Context, sellerID string, at time.Time) error
}

// GenerationCache caches generated category lists per input text. Both
// operations are best-effort; a miss or a cache outage falls through to a
// live generation call.
type GenerationCache interface {
	Get(ctx context.Context, freeText string) ([]string, bool)
	Set(ctx context.Context, freeText string, labels []string)
}

// MatchRequest is the ephemeral input of one matching call.
type MatchRequest struct {
	FreeText    string
	Institution string
	Limit       int
}

// MatchedSeller is one entry of the ranked result.
type MatchedSeller struct {
	SellerID          string   `json:"seller_id"`
	Name              string   `json:"name"`
	CategoriesMatched []string `json:"categories_matched"`
	Score             float64  `json:"score"`
}

// MatchResult carries the ranked sellers plus the intermediate category
// lists, useful for audit and debugging by callers.
type MatchResult struct {
	Results             []MatchedSeller `json:"results"`
	GeneratedCategories []string        `json:"generated_categories"`
	MatchedCategories   []string        `json:"matched_categories"`

	// Eligible holds the post-filtering seller collection for callers that
	// want to report on or dump it. Not part of the serialized result.
	Eligible *sellers.Sellers `json:"-"`
}

// Deps aggregates the engine's collaborators.
type Deps struct {
	Suggester ai.Suggester
	Matcher   *matching.Matcher
	Catalog   CatalogStore
	Sellers   SellerStore
	Cache     GenerationCache
	Logger    *zap.Logger
}

// Engine runs the matching pipeline: generate, match, filter, score, rank.
// It is stateless per call; the only durable effect of Match is the
// last-matched stamp on returned sellers.
type Engine struct {
	suggester ai.Suggester
	matcher   *matching.Matcher
	catalog   CatalogStore
	sellers   SellerStore
	cache     GenerationCache
	params    scoring.Params
	policy    scoring.RankPolicy
	now       func() time.Time
	logger    *zap.Logger
}

func New(deps Deps) (*Engine, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog store is required")
	}
	if deps.Sellers == nil {
		return nil, errors.New("seller store is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	matcher := deps.Matcher
	if matcher == nil {
		matcher = matching.New(deps.Suggester, logger)
	}

	return &Engine{
		suggester: deps.Suggester,
		matcher:   matcher,
		catalog:   deps.Catalog,
		sellers:   deps.Sellers,
		cache:     deps.Cache,
		params:    scoring.DefaultParams(),
		policy:    scoring.DefaultRankPolicy(),
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Match resolves a free-text buyer request to a ranked list of eligible
// sellers. Generation and semantic failures degrade to an empty result; only
// store failures surface as errors.
func (e *Engine) Match(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	if req.Institution == "" {
		return nil, errors.New("requester institution is required")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	result := &MatchResult{
		Results:             []MatchedSeller{},
		GeneratedCategories: []string{},
		MatchedCategories:   []string{},
		Eligible:            &sellers.Sellers{},
	}

	generated := e.generateCategories(ctx, req.FreeText)
	if len(generated) == 0 {
		e.logger.Info("no categories inferred from request")
		return result, nil
	}
	result.GeneratedCategories = generated

	catalogNames, err := e.catalog.AllNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	matched := e.matcher.Match(ctx, generated, catalogNames)
	if len(matched) == 0 {
		e.logger.Info("no catalog categories matched",
			zap.Strings("generated", generated),
		)
		return result, nil
	}
	result.MatchedCategories = matched

	categories, err := e.catalog.ByNames(ctx, matched)
	if err != nil {
		return nil, fmt.Errorf("resolve matched categories: %w", err)
	}

	categoryIDs := make([]string, 0, len(categories))
	for _, c := range categories {
		categoryIDs = append(categoryIDs, c.ID)
	}

	candidates, err := e.sellers.ByCategoryIDs(ctx, categoryIDs, req.Institution)
	if err != nil {
		return nil, fmt.Errorf("load candidate sellers: %w", err)
	}

	now := e.now()

	chain := filtering.New([]filtering.Filter{
		filtering.NewInstitution(req.Institution),
		filtering.NewBillingStanding(now),
	}, e.logger)

	eligible, err := chain.RunFilters(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("eligibility filtering: %w", err)
	}
	result.Eligible = eligible

	ranked := e.rank(eligible, generated, matched, now, limit)

	for _, candidate := range ranked {
		result.Results = append(result.Results, MatchedSeller{
			SellerID:          candidate.Seller.ID,
			Name:              candidate.Seller.Name,
			CategoriesMatched: candidate.Matched,
			Score:             candidate.Final,
		})

		// Last-writer-wins stamp; a failed write only weakens the fairness
		// heuristic, it does not invalidate the result.
		if err := e.sellers.TouchLastMatched(ctx, candidate.Seller.ID, now); err != nil {
			e.logger.Warn("failed to stamp last_matched_at",
				zap.String("seller_id", candidate.Seller.ID),
				zap.Error(err),
			)
		}
	}

	e.logger.Info("matching completed",
		zap.Int("generated", len(generated)),
		zap.Int("matched", len(matched)),
		zap.Int("candidates", candidates.Len()),
		zap.Int("returned", len(result.Results)),
	)

	return result, nil
}

// CategorizeSeller infers categories from a seller's self-description,
// creates any missing catalog entries, and associates them with the seller.
// This is the only path by which generator output expands the catalog.
func (e *Engine) CategorizeSeller(ctx context.Context, sellerID, description string) ([]catalog.Category, error) {
	if sellerID == "" {
		return nil, errors.New("seller id is required")
	}

	labels, ok := e.suggestCategories(ctx, description)
	if !ok || len(labels) == 0 {
		e.logger.Info("no categories inferred from seller description",
			zap.String("seller_id", sellerID),
		)
		return nil, nil
	}

	stored := make([]catalog.Category, 0, len(labels))
	categoryIDs := make([]string, 0, len(labels))

	for _, label := range catalog.Dedupe(labels) {
		category, err := e.catalog.Upsert(ctx, label)
		if err != nil {
			return nil, fmt.Errorf("upsert category %q: %w", label, err)
		}
		stored = append(stored, category)
		categoryIDs = append(categoryIDs, category.ID)
	}

	if err := e.catalog.Associate(ctx, sellerID, categoryIDs); err != nil {
		return nil, fmt.Errorf("associate seller categories: %w", err)
	}

	e.logger.Info("seller categorized",
		zap.String("seller_id", sellerID),
		zap.Strings("categories", catalog.Names(stored)),
	)

	return stored, nil
}

func (e *Engine) rank(eligible *sellers.Sellers, generated, matched []string, now time.Time, limit int) []*scoring.Candidate {
	matchedSet := make(map[string]struct{}, len(matched))
	for _, name := range matched {
		matchedSet[catalog.Canonicalize(name)] = struct{}{}
	}

	candidates := make([]*scoring.Candidate, 0, eligible.Len())
	for _, seller := range eligible.Items {
		names := seller.CategoryNames()

		held := make([]string, 0, len(names))
		for _, name := range names {
			if _, ok := matchedSet[catalog.Canonicalize(name)]; ok {
				held = append(held, name)
			}
		}

		raw := e.params.RawOverlap(names, generated)
		final := e.params.Score(names, generated, seller.AverageRating, seller.RatingCount, seller.LastMatchedAt, now)

		divisor := len(names)
		if divisor < 1 {
			divisor = 1
		}

		candidates = append(candidates, &scoring.Candidate{
			Seller:     seller,
			Matched:    held,
			RawOverlap: raw,
			Normalized: raw / float64(divisor),
			Final:      final,
		})
	}

	return e.policy.Rank(candidates, limit)
}

func (e *Engine) generateCategories(ctx context.Context, freeText string) []string {
	if e.cache != nil {
		if labels, ok := e.cache.Get(ctx, freeText); ok {
			e.logger.Debug("generated categories served from cache")
			return labels
		}
	}

	labels, ok := e.suggestCategories(ctx, freeText)
	if !ok {
		return nil
	}

	labels = catalog.Dedupe(labels)
	if e.cache != nil && len(labels) > 0 {
		e.cache.Set(ctx, freeText, labels)
	}

	return labels
}

func (e *Engine) suggestCategories(ctx context.Context, freeText string) ([]string, bool) {
	if e.suggester == nil {
		return nil, false
	}
	return e.suggester.SuggestCategories(ctx, freeText)
}
