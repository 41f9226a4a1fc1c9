package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unimarket/matchmaker/internal/catalog"
	"github.com/unimarket/matchmaker/internal/sellers"
)

type fakeSuggester struct {
	labels  []string
	ok      bool
	related []string
	calls   int
}

func (f *fakeSuggester) SuggestCategories(context.Context, string) ([]string, bool) {
	f.calls++
	return f.labels, f.ok
}

func (f *fakeSuggester) RelatedCategories(context.Context, []string, []string) []string {
	return f.related
}

type fakeCatalog struct {
	entries      map[string]catalog.Category
	associations map[string]map[string]struct{}
	failReads    bool
	upsertCalls  int
}

func newFakeCatalog(names ...string) *fakeCatalog {
	f := &fakeCatalog{
		entries:      make(map[string]catalog.Category),
		associations: make(map[string]map[string]struct{}),
	}
	for _, name := range names {
		f.add(name)
	}
	return f
}

func (f *fakeCatalog) add(name string) catalog.Category {
	canonical := catalog.Canonicalize(name)
	if existing, ok := f.entries[canonical]; ok {
		return existing
	}
	category := catalog.Category{ID: uuid.NewString(), Name: name, Canonical: canonical}
	f.entries[canonical] = category
	return category
}

func (f *fakeCatalog) AllNames(context.Context) ([]string, error) {
	if f.failReads {
		return nil, errors.New("store unreachable")
	}
	names := make([]string, 0, len(f.entries))
	for _, category := range f.entries {
		names = append(names, category.Name)
	}
	return names, nil
}

func (f *fakeCatalog) Upsert(_ context.Context, name string) (catalog.Category, error) {
	f.upsertCalls++
	return f.add(name), nil
}

func (f *fakeCatalog) ByNames(_ context.Context, names []string) ([]catalog.Category, error) {
	if f.failReads {
		return nil, errors.New("store unreachable")
	}
	result := make([]catalog.Category, 0, len(names))
	for _, name := range names {
		if category, ok := f.entries[catalog.Canonicalize(name)]; ok {
			result = append(result, category)
		}
	}
	return result, nil
}

func (f *fakeCatalog) Associate(_ context.Context, sellerID string, categoryIDs []string) error {
	if f.associations[sellerID] == nil {
		f.associations[sellerID] = make(map[string]struct{})
	}
	for _, id := range categoryIDs {
		f.associations[sellerID][id] = struct{}{}
	}
	return nil
}

func (f *fakeCatalog) category(name string) catalog.Category {
	return f.entries[catalog.Canonicalize(name)]
}

type fakeSellers struct {
	items   []*sellers.Seller
	touched map[string]time.Time
}

func newFakeSellers(items ...*sellers.Seller) *fakeSellers {
	return &fakeSellers{items: items, touched: make(map[string]time.Time)}
}

func (f *fakeSellers) ByCategoryIDs(_ context.Context, categoryIDs []string, _ string) (*sellers.Sellers, error) {
	wanted := make(map[string]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		wanted[id] = struct{}{}
	}

	matched := make([]*sellers.Seller, 0)
	for _, seller := range f.items {
		for _, category := range seller.Categories {
			if _, ok := wanted[category.ID]; ok {
				matched = append(matched, seller)
				break
			}
		}
	}

	return &sellers.Sellers{Items: matched}, nil
}

func (f *fakeSellers) TouchLastMatched(_ context.Context, sellerID string, at time.Time) error {
	f.touched[sellerID] = at
	return nil
}

type fakeCache struct {
	labels []string
	hit    bool
	sets   int
}

func (f *fakeCache) Get(context.Context, string) ([]string, bool) {
	return f.labels, f.hit
}

func (f *fakeCache) Set(_ context.Context, _ string, labels []string) {
	f.sets++
	f.labels = labels
}

func newEngine(t *testing.T, deps Deps) *Engine {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	engine, err := New(deps)
	require.NoError(t, err)
	return engine
}

func TestMatchEndToEnd(t *testing.T) {
	cat := newFakeCatalog("Electronics", "Laptops")
	laptops := cat.category("Laptops")

	specialist := &sellers.Seller{
		ID:            "specialist",
		Name:          "Focused Laptops",
		Institution:   "X",
		AverageRating: 4.5,
		RatingCount:   12,
		Categories:    []catalog.Category{laptops},
	}
	generalist := &sellers.Seller{
		ID:            "generalist",
		Name:          "Laptops And More",
		Institution:   "X",
		AverageRating: 4.5,
		RatingCount:   12,
		Categories:    []catalog.Category{laptops, {ID: "phones", Name: "Phones"}},
	}
	otherInstitution := &sellers.Seller{
		ID:          "outsider",
		Institution: "Y",
		Categories:  []catalog.Category{laptops},
	}
	overdue := time.Now().Add(-72 * time.Hour)
	suspended := &sellers.Seller{
		ID:             "suspended",
		Institution:    "X",
		BillingActive:  true,
		BillingDueDate: &overdue,
		Categories:     []catalog.Category{laptops},
	}

	store := newFakeSellers(specialist, generalist, otherInstitution, suspended)
	suggester := &fakeSuggester{labels: []string{"Laptop"}, ok: true}

	engine := newEngine(t, Deps{
		Suggester: suggester,
		Catalog:   cat,
		Sellers:   store,
	})

	result, err := engine.Match(context.Background(), MatchRequest{
		FreeText:    "need a cheap laptop for class",
		Institution: "X",
		Limit:       10,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Laptop"}, result.GeneratedCategories)
	assert.Equal(t, []string{"Laptops"}, result.MatchedCategories)

	require.Len(t, result.Results, 2)
	assert.Equal(t, "specialist", result.Results[0].SellerID)
	assert.Equal(t, "generalist", result.Results[1].SellerID)
	assert.Equal(t, []string{"Laptops"}, result.Results[0].CategoriesMatched)

	// (50/1) * 1.15 + 0.2 for the specialist, (50/2) * 1.15 + 0.2 after
	// dilution for the generalist.
	assert.InDelta(t, 57.7, result.Results[0].Score, 1e-9)
	assert.InDelta(t, 28.95, result.Results[1].Score, 1e-9)

	// Only returned sellers get their last-matched stamp.
	assert.Contains(t, store.touched, "specialist")
	assert.Contains(t, store.touched, "generalist")
	assert.NotContains(t, store.touched, "outsider")
	assert.NotContains(t, store.touched, "suspended")
}

func TestMatchGenerationFailureDegradesToEmptyResult(t *testing.T) {
	cat := newFakeCatalog("Laptops")
	store := newFakeSellers()
	suggester := &fakeSuggester{ok: false}

	engine := newEngine(t, Deps{Suggester: suggester, Catalog: cat, Sellers: store})

	result, err := engine.Match(context.Background(), MatchRequest{FreeText: "anything", Institution: "X"})
	require.NoError(t, err)

	assert.Empty(t, result.Results)
	assert.Empty(t, result.GeneratedCategories)
	assert.Empty(t, result.MatchedCategories)
}

func TestMatchNoCategoryMatchIsNotAnError(t *testing.T) {
	cat := newFakeCatalog("Electronics")
	store := newFakeSellers()
	suggester := &fakeSuggester{labels: []string{"Zq"}, ok: true}

	engine := newEngine(t, Deps{Suggester: suggester, Catalog: cat, Sellers: store})

	result, err := engine.Match(context.Background(), MatchRequest{FreeText: "zq", Institution: "X"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Zq"}, result.GeneratedCategories)
	assert.Empty(t, result.MatchedCategories)
	assert.Empty(t, result.Results)
}

func TestMatchSurfacesStoreFailure(t *testing.T) {
	cat := newFakeCatalog("Laptops")
	cat.failReads = true
	suggester := &fakeSuggester{labels: []string{"Laptop"}, ok: true}

	engine := newEngine(t, Deps{Suggester: suggester, Catalog: cat, Sellers: newFakeSellers()})

	_, err := engine.Match(context.Background(), MatchRequest{FreeText: "laptop", Institution: "X"})
	require.Error(t, err)
}

func TestMatchRequiresInstitution(t *testing.T) {
	engine := newEngine(t, Deps{
		Suggester: &fakeSuggester{},
		Catalog:   newFakeCatalog(),
		Sellers:   newFakeSellers(),
	})

	_, err := engine.Match(context.Background(), MatchRequest{FreeText: "laptop"})
	require.Error(t, err)
}

func TestMatchServesGeneratedCategoriesFromCache(t *testing.T) {
	cat := newFakeCatalog("Laptops")
	suggester := &fakeSuggester{labels: []string{"ignored"}, ok: true}
	cache := &fakeCache{labels: []string{"Laptops"}, hit: true}

	engine := newEngine(t, Deps{
		Suggester: suggester,
		Catalog:   cat,
		Sellers:   newFakeSellers(),
		Cache:     cache,
	})

	result, err := engine.Match(context.Background(), MatchRequest{FreeText: "laptop", Institution: "X"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Laptops"}, result.GeneratedCategories)
	assert.Zero(t, suggester.calls, "suggester must not be called on a cache hit")
}

func TestMatchPopulatesCacheOnMiss(t *testing.T) {
	cat := newFakeCatalog("Laptops")
	suggester := &fakeSuggester{labels: []string{"Laptop"}, ok: true}
	cache := &fakeCache{}

	engine := newEngine(t, Deps{
		Suggester: suggester,
		Catalog:   cat,
		Sellers:   newFakeSellers(),
		Cache:     cache,
	})

	_, err := engine.Match(context.Background(), MatchRequest{FreeText: "laptop", Institution: "X"})
	require.NoError(t, err)

	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, []string{"Laptop"}, cache.labels)
}

func TestCategorizeSellerCreatesAndAssociates(t *testing.T) {
	cat := newFakeCatalog()
	suggester := &fakeSuggester{labels: []string{"Textbooks", "Used Books", "textbooks"}, ok: true}

	engine := newEngine(t, Deps{Suggester: suggester, Catalog: cat, Sellers: newFakeSellers()})

	stored, err := engine.CategorizeSeller(context.Background(), "seller-1", "I sell used textbooks")
	require.NoError(t, err)

	// The duplicated label collapses before any store write.
	require.Len(t, stored, 2)
	assert.Len(t, cat.associations["seller-1"], 2)
}

func TestCategorizeSellerIdempotent(t *testing.T) {
	cat := newFakeCatalog()
	suggester := &fakeSuggester{labels: []string{"Textbooks"}, ok: true}

	engine := newEngine(t, Deps{Suggester: suggester, Catalog: cat, Sellers: newFakeSellers()})

	first, err := engine.CategorizeSeller(context.Background(), "seller-1", "textbooks")
	require.NoError(t, err)

	second, err := engine.CategorizeSeller(context.Background(), "seller-1", "textbooks")
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "re-upserting must not create a duplicate")
	assert.Len(t, cat.associations["seller-1"], 1)
}

func TestCategorizeSellerGenerationFailure(t *testing.T) {
	cat := newFakeCatalog()
	suggester := &fakeSuggester{ok: false}

	engine := newEngine(t, Deps{Suggester: suggester, Catalog: cat, Sellers: newFakeSellers()})

	stored, err := engine.CategorizeSeller(context.Background(), "seller-1", "whatever")
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Zero(t, cat.upsertCalls)
}
