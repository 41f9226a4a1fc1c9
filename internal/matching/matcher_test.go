package matching

import (
	"context"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

type stubSuggester struct {
	related       []string
	lastGenerated []string
	lastCatalog   []string
}

func (s *stubSuggester) SuggestCategories(context.Context, string) ([]string, bool) {
	return nil, false
}

func (s *stubSuggester) RelatedCategories(_ context.Context, generated, catalog []string) []string {
	s.lastGenerated = generated
	s.lastCatalog = catalog
	return s.related
}

func TestMatcherLexicalOnlyWithoutSuggester(t *testing.T) {
	m := New(nil, zap.NewNop())

	got := m.Match(context.Background(), []string{"Laptop"}, []string{"Laptops", "Electronics"})
	if !reflect.DeepEqual(got, []string{"Laptops"}) {
		t.Fatalf("unexpected match: %v", got)
	}
}

func TestMatcherAppendsSemanticMatches(t *testing.T) {
	stub := &stubSuggester{related: []string{"Electronics"}}
	m := New(stub, zap.NewNop())

	got := m.Match(context.Background(), []string{"Laptop"}, []string{"Laptops", "Electronics"})
	if !reflect.DeepEqual(got, []string{"Laptops", "Electronics"}) {
		t.Fatalf("expected lexical then semantic, got %v", got)
	}

	if len(stub.lastGenerated) != 1 || stub.lastGenerated[0] != "Laptop" {
		t.Fatalf("suggester received wrong labels: %v", stub.lastGenerated)
	}
}

func TestMatcherDropsHallucinatedEntries(t *testing.T) {
	stub := &stubSuggester{related: []string{"Smartphones", "Electronics"}}
	m := New(stub, zap.NewNop())

	got := m.Match(context.Background(), []string{"Laptop"}, []string{"Laptops", "Electronics"})
	for _, entry := range got {
		if entry == "Smartphones" {
			t.Fatalf("hallucinated entry survived: %v", got)
		}
	}
}

func TestMatcherLexicalTakesPrecedence(t *testing.T) {
	// The semantic pass returns an entry already matched lexically; it must
	// not be duplicated.
	stub := &stubSuggester{related: []string{"laptops"}}
	m := New(stub, zap.NewNop())

	got := m.Match(context.Background(), []string{"Laptop"}, []string{"Laptops"})
	if !reflect.DeepEqual(got, []string{"Laptops"}) {
		t.Fatalf("expected deduplicated output, got %v", got)
	}
}

func TestMatcherSkipsSemanticOnEmptyInputs(t *testing.T) {
	stub := &stubSuggester{related: []string{"Electronics"}}
	m := New(stub, zap.NewNop())

	if got := m.Match(context.Background(), nil, []string{"Electronics"}); len(got) != 0 {
		t.Fatalf("expected empty result for empty generated list, got %v", got)
	}

	if stub.lastCatalog != nil {
		t.Fatal("suggester must not be called for empty generated list")
	}
}

func TestMatcherSemanticPreservesCatalogCasing(t *testing.T) {
	stub := &stubSuggester{related: []string{"ELECTRONICS"}}
	m := New(stub, zap.NewNop())

	got := m.Match(context.Background(), []string{"Laptop"}, []string{"Laptops", "Electronics"})
	if !reflect.DeepEqual(got, []string{"Laptops", "Electronics"}) {
		t.Fatalf("expected catalog casing in output, got %v", got)
	}
}
