package filtering

import (
	"context"
	"fmt"

	"github.com/unimarket/matchmaker/internal/sellers"
)

type institutionFilter struct {
	institution string
}

// NewInstitution creates a filter that keeps only sellers belonging to the
// requester's institution. Matching is exact string equality, no fuzziness.
func NewInstitution(institution string) Filter {
	return &institutionFilter{institution: institution}
}

func (f *institutionFilter) Name() string { return "institution" }

func (f *institutionFilter) Disable(string) {}

func (f *institutionFilter) IsEnabled() bool { return true }

func (f *institutionFilter) Validate() error {
	if f.institution == "" {
		return fmt.Errorf("requester institution is required")
	}
	return nil
}

func (f *institutionFilter) Apply(_ context.Context, s *sellers.Sellers) (*sellers.Sellers, Step, error) {
	initial := s.Len()

	removed := s.Keep(func(seller *sellers.Seller) bool {
		return seller.Institution == f.institution
	})

	return s, Step{Initial: initial, Dropped: len(removed), Left: s.Len()}, nil
}
