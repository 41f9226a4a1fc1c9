package filtering

import (
	"context"
	"time"

	"github.com/unimarket/matchmaker/internal/sellers"
)

type billingFilter struct {
	today time.Time
}

// NewBillingStanding creates a filter that removes sellers with active
// billing whose due date has passed. A seller with billing inactive, or with
// no due date set, is always eligible.
func NewBillingStanding(today time.Time) Filter {
	return &billingFilter{today: today}
}

func (f *billingFilter) Name() string { return "billing_standing" }

func (f *billingFilter) Disable(string) {}

func (f *billingFilter) IsEnabled() bool { return true }

func (f *billingFilter) Validate() error { return nil }

func (f *billingFilter) Apply(_ context.Context, s *sellers.Sellers) (*sellers.Sellers, Step, error) {
	initial := s.Len()

	removed := s.Keep(func(seller *sellers.Seller) bool {
		if !seller.BillingActive || seller.BillingDueDate == nil {
			return true
		}
		return !dueOnOrBefore(*seller.BillingDueDate, f.today)
	})

	return s, Step{Initial: initial, Dropped: len(removed), Left: s.Len()}, nil
}

// dueOnOrBefore compares by calendar date only, ignoring the time component.
func dueOnOrBefore(due, today time.Time) bool {
	dy, dm, dd := due.Date()
	ty, tm, td := today.Date()

	d := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)

	return !d.After(t)
}
