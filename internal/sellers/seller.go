package sellers

import (
	"encoding/json"
	"os"
	"time"

	"github.com/unimarket/matchmaker/internal/catalog"
)

// Seller is a merchant that can be matched against buyer requests. The
// matching engine mutates only LastMatchedAt and the category associations;
// everything else is owned by other subsystems.
type Seller struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Institution    string     `db:"institution" json:"institution"`
	AverageRating  float64    `db:"average_rating" json:"average_rating"`
	RatingCount    int        `db:"rating_count" json:"rating_count"`
	LastMatchedAt  *time.Time `db:"last_matched_at" json:"last_matched_at,omitempty"`
	BillingActive  bool       `db:"billing_active" json:"billing_active"`
	BillingDueDate *time.Time `db:"billing_due_date" json:"billing_due_date,omitempty"`

	Categories []catalog.Category `db:"-" json:"categories,omitempty"`
}

// CategoryNames returns the display names of the seller's categories.
func (s *Seller) CategoryNames() []string {
	return catalog.Names(s.Categories)
}

// Sellers is a mutable collection of matching candidates.
type Sellers struct {
	Items []*Seller
}

func (s *Sellers) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

func (s *Sellers) IDs() []string {
	ids := make([]string, 0, s.Len())
	for _, seller := range s.Items {
		ids = append(ids, seller.ID)
	}
	return ids
}

func (s *Sellers) FindByID(id string) *Seller {
	for _, seller := range s.Items {
		if seller.ID == id {
			return seller
		}
	}
	return nil
}

// Keep retains only the sellers for which the predicate holds and returns the
// ids of the removed ones.
func (s *Sellers) Keep(predicate func(*Seller) bool) []string {
	kept := make([]*Seller, 0, len(s.Items))
	removed := make([]string, 0)

	for _, seller := range s.Items {
		if predicate(seller) {
			kept = append(kept, seller)
			continue
		}
		removed = append(removed, seller.ID)
	}

	s.Items = kept
	return removed
}

// ReportByInstitution aggregates seller counts per institution.
func (s *Sellers) ReportByInstitution() map[string]int {
	report := make(map[string]int)
	for _, seller := range s.Items {
		report[seller.Institution]++
	}
	return report
}

// DumpToTmpFile writes the collection to a temporary JSON file and returns
// its name.
func (s *Sellers) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "sellers_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return file.Name(), nil
}
