package catalog

import "time"

// Category is a durable catalog entry. Name keeps the casing it was first
// created with; Canonical is the case-folded form used for uniqueness and
// comparison.
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Canonical string    `db:"canonical" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// Names extracts the display names from a category slice.
func Names(categories []Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names
}
