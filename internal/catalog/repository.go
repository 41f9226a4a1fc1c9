package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	categoriesTable   = "categories"
	associationsTable = "seller_categories"
)

var categoryStruct = sqlbuilder.NewStruct(new(Category)).For(sqlbuilder.PostgreSQL)

// Repository stores catalog entries and their seller associations in
// postgres.
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewRepository(db *sqlx.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}
}

// AllNames returns the display names of every catalog entry.
func (r *Repository) AllNames(ctx context.Context) ([]string, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("name").From(categoriesTable).OrderBy("canonical")

	query, args := sb.Build()

	var names []string
	if err := r.db.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, fmt.Errorf("select category names: %w", err)
	}

	return names, nil
}

// Upsert inserts a category by its canonical form, ignoring conflicts, and
// returns the stored row. Re-running the upsert for an already-present
// canonical name changes nothing.
func (r *Repository) Upsert(ctx context.Context, name string) (Category, error) {
	category := Category{
		ID:        uuid.NewString(),
		Name:      name,
		Canonical: Canonicalize(name),
		CreatedAt: time.Now().UTC(),
	}

	if category.Canonical == "" {
		return Category{}, errors.New("category name is empty")
	}

	ib := categoryStruct.InsertInto(categoriesTable, category)
	ib.SQL("ON CONFLICT (canonical) DO NOTHING")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return Category{}, fmt.Errorf("upsert category %q: %w", name, err)
	}

	stored, err := r.byCanonical(ctx, category.Canonical)
	if err != nil {
		return Category{}, err
	}

	r.logger.Debug("category upserted",
		zap.String("category_id", stored.ID),
		zap.String("canonical", stored.Canonical),
	)

	return stored, nil
}

// ByNames resolves display or canonical names to stored categories. Unknown
// names are silently skipped.
func (r *Repository) ByNames(ctx context.Context, names []string) ([]Category, error) {
	if len(names) == 0 {
		return nil, nil
	}

	canonicals := make([]any, 0, len(names))
	for _, name := range Dedupe(names) {
		canonicals = append(canonicals, Canonicalize(name))
	}

	sb := categoryStruct.SelectFrom(categoriesTable)
	sb.Where(sb.In("canonical", canonicals...))

	query, args := sb.Build()

	var categories []Category
	if err := r.db.SelectContext(ctx, &categories, query, args...); err != nil {
		return nil, fmt.Errorf("select categories by names: %w", err)
	}

	return categories, nil
}

// ForSeller returns the categories associated with a seller.
func (r *Repository) ForSeller(ctx context.Context, sellerID string) ([]Category, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("c.id", "c.name", "c.canonical", "c.created_at").
		From(categoriesTable+" c").
		Join(associationsTable+" sc", "sc.category_id = c.id").
		Where(sb.Equal("sc.seller_id", sellerID)).
		OrderBy("c.canonical")

	query, args := sb.Build()

	var categories []Category
	if err := r.db.SelectContext(ctx, &categories, query, args...); err != nil {
		return nil, fmt.Errorf("select categories for seller %s: %w", sellerID, err)
	}

	return categories, nil
}

// Associate links the given categories to a seller inside one transaction.
// Existing associations are left untouched.
func (r *Repository) Associate(ctx context.Context, sellerID string, categoryIDs []string) error {
	if len(categoryIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin association tx: %w", err)
	}
	defer tx.Rollback()

	for _, categoryID := range categoryIDs {
		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto(associationsTable).
			Cols("seller_id", "category_id").
			Values(sellerID, categoryID).
			SQL("ON CONFLICT DO NOTHING")

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("associate seller %s with category %s: %w", sellerID, categoryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit association tx: %w", err)
	}

	r.logger.Debug("seller categories associated",
		zap.String("seller_id", sellerID),
		zap.Int("count", len(categoryIDs)),
	)

	return nil
}

func (r *Repository) byCanonical(ctx context.Context, canonical string) (Category, error) {
	sb := categoryStruct.SelectFrom(categoriesTable)
	sb.Where(sb.Equal("canonical", canonical))
	sb.Limit(1)

	query, args := sb.Build()

	var category Category
	if err := r.db.GetContext(ctx, &category, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, fmt.Errorf("category %q not found after upsert", canonical)
		}
		return Category{}, fmt.Errorf("select category %q: %w", canonical, err)
	}

	return category, nil
}
