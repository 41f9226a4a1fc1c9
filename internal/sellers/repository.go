package sellers

import (
	"context"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/unimarket/matchmaker/internal/catalog"
)

const (
	sellersTable      = "sellers"
	associationsTable = "seller_categories"
	categoriesTable   = "categories"
)

var sellerStruct = sqlbuilder.NewStruct(new(Seller)).For(sqlbuilder.PostgreSQL)

// Repository reads and writes sellers in postgres.
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

// ByCategoryIDs loads the sellers holding any of the given categories,
// optionally narrowed to one institution, with their category sets attached.
func (r *Repository) ByCategoryIDs(ctx context.Context, categoryIDs []string, institution string) (*Sellers, error) {
	if len(categoryIDs) == 0 {
		return &Sellers{}, nil
	}

	ids := make([]any, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		ids = append(ids, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Distinct().
		Select("s.id", "s.name", "s.institution", "s.average_rating",
			"s.rating_count", "s.last_matched_at", "s.billing_active", "s.billing_due_date").
		From(sellersTable + " s").
		Join(associationsTable+" sc", "sc.seller_id = s.id")
	sb.Where(sb.In("sc.category_id", ids...))
	if institution != "" {
		sb.Where(sb.Equal("s.institution", institution))
	}

	query, args := sb.Build()

	var rows []*Seller
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select sellers by categories: %w", err)
	}

	result := &Sellers{Items: rows}
	if err := r.attachCategories(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

// Upsert inserts or updates a seller row. Category associations are managed
// separately; last_matched_at is never overwritten by an update.
func (r *Repository) Upsert(ctx context.Context, seller *Seller) error {
	ib := sellerStruct.InsertInto(sellersTable, seller)
	ib.SQL(`ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		institution = EXCLUDED.institution,
		average_rating = EXCLUDED.average_rating,
		rating_count = EXCLUDED.rating_count,
		billing_active = EXCLUDED.billing_active,
		billing_due_date = EXCLUDED.billing_due_date`)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert seller %s: %w", seller.ID, err)
	}

	r.logger.Debug("seller upserted", zap.String("seller_id", seller.ID))

	return nil
}

// TouchLastMatched stamps the seller's last-matched timestamp. The write is a
// plain last-writer-wins update; concurrent requests racing on it is
// accepted.
func (r *Repository) TouchLastMatched(ctx context.Context, sellerID string, at time.Time) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(sellersTable)
	ub.Set(ub.Assign("last_matched_at", at.UTC()))
	ub.Where(ub.Equal("id", sellerID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch last_matched_at for seller %s: %w", sellerID, err)
	}

	return nil
}

func (r *Repository) attachCategories(ctx context.Context, s *Sellers) error {
	if s.Len() == 0 {
		return nil
	}

	sellerIDs := make([]any, 0, s.Len())
	for _, id := range s.IDs() {
		sellerIDs = append(sellerIDs, id)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("sc.seller_id", "c.id", "c.name", "c.canonical", "c.created_at").
		From(associationsTable + " sc").
		Join(categoriesTable+" c", "c.id = sc.category_id")
	sb.Where(sb.In("sc.seller_id", sellerIDs...))

	query, args := sb.Build()

	type associationRow struct {
		SellerID string `db:"seller_id"`
		catalog.Category
	}

	var rows []associationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("select seller categories: %w", err)
	}

	for _, row := range rows {
		if seller := s.FindByID(row.SellerID); seller != nil {
			seller.Categories = append(seller.Categories, row.Category)
		}
	}

	return nil
}
