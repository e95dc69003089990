package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/replenishment/internal/platform/db"
)

// Repository reads catalog data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetItem loads a single item.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `SELECT id, name, threshold, average_required FROM items WHERE id = $1`, id).
		Scan(&item.ID, &item.Name, &item.Threshold, &item.AverageRequired)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, db.Classify(err)
	}
	return item, nil
}

// GetSupplier loads a single supplier.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var supplier Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM suppliers WHERE id = $1`, id).Scan(&supplier.ID, &supplier.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	if err != nil {
		return Supplier{}, db.Classify(err)
	}
	return supplier, nil
}

// ListSuppliersForItem returns the suppliers linked to the item, lowest id first.
func (r *Repository) ListSuppliersForItem(ctx context.Context, itemID int64) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.name
FROM item_suppliers isup
JOIN suppliers s ON s.id = isup.supplier_id
WHERE isup.item_id = $1
ORDER BY s.id`, itemID)
	if err != nil {
		return nil, db.Classify(err)
	}
	suppliers, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Supplier])
	if err != nil {
		return nil, db.Classify(err)
	}
	return suppliers, nil
}

// MissingItems returns the ids from the input that have no items row.
func (r *Repository) MissingItems(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT req.id
FROM unnest($1::bigint[]) AS req(id)
LEFT JOIN items i ON i.id = req.id
WHERE i.id IS NULL
ORDER BY req.id`, ids)
	if err != nil {
		return nil, db.Classify(err)
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, db.Classify(err)
	}
	return missing, nil
}
