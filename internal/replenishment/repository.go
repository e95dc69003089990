package replenishment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/replenishment/internal/platform/db"
)

// Repository reads the scan inputs from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StockLevels returns every item with its on-hand total. Items without
// batches report zero.
func (r *Repository) StockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.name, i.threshold, i.average_required,
	COALESCE(SUM(b.quantity), 0)::BIGINT AS on_hand
FROM items i
LEFT JOIN inventory_batches b ON b.item_id = i.id
GROUP BY i.id, i.name, i.threshold, i.average_required
ORDER BY i.id`)
	if err != nil {
		return nil, db.Classify(err)
	}
	levels, err := pgx.CollectRows(rows, pgx.RowToStructByPos[StockLevel])
	if err != nil {
		return nil, db.Classify(err)
	}
	return levels, nil
}

// PrimarySuppliers resolves each linked item to its lowest supplier id.
func (r *Repository) PrimarySuppliers(ctx context.Context) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_id, MIN(supplier_id) FROM item_suppliers GROUP BY item_id`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	primary := make(map[int64]int64)
	for rows.Next() {
		var itemID, supplierID int64
		if err := rows.Scan(&itemID, &supplierID); err != nil {
			return nil, db.Classify(err)
		}
		primary[itemID] = supplierID
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return primary, nil
}

// OpenOrderItems lists items that already sit on an order still expecting
// goods. Orders replaced by a derived order are ignored.
func (r *Repository) OpenOrderItems(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT poi.item_id
FROM purchase_order_items poi
JOIN purchase_orders po ON po.id = poi.po_id
WHERE po.status IN ('Pending', 'Accepted', 'Shipping', 'Received')
	AND po.proposed_status NOT IN ('Accepted', 'Modified')
ORDER BY poi.item_id`)
	if err != nil {
		return nil, db.Classify(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, db.Classify(err)
	}
	return ids, nil
}
