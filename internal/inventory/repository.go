package inventory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/replenishment/internal/platform/db"
)

// Repository reads inventory batches from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListBatches returns the batches of an item ordered by expiration then location.
func (r *Repository) ListBatches(ctx context.Context, itemID int64, includeEmpty bool) ([]Batch, error) {
	sql := `SELECT item_id, expiration_date, storage_location, quantity, date_received
FROM inventory_batches
WHERE item_id = $1`
	if !includeEmpty {
		sql += ` AND quantity > 0`
	}
	sql += ` ORDER BY expiration_date, storage_location`
	rows, err := r.pool.Query(ctx, sql, itemID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	batches := make([]Batch, 0)
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ItemID, &b.ExpirationDate, &b.StorageLocation, &b.Quantity, &b.DateReceived); err != nil {
			return nil, db.Classify(err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return batches, nil
}

// OnHand sums the quantity of all batches of an item.
func (r *Repository) OnHand(ctx context.Context, itemID int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0)::bigint FROM inventory_batches WHERE item_id = $1`, itemID).Scan(&total)
	if err != nil {
		return 0, db.Classify(err)
	}
	return total, nil
}

// TxWriter posts batches inside a transaction owned by the caller, so stock
// and the document that moved it commit together.
type TxWriter struct {
	tx pgx.Tx
}

// NewTxWriter binds a writer to tx.
func NewTxWriter(tx pgx.Tx) *TxWriter {
	return &TxWriter{tx: tx}
}

// UpsertBatch atomically increments the batch or inserts it when missing.
// Concurrent postings to the same key serialise on the unique index.
func (w *TxWriter) UpsertBatch(ctx context.Context, p Posting) (Batch, error) {
	if err := p.Validate(); err != nil {
		return Batch{}, err
	}
	receivedAt := p.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	var b Batch
	err := w.tx.QueryRow(ctx, `INSERT INTO inventory_batches (item_id, expiration_date, storage_location, quantity, date_received)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (item_id, expiration_date, storage_location)
DO UPDATE SET quantity = inventory_batches.quantity + EXCLUDED.quantity
RETURNING item_id, expiration_date, storage_location, quantity, date_received`,
		p.Key.ItemID, p.Key.ExpirationDate, p.Key.StorageLocation, p.Quantity, receivedAt,
	).Scan(&b.ItemID, &b.ExpirationDate, &b.StorageLocation, &b.Quantity, &b.DateReceived)
	if err != nil {
		return Batch{}, db.Classify(err)
	}
	return b, nil
}
