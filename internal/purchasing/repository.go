package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/replenishment/internal/platform/db"
)

const orderColumns = `po.id, po.supplier_id, po.order_date, po.expected_delivery, po.actual_delivery,
	po.status, po.responded_at, po.created_by, po.original_po_id, po.proposed_status,
	po.supplier_proposed_deliver, po.supplier_note, po.version`

// dbtx is satisfied by both the pool and a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{db: pool}}
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{queries: queries{db: tx}})
	})
}

type txRepo struct {
	queries
}

// TxFrom exposes the order queries bound to a transaction owned by another
// package, so documents touching orders commit in one unit.
func TxFrom(tx pgx.Tx) TxRepository {
	return &txRepo{queries: queries{db: tx}}
}

type queries struct {
	db dbtx
}

// GetOrder loads an order and its lines.
func (q queries) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return q.getOrder(ctx, id, false)
}

// LockOrder loads an order with its row locked for the rest of the transaction.
func (q queries) LockOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return q.getOrder(ctx, id, true)
}

func (q queries) getOrder(ctx context.Context, id int64, lock bool) (PurchaseOrder, error) {
	sql := `SELECT ` + orderColumns + ` FROM purchase_orders po WHERE po.id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	po, err := scanOrder(q.db.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return PurchaseOrder{}, db.Classify(err)
	}
	orders := []PurchaseOrder{po}
	if err := q.attachItems(ctx, orders); err != nil {
		return PurchaseOrder{}, err
	}
	return orders[0], nil
}

// ListOrders returns the orders of one view, newest first.
func (q queries) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	sql := `SELECT ` + orderColumns + ` FROM purchase_orders po WHERE `
	switch filter.View {
	case ViewArchived:
		sql += `po.status IN ('Completed', 'Declined')`
	case ViewProposed:
		sql += `po.proposed_status = 'Proposed'`
	default:
		sql += `po.status NOT IN ('Completed', 'Declined')`
	}
	args := []any{}
	if filter.SupplierID > 0 {
		args = append(args, filter.SupplierID)
		sql += ` AND po.supplier_id = $1`
	}
	sql += ` ORDER BY po.order_date DESC, po.id DESC`
	return q.collectOrders(ctx, sql, args...)
}

// Lineage returns up to limit orders starting at id and following original_po_id.
func (q queries) Lineage(ctx context.Context, id int64, limit int) ([]PurchaseOrder, error) {
	sql := `WITH RECURSIVE chain(id, original_po_id, depth) AS (
	SELECT id, original_po_id, 1 FROM purchase_orders WHERE id = $1
	UNION ALL
	SELECT p.id, p.original_po_id, c.depth + 1
	FROM purchase_orders p
	JOIN chain c ON p.id = c.original_po_id
	WHERE c.depth < $2
)
SELECT ` + orderColumns + `
FROM chain
JOIN purchase_orders po ON po.id = chain.id
ORDER BY chain.depth`
	return q.collectOrders(ctx, sql, id, limit)
}

// InsertOrder inserts the order header and returns its id.
func (q queries) InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `INSERT INTO purchase_orders
	(supplier_id, order_date, expected_delivery, status, created_by, original_po_id, proposed_status, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		po.SupplierID, po.OrderDate, po.ExpectedDelivery, string(po.Status), po.CreatedBy,
		po.OriginalPOID, string(po.ProposedStatus), po.Version,
	).Scan(&id)
	if err != nil {
		return 0, db.Classify(err)
	}
	return id, nil
}

// InsertItems inserts the order lines in one round trip.
func (q queries) InsertItems(ctx context.Context, poID int64, items []Item) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO purchase_order_items (po_id, item_id, ordered_quantity, estimated_price, received_quantity)
VALUES ($1, $2, $3, $4, 0)`, poID, item.ItemID, item.OrderedQuantity, item.EstimatedPrice)
	}
	return q.execBatch(ctx, batch)
}

// UpdateItemProposals stores the supplier's per-line counter-offer.
func (q queries) UpdateItemProposals(ctx context.Context, poID int64, items []Item) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`UPDATE purchase_order_items
SET supplier_proposed_quantity = $3, supplier_proposed_price = $4
WHERE po_id = $1 AND item_id = $2`, poID, item.ItemID, item.SupplierProposedQuantity, item.SupplierProposedPrice)
	}
	return q.execBatch(ctx, batch)
}

// UpdateOrder writes the mutable header fields when the stored version still
// matches po.Version and returns the incremented version. Commands load the
// order through LockOrder first, so on PostgreSQL a racing writer waits and
// then fails its state check; the version guard only fires for writers that
// skipped the lock.
func (q queries) UpdateOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var version int64
	err := q.db.QueryRow(ctx, `UPDATE purchase_orders
SET status = $3,
	actual_delivery = $4,
	responded_at = $5,
	proposed_status = $6,
	supplier_proposed_deliver = $7,
	supplier_note = $8,
	version = version + 1
WHERE id = $1 AND version = $2
RETURNING version`,
		po.ID, po.Version, string(po.Status), po.ActualDelivery, po.RespondedAt,
		string(po.ProposedStatus), po.SupplierProposedDeliver, po.SupplierNote,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: order %d version %d", ErrConcurrentUpdate, po.ID, po.Version)
	}
	if err != nil {
		return 0, db.Classify(err)
	}
	return version, nil
}

func (q queries) execBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := q.db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return db.Classify(err)
		}
	}
	return db.Classify(results.Close())
}

func (q queries) collectOrders(ctx context.Context, sql string, args ...any) ([]PurchaseOrder, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	orders := make([]PurchaseOrder, 0)
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	if err := q.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (q queries) attachItems(ctx context.Context, orders []PurchaseOrder) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []Item{}
	}
	rows, err := q.db.Query(ctx, `SELECT po_id, item_id, ordered_quantity, estimated_price, received_quantity,
	supplier_proposed_quantity, supplier_proposed_price
FROM purchase_order_items
WHERE po_id = ANY($1)
ORDER BY po_id, item_id`, ids)
	if err != nil {
		return db.Classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.POID, &item.ItemID, &item.OrderedQuantity, &item.EstimatedPrice,
			&item.ReceivedQuantity, &item.SupplierProposedQuantity, &item.SupplierProposedPrice); err != nil {
			return db.Classify(err)
		}
		if i, ok := index[item.POID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return db.Classify(rows.Err())
}

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var (
		po             PurchaseOrder
		status         string
		proposedStatus string
		actual         *time.Time
		responded      *time.Time
	)
	err := row.Scan(&po.ID, &po.SupplierID, &po.OrderDate, &po.ExpectedDelivery, &actual,
		&status, &responded, &po.CreatedBy, &po.OriginalPOID, &proposedStatus,
		&po.SupplierProposedDeliver, &po.SupplierNote, &po.Version)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Status = Status(status)
	po.ProposedStatus = ProposalStatus(proposedStatus)
	po.ActualDelivery = actual
	po.RespondedAt = responded
	return po, nil
}
