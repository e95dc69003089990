package receiving

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/replenishment/internal/inventory"
	"github.com/odyssey-erp/replenishment/internal/platform/db"
	"github.com/odyssey-erp/replenishment/internal/purchasing"
)

// TxRepository exposes the writes of one receiving transaction.
type TxRepository interface {
	LockOrder(ctx context.Context, poID int64) (purchasing.PurchaseOrder, error)
	SetReceivedQuantity(ctx context.Context, poID, itemID, quantity int64) error
	UpsertBatch(ctx context.Context, posting inventory.Posting) (inventory.Batch, error)
	CompleteOrder(ctx context.Context, poID, version int64, deliveredAt time.Time) (CompletedOrder, error)
}

// CompletedOrder carries the header values written when an order completes.
type CompletedOrder struct {
	Version        int64
	ActualDelivery time.Time
}

// Repository runs receiving against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn in one transaction spanning the order and the ledger.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			tx:     tx,
			orders: purchasing.TxFrom(tx),
			ledger: inventory.NewTxWriter(tx),
		})
	})
}

type txRepo struct {
	tx     pgx.Tx
	orders purchasing.TxRepository
	ledger *inventory.TxWriter
}

func (t *txRepo) LockOrder(ctx context.Context, poID int64) (purchasing.PurchaseOrder, error) {
	return t.orders.LockOrder(ctx, poID)
}

func (t *txRepo) SetReceivedQuantity(ctx context.Context, poID, itemID, quantity int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET received_quantity = $3 WHERE po_id = $1 AND item_id = $2`, poID, itemID, quantity)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %d on order %d", ErrUnknownLine, itemID, poID)
	}
	return nil
}

func (t *txRepo) UpsertBatch(ctx context.Context, posting inventory.Posting) (inventory.Batch, error) {
	return t.ledger.UpsertBatch(ctx, posting)
}

func (t *txRepo) CompleteOrder(ctx context.Context, poID, version int64, deliveredAt time.Time) (CompletedOrder, error) {
	var done CompletedOrder
	err := t.tx.QueryRow(ctx, `UPDATE purchase_orders
SET status = 'Completed',
	actual_delivery = COALESCE(actual_delivery, $3),
	version = version + 1
WHERE id = $1 AND version = $2 AND status IN ('Received', 'Shipping')
RETURNING version, actual_delivery`, poID, version, deliveredAt).Scan(&done.Version, &done.ActualDelivery)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompletedOrder{}, fmt.Errorf("%w: order %d", purchasing.ErrConcurrentUpdate, poID)
	}
	if err != nil {
		return CompletedOrder{}, db.Classify(err)
	}
	return done, nil
}
