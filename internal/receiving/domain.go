package receiving

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/replenishment/internal/inventory"
	"github.com/odyssey-erp/replenishment/internal/purchasing"
	"github.com/odyssey-erp/replenishment/internal/shared"
)

// OverReceiptPolicy decides what happens when more arrives than was ordered.
type OverReceiptPolicy string

const (
	// OverReceiptAllow posts the full quantity and reports the variance.
	OverReceiptAllow OverReceiptPolicy = "allow"
	// OverReceiptReject refuses the whole receipt.
	OverReceiptReject OverReceiptPolicy = "reject"
)

var (
	// ErrAlreadyCompleted rejects a second receipt that would double-count stock.
	ErrAlreadyCompleted = fmt.Errorf("receiving: order already completed: %w", shared.ErrStateConflict)
	// ErrNotReceivable rejects orders that are not awaiting goods.
	ErrNotReceivable = fmt.Errorf("receiving: order is not awaiting receipt: %w", shared.ErrStateConflict)
	// ErrLinesRequired indicates an empty receipt.
	ErrLinesRequired = fmt.Errorf("receiving: at least one line required: %w", shared.ErrValidation)
	// ErrDuplicateLine indicates the same item appears twice in a receipt.
	ErrDuplicateLine = fmt.Errorf("receiving: duplicate line: %w", shared.ErrValidation)
	// ErrNegativeQuantity indicates a negative received quantity.
	ErrNegativeQuantity = fmt.Errorf("receiving: received quantity must not be negative: %w", shared.ErrValidation)
	// ErrOverReceipt indicates more was received than ordered under the reject policy.
	ErrOverReceipt = fmt.Errorf("receiving: received quantity exceeds ordered quantity: %w", shared.ErrValidation)
	// ErrUnknownLine indicates the item is not a line of the order.
	ErrUnknownLine = fmt.Errorf("receiving: item is not on the order: %w", shared.ErrNotFound)
)

// Line is what the operator counted for one order line.
type Line struct {
	ItemID           int64
	ReceivedQuantity int64
	ExpirationDate   time.Time
	StorageLocation  string
}

// ReceiveInput posts the physical receipt of an order.
type ReceiveInput struct {
	POID  int64
	Lines []Line
	Actor string
}

// LineResult reports one order line after posting.
type LineResult struct {
	ItemID   int64            `json:"item_id"`
	Ordered  int64            `json:"ordered"`
	Received int64            `json:"received"`
	Variance int64            `json:"variance"`
	Batch    *inventory.Batch `json:"batch,omitempty"`
}

// Receipt is the outcome of a receiving run.
type Receipt struct {
	POID           int64             `json:"po_id"`
	Status         purchasing.Status `json:"status"`
	ActualDelivery time.Time         `json:"actual_delivery"`
	Version        int64             `json:"version"`
	Lines          []LineResult      `json:"lines"`
}

// HasVariance reports whether any line differs from what was ordered.
func (r Receipt) HasVariance() bool {
	for _, line := range r.Lines {
		if line.Variance != 0 {
			return true
		}
	}
	return false
}
