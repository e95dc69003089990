package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of a purchase order.
type Status string

const (
	// StatusPending awaits the supplier's answer.
	StatusPending Status = "Pending"
	// StatusAccepted was confirmed by the supplier.
	StatusAccepted Status = "Accepted"
	// StatusDeclined was refused by the supplier. Terminal.
	StatusDeclined Status = "Declined"
	// StatusShipping is in transit.
	StatusShipping Status = "Shipping"
	// StatusReceived arrived and awaits receiving.
	StatusReceived Status = "Received"
	// StatusCompleted was posted into inventory. Terminal.
	StatusCompleted Status = "Completed"
)

// ProposalStatus is the state of a supplier counter-proposal on an order.
type ProposalStatus string

const (
	// ProposalNone means no proposal was ever recorded.
	ProposalNone ProposalStatus = "None"
	// ProposalProposed is an open counter-proposal.
	ProposalProposed ProposalStatus = "Proposed"
	// ProposalAccepted produced a derived order from the supplier's terms.
	ProposalAccepted ProposalStatus = "Accepted"
	// ProposalDeclined kept the original terms.
	ProposalDeclined ProposalStatus = "Declined"
	// ProposalModified produced a derived order from buyer-edited terms.
	ProposalModified ProposalStatus = "Modified"
)

// View selects one of the order listings.
type View string

const (
	// ViewActive lists orders not yet Completed or Declined.
	ViewActive View = "active"
	// ViewArchived lists Completed and Declined orders.
	ViewArchived View = "archived"
	// ViewProposed lists orders with an open supplier proposal.
	ViewProposed View = "proposed"
)

// PurchaseOrder is the order aggregate with its lines.
type PurchaseOrder struct {
	ID                      int64          `json:"id"`
	SupplierID              int64          `json:"supplier_id"`
	OrderDate               time.Time      `json:"order_date"`
	ExpectedDelivery        time.Time      `json:"expected_delivery"`
	ActualDelivery          *time.Time     `json:"actual_delivery,omitempty"`
	Status                  Status         `json:"status"`
	RespondedAt             *time.Time     `json:"responded_at,omitempty"`
	CreatedBy               string         `json:"created_by"`
	OriginalPOID            *int64         `json:"original_po_id,omitempty"`
	ProposedStatus          ProposalStatus `json:"proposed_status"`
	SupplierProposedDeliver *time.Time     `json:"supplier_proposed_deliver,omitempty"`
	SupplierNote            *string        `json:"supplier_note,omitempty"`
	Version                 int64          `json:"version"`
	Items                   []Item         `json:"items"`
}

// Item is one order line.
type Item struct {
	POID                     int64               `json:"po_id"`
	ItemID                   int64               `json:"item_id"`
	OrderedQuantity          int64               `json:"ordered_quantity"`
	EstimatedPrice           decimal.NullDecimal `json:"estimated_price"`
	ReceivedQuantity         int64               `json:"received_quantity"`
	SupplierProposedQuantity *int64              `json:"supplier_proposed_quantity,omitempty"`
	SupplierProposedPrice    decimal.NullDecimal `json:"supplier_proposed_price"`
}

// Line finds the order line for itemID.
func (po *PurchaseOrder) Line(itemID int64) (*Item, bool) {
	for i := range po.Items {
		if po.Items[i].ItemID == itemID {
			return &po.Items[i], true
		}
	}
	return nil, false
}

// LineInput describes a requested order line.
type LineInput struct {
	ItemID         int64
	Quantity       int64
	EstimatedPrice decimal.NullDecimal
}

// CreateOrderInput carries the data for a new order.
type CreateOrderInput struct {
	SupplierID       int64
	ExpectedDelivery time.Time
	Items            []LineInput
	CreatedBy        string
	OriginalPOID     *int64
}

// ItemProposal is the supplier's counter-offer for one line.
type ItemProposal struct {
	ItemID   int64
	Quantity *int64
	Price    decimal.NullDecimal
}

// ProposalInput records a supplier counter-proposal.
type ProposalInput struct {
	POID             int64
	ProposedDelivery *time.Time
	Note             string
	Items            []ItemProposal
	Actor            string
}

// ModifyInput resolves a proposal with buyer-edited terms.
type ModifyInput struct {
	POID         int64
	DeliveryDate time.Time
	Items        []LineInput
	UserEmail    string
}

// ListFilter narrows order listings.
type ListFilter struct {
	View       View
	SupplierID int64
}
