package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/replenishment/internal/shared"
)

// MaxLocationLength bounds storage location codes.
const MaxLocationLength = 64

var (
	// ErrInvalidBatchKey indicates an incomplete batch key.
	ErrInvalidBatchKey = fmt.Errorf("inventory: invalid batch key: %w", shared.ErrValidation)
	// ErrInvalidQuantity indicates a negative posting.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must not be negative: %w", shared.ErrValidation)
)

// BatchKey identifies one batch: an item at an expiration date in a location.
type BatchKey struct {
	ItemID          int64     `json:"item_id"`
	ExpirationDate  time.Time `json:"expiration_date"`
	StorageLocation string    `json:"storage_location"`
}

// NewBatchKey validates and normalises a key. The expiration date is reduced
// to its UTC calendar day and the location is trimmed so equal batches
// always compare equal.
func NewBatchKey(itemID int64, expiration time.Time, location string) (BatchKey, error) {
	location = strings.TrimSpace(location)
	switch {
	case itemID <= 0:
		return BatchKey{}, fmt.Errorf("%w: item id %d", ErrInvalidBatchKey, itemID)
	case expiration.IsZero():
		return BatchKey{}, fmt.Errorf("%w: expiration date required", ErrInvalidBatchKey)
	case location == "":
		return BatchKey{}, fmt.Errorf("%w: storage location required", ErrInvalidBatchKey)
	case len(location) > MaxLocationLength:
		return BatchKey{}, fmt.Errorf("%w: storage location longer than %d", ErrInvalidBatchKey, MaxLocationLength)
	}
	return BatchKey{ItemID: itemID, ExpirationDate: shared.Day(expiration), StorageLocation: location}, nil
}

// Batch is the on-hand quantity stored under one key.
type Batch struct {
	BatchKey
	Quantity     int64     `json:"quantity"`
	DateReceived time.Time `json:"date_received"`
}

// Posting adds quantity to the batch identified by Key, creating it when missing.
type Posting struct {
	Key        BatchKey
	Quantity   int64
	ReceivedAt time.Time
}

// Validate checks the posting before it reaches storage.
func (p Posting) Validate() error {
	if p.Quantity < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, p.Quantity)
	}
	if _, err := NewBatchKey(p.Key.ItemID, p.Key.ExpirationDate, p.Key.StorageLocation); err != nil {
		return err
	}
	return nil
}

// StockSummary reports the batches of an item and their total.
type StockSummary struct {
	ItemID  int64   `json:"item_id"`
	OnHand  int64   `json:"on_hand"`
	Batches []Batch `json:"batches"`
}
