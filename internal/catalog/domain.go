package catalog

import (
	"fmt"

	"github.com/odyssey-erp/replenishment/internal/shared"
)

// Item is a stocked article with its reorder parameters.
type Item struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Threshold       int64  `json:"threshold"`
	AverageRequired int64  `json:"average_required"`
}

// Supplier is a vendor orders can be placed with.
type Supplier struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

var (
	// ErrItemNotFound indicates the requested item does not exist.
	ErrItemNotFound = fmt.Errorf("catalog: item not found: %w", shared.ErrNotFound)
	// ErrSupplierNotFound indicates the requested supplier does not exist.
	ErrSupplierNotFound = fmt.Errorf("catalog: supplier not found: %w", shared.ErrNotFound)
	// ErrUnknownItem flags an item reference inside a command payload.
	ErrUnknownItem = fmt.Errorf("catalog: unknown item: %w", shared.ErrValidation)
	// ErrUnknownSupplier flags a supplier reference inside a command payload.
	ErrUnknownSupplier = fmt.Errorf("catalog: unknown supplier: %w", shared.ErrValidation)
)
