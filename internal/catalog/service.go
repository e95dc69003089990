package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/replenishment/internal/replenishment"
)

// RepositoryPort abstracts catalog storage for the service.
type RepositoryPort interface {
	GetItem(ctx context.Context, id int64) (Item, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliersForItem(ctx context.Context, itemID int64) ([]Supplier, error)
	MissingItems(ctx context.Context, ids []int64) ([]int64, error)
}

// LowStockSource produces the current replenishment plan.
type LowStockSource interface {
	Scan(ctx context.Context) (replenishment.Plan, error)
}

// Service exposes the catalog read interface.
type Service struct {
	repo     RepositoryPort
	lowStock LowStockSource
}

// NewService builds Service. lowStock may be nil when candidate listing is not needed.
func NewService(repo RepositoryPort, lowStock LowStockSource) *Service {
	return &Service{repo: repo, lowStock: lowStock}
}

// GetItem returns a single item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, ErrItemNotFound
	}
	return s.repo.GetItem(ctx, id)
}

// GetSupplier returns a single supplier.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, ErrSupplierNotFound
	}
	return s.repo.GetSupplier(ctx, id)
}

// GetSuppliersForItem lists the suppliers of an existing item, lowest id first.
// An item without suppliers yields an empty slice.
func (s *Service) GetSuppliersForItem(ctx context.Context, itemID int64) ([]Supplier, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	suppliers, err := s.repo.ListSuppliersForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if suppliers == nil {
		suppliers = []Supplier{}
	}
	return suppliers, nil
}

// ListLowStockCandidates returns the under-stocked items grouped by resolved supplier.
func (s *Service) ListLowStockCandidates(ctx context.Context) ([]replenishment.SupplierGroup, error) {
	if s.lowStock == nil {
		return nil, errors.New("catalog: low stock source not configured")
	}
	plan, err := s.lowStock.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return plan.Groups, nil
}

// CheckReferences verifies that a supplier and every item exist. Unknown
// references are validation failures of the calling command.
func (s *Service) CheckReferences(ctx context.Context, supplierID int64, itemIDs []int64) error {
	if _, err := s.repo.GetSupplier(ctx, supplierID); err != nil {
		if errors.Is(err, ErrSupplierNotFound) {
			return fmt.Errorf("%w: %d", ErrUnknownSupplier, supplierID)
		}
		return err
	}
	missing, err := s.repo.MissingItems(ctx, itemIDs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrUnknownItem, missing)
	}
	return nil
}
