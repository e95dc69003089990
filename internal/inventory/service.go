package inventory

import (
	"context"

	"github.com/odyssey-erp/replenishment/internal/catalog"
)

// RepositoryPort abstracts batch reads for the service.
type RepositoryPort interface {
	ListBatches(ctx context.Context, itemID int64, includeEmpty bool) ([]Batch, error)
	OnHand(ctx context.Context, itemID int64) (int64, error)
}

// CatalogPort resolves items so unknown ids surface as not found.
type CatalogPort interface {
	GetItem(ctx context.Context, id int64) (catalog.Item, error)
}

// Service exposes read access to the inventory ledger. Writes go through
// TxWriter inside the receiving transaction.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
}

// NewService builds Service. catalog may be nil.
func NewService(repo RepositoryPort, catalog CatalogPort) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// ListBatches returns the batches of an item. Empty batches are kept in
// storage and only listed on request.
func (s *Service) ListBatches(ctx context.Context, itemID int64, includeEmpty bool) ([]Batch, error) {
	if err := s.ensureItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListBatches(ctx, itemID, includeEmpty)
}

// OnHand returns the total quantity of an item across batches.
func (s *Service) OnHand(ctx context.Context, itemID int64) (int64, error) {
	if err := s.ensureItem(ctx, itemID); err != nil {
		return 0, err
	}
	return s.repo.OnHand(ctx, itemID)
}

// Summary combines the batch list and its total.
func (s *Service) Summary(ctx context.Context, itemID int64, includeEmpty bool) (StockSummary, error) {
	batches, err := s.ListBatches(ctx, itemID, includeEmpty)
	if err != nil {
		return StockSummary{}, err
	}
	var total int64
	for _, b := range batches {
		total += b.Quantity
	}
	return StockSummary{ItemID: itemID, OnHand: total, Batches: batches}, nil
}

func (s *Service) ensureItem(ctx context.Context, itemID int64) error {
	if itemID <= 0 {
		return catalog.ErrItemNotFound
	}
	if s.catalog == nil {
		return nil
	}
	_, err := s.catalog.GetItem(ctx, itemID)
	return err
}
