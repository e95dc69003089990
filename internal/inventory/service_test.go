package inventory

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/replenishment/internal/catalog"
	"github.com/odyssey-erp/replenishment/internal/shared"
)

type memoryRepo struct {
	batches []Batch
}

func (r *memoryRepo) ListBatches(ctx context.Context, itemID int64, includeEmpty bool) ([]Batch, error) {
	out := make([]Batch, 0)
	for _, b := range r.batches {
		if b.ItemID != itemID || (!includeEmpty && b.Quantity == 0) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *memoryRepo) OnHand(ctx context.Context, itemID int64) (int64, error) {
	var total int64
	for _, b := range r.batches {
		if b.ItemID == itemID {
			total += b.Quantity
		}
	}
	return total, nil
}

type fakeCatalog map[int64]catalog.Item

func (c fakeCatalog) GetItem(ctx context.Context, id int64) (catalog.Item, error) {
	item, ok := c[id]
	if !ok {
		return catalog.Item{}, catalog.ErrItemNotFound
	}
	return item, nil
}

func mustKey(t *testing.T, itemID int64, expiry string, location string) BatchKey {
	t.Helper()
	day, err := time.Parse(shared.DateLayout, expiry)
	require.NoError(t, err)
	key, err := NewBatchKey(itemID, day, location)
	require.NoError(t, err)
	return key
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{batches: []Batch{
		{BatchKey: mustKey(t, 1, "2025-01-01", "A1"), Quantity: 4},
		{BatchKey: mustKey(t, 1, "2025-02-01", "B2"), Quantity: 0},
		{BatchKey: mustKey(t, 2, "2025-01-01", "A1"), Quantity: 9},
	}}
	return NewService(repo, fakeCatalog{1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3}}), repo
}

func TestNewBatchKeyNormalises(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	key, err := NewBatchKey(5, time.Date(2025, 1, 1, 1, 0, 0, 0, loc), "  A1 ")
	require.NoError(t, err)
	require.Equal(t, "A1", key.StorageLocation)
	require.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), key.ExpirationDate)
}

func TestNewBatchKeyValidation(t *testing.T) {
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewBatchKey(0, expiry, "A1")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = NewBatchKey(1, time.Time{}, "A1")
	require.ErrorIs(t, err, ErrInvalidBatchKey)
	_, err = NewBatchKey(1, expiry, "   ")
	require.ErrorIs(t, err, ErrInvalidBatchKey)

	require.ErrorIs(t, Posting{Key: BatchKey{ItemID: 1, ExpirationDate: expiry, StorageLocation: "A1"}, Quantity: -1}.Validate(), ErrInvalidQuantity)
}

func TestSummaryHidesEmptyBatchesByDefault(t *testing.T) {
	svc, _ := newTestService(t)
	summary, err := svc.Summary(context.Background(), 1, false)
	require.NoError(t, err)
	require.Equal(t, int64(4), summary.OnHand)
	require.Len(t, summary.Batches, 1)

	summary, err = svc.Summary(context.Background(), 1, true)
	require.NoError(t, err)
	require.Len(t, summary.Batches, 2)

	total, err := svc.OnHand(context.Background(), 3)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestUnknownItemIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ListBatches(context.Background(), 42, false)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.OnHand(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHandlerListsBatches(t *testing.T) {
	svc, _ := newTestService(t)
	r := chi.NewRouter()
	r.Route("/inventory", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/inventory/items/2/batches", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"item_id":2,"on_hand":9,"batches":[{"item_id":2,"expiration_date":"2025-01-01T00:00:00Z","storage_location":"A1","quantity":9,"date_received":"0001-01-01T00:00:00Z"}]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/inventory/items/77/batches", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
