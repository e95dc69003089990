package purchasing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/replenishment/internal/shared"
)

type memoryOrderRepo struct {
	orders         map[int64]PurchaseOrder
	nextID         int64
	failItemInsert bool
}

type memoryOrderTx struct {
	repo *memoryOrderRepo
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: make(map[int64]PurchaseOrder)}
}

func cloneOrder(po PurchaseOrder) PurchaseOrder {
	po.Items = append([]Item(nil), po.Items...)
	return po
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]PurchaseOrder, len(r.orders))
	for id, po := range r.orders {
		snapshot[id] = cloneOrder(po)
	}
	nextID := r.nextID
	if err := fn(ctx, &memoryOrderTx{repo: r}); err != nil {
		r.orders = snapshot
		r.nextID = nextID
		return err
	}
	return nil
}

func (r *memoryOrderRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return cloneOrder(po), nil
}

func (r *memoryOrderRepo) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	out := make([]PurchaseOrder, 0)
	for _, po := range r.orders {
		if filter.SupplierID > 0 && po.SupplierID != filter.SupplierID {
			continue
		}
		var match bool
		switch filter.View {
		case ViewArchived:
			match = po.Status.Terminal()
		case ViewProposed:
			match = po.ProposedStatus == ProposalProposed
		default:
			match = !po.Status.Terminal()
		}
		if match {
			out = append(out, cloneOrder(po))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryOrderRepo) Lineage(ctx context.Context, id int64, limit int) ([]PurchaseOrder, error) {
	chain := make([]PurchaseOrder, 0)
	next := &id
	for next != nil && len(chain) < limit {
		po, ok := r.orders[*next]
		if !ok {
			break
		}
		chain = append(chain, cloneOrder(po))
		next = po.OriginalPOID
	}
	return chain, nil
}

func (t *memoryOrderTx) InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	t.repo.nextID++
	po.ID = t.repo.nextID
	t.repo.orders[po.ID] = po
	return po.ID, nil
}

func (t *memoryOrderTx) InsertItems(ctx context.Context, poID int64, items []Item) error {
	if t.repo.failItemInsert {
		return fmt.Errorf("insert items: %w", shared.ErrStorage)
	}
	po := t.repo.orders[poID]
	po.Items = append([]Item(nil), items...)
	t.repo.orders[poID] = po
	return nil
}

func (t *memoryOrderTx) LockOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return t.repo.GetOrder(ctx, id)
}

func (t *memoryOrderTx) UpdateOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	stored, ok := t.repo.orders[po.ID]
	if !ok || stored.Version != po.Version {
		return 0, ErrConcurrentUpdate
	}
	po.Version++
	po.Items = stored.Items
	t.repo.orders[po.ID] = po
	return po.Version, nil
}

func (t *memoryOrderTx) UpdateItemProposals(ctx context.Context, poID int64, items []Item) error {
	stored := t.repo.orders[poID]
	for _, item := range items {
		for i := range stored.Items {
			if stored.Items[i].ItemID == item.ItemID {
				stored.Items[i].SupplierProposedQuantity = item.SupplierProposedQuantity
				stored.Items[i].SupplierProposedPrice = item.SupplierProposedPrice
			}
		}
	}
	t.repo.orders[poID] = stored
	return nil
}

func (t *memoryOrderTx) Lineage(ctx context.Context, id int64, limit int) ([]PurchaseOrder, error) {
	return t.repo.Lineage(ctx, id, limit)
}

type fakeCatalog struct {
	suppliers map[int64]bool
	items     map[int64]bool
}

func (c fakeCatalog) CheckReferences(ctx context.Context, supplierID int64, itemIDs []int64) error {
	if !c.suppliers[supplierID] {
		return fmt.Errorf("unknown supplier %d: %w", supplierID, shared.ErrValidation)
	}
	for _, id := range itemIDs {
		if !c.items[id] {
			return fmt.Errorf("unknown item %d: %w", id, shared.ErrValidation)
		}
	}
	return nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var (
	testNow      = time.Date(2024, 11, 4, 9, 30, 0, 0, time.UTC)
	testDelivery = time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*Service, *memoryOrderRepo, *memoryAudit) {
	t.Helper()
	repo := newMemoryOrderRepo()
	audit := &memoryAudit{}
	catalog := fakeCatalog{
		suppliers: map[int64]bool{7: true, 8: true},
		items:     map[int64]bool{1: true, 2: true, 3: true},
	}
	svc := NewService(repo, catalog, audit, nil, ServiceConfig{LineageMaxDepth: 4})
	svc.clock = func() time.Time { return testNow }
	return svc, repo, audit
}

func price(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func qty(v int64) *int64 { return &v }

func createTestOrder(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	po, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID:       7,
		ExpectedDelivery: testDelivery,
		CreatedBy:        "buyer@example.com",
		Items: []LineInput{
			{ItemID: 1, Quantity: 46, EstimatedPrice: price("2.50")},
			{ItemID: 2, Quantity: 10},
		},
	})
	require.NoError(t, err)
	return po
}

func TestCreateOrderPersistsPendingOrderWithLines(t *testing.T) {
	svc, repo, audit := newTestService(t)
	po := createTestOrder(t, svc)

	stored, err := repo.GetOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
	require.Equal(t, ProposalNone, stored.ProposedStatus)
	require.Equal(t, shared.Day(testNow), stored.OrderDate)
	require.Len(t, stored.Items, 2)
	for _, item := range stored.Items {
		require.Zero(t, item.ReceivedQuantity)
	}
	require.Len(t, audit.logs, 1)
	require.Equal(t, "purchase_order.created", audit.logs[0].Action)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	base := CreateOrderInput{
		SupplierID:       7,
		ExpectedDelivery: testDelivery,
		CreatedBy:        "buyer@example.com",
		Items:            []LineInput{{ItemID: 1, Quantity: 5}},
	}
	cases := map[string]func(in *CreateOrderInput){
		"empty items":      func(in *CreateOrderInput) { in.Items = nil },
		"missing supplier": func(in *CreateOrderInput) { in.SupplierID = 0 },
		"missing delivery": func(in *CreateOrderInput) { in.ExpectedDelivery = time.Time{} },
		"missing author":   func(in *CreateOrderInput) { in.CreatedBy = "" },
		"zero quantity":    func(in *CreateOrderInput) { in.Items = []LineInput{{ItemID: 1, Quantity: 0}} },
		"negative price":   func(in *CreateOrderInput) { in.Items = []LineInput{{ItemID: 1, Quantity: 1, EstimatedPrice: price("-1")}} },
		"duplicate item":   func(in *CreateOrderInput) { in.Items = []LineInput{{ItemID: 1, Quantity: 1}, {ItemID: 1, Quantity: 2}} },
		"unknown supplier": func(in *CreateOrderInput) { in.SupplierID = 99 },
		"unknown item":     func(in *CreateOrderInput) { in.Items = []LineInput{{ItemID: 42, Quantity: 1}} },
		"unknown original": func(in *CreateOrderInput) { in.OriginalPOID = qty(404) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := base
			mutate(&input)
			_, err := svc.CreateOrder(context.Background(), input)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	require.Empty(t, repo.orders)
}

func TestCreateOrderIsAtomic(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.failItemInsert = true

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID:       7,
		ExpectedDelivery: testDelivery,
		CreatedBy:        "buyer@example.com",
		Items:            []LineInput{{ItemID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrStorage)
	require.Empty(t, repo.orders)
}

func TestTransitionStatusLegality(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusAccepted}:  true,
		{StatusPending, StatusDeclined}:  true,
		{StatusAccepted, StatusShipping}: true,
		{StatusShipping, StatusReceived}: true,
	}
	all := []Status{StatusPending, StatusAccepted, StatusDeclined, StatusShipping, StatusReceived, StatusCompleted}
	for _, from := range all {
		for _, to := range all {
			svc, repo, _ := newTestService(t)
			po := createTestOrder(t, svc)
			stored := repo.orders[po.ID]
			stored.Status = from
			repo.orders[po.ID] = stored

			_, err := svc.TransitionStatus(context.Background(), po.ID, to, "ops@example.com")
			if allowed[[2]Status{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				require.Equal(t, to, repo.orders[po.ID].Status)
				continue
			}
			require.ErrorIs(t, err, shared.ErrStateConflict, "%s -> %s", from, to)
			require.Equal(t, from, repo.orders[po.ID].Status)
			require.Equal(t, int64(1), repo.orders[po.ID].Version)
		}
	}
}

func TestTransitionStampsResponseAndDelivery(t *testing.T) {
	svc, repo, _ := newTestService(t)
	po := createTestOrder(t, svc)
	ctx := context.Background()

	_, err := svc.TransitionStatus(ctx, po.ID, StatusAccepted, "ops@example.com")
	require.NoError(t, err)
	require.NotNil(t, repo.orders[po.ID].RespondedAt)
	require.Nil(t, repo.orders[po.ID].ActualDelivery)

	_, err = svc.TransitionStatus(ctx, po.ID, StatusShipping, "ops@example.com")
	require.NoError(t, err)
	updated, err := svc.TransitionStatus(ctx, po.ID, StatusReceived, "ops@example.com")
	require.NoError(t, err)
	require.NotNil(t, updated.ActualDelivery)
	require.Equal(t, testNow, *updated.ActualDelivery)
	require.Equal(t, int64(4), updated.Version)
}

func TestTransitionPendingToCompletedIsStateConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	po := createTestOrder(t, svc)

	_, err := svc.TransitionStatus(context.Background(), po.ID, StatusCompleted, "ops@example.com")
	require.ErrorIs(t, err, shared.ErrStateConflict)
	require.ErrorIs(t, err, ErrCompletionViaReceiving)
}

func TestTransitionUnknownOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.TransitionStatus(context.Background(), 404, StatusAccepted, "ops@example.com")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.TransitionStatus(context.Background(), 404, Status("Lost"), "ops@example.com")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordSupplierProposal(t *testing.T) {
	svc, repo, _ := newTestService(t)
	po := createTestOrder(t, svc)
	delivery := testDelivery.AddDate(0, 0, 3)

	updated, err := svc.RecordSupplierProposal(context.Background(), ProposalInput{
		POID:             po.ID,
		ProposedDelivery: &delivery,
		Note:             "short on stock",
		Items:            []ItemProposal{{ItemID: 1, Quantity: qty(40), Price: price("2.75")}},
	})
	require.NoError(t, err)
	require.Equal(t, ProposalProposed, updated.ProposedStatus)
	require.Equal(t, delivery, *updated.SupplierProposedDeliver)
	require.Equal(t, "short on stock", *updated.SupplierNote)
	require.Equal(t, testNow, *updated.RespondedAt)

	stored := repo.orders[po.ID]
	line, ok := stored.Line(1)
	require.True(t, ok)
	require.Equal(t, int64(40), *line.SupplierProposedQuantity)
	require.True(t, line.SupplierProposedPrice.Decimal.Equal(decimal.RequireFromString("2.75")))
	untouched, _ := stored.Line(2)
	require.Nil(t, untouched.SupplierProposedQuantity)
}

func TestRecordSupplierProposalRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("while proposed", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		po := createTestOrder(t, svc)
		_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID})
		require.NoError(t, err)
		_, err = svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID})
		require.ErrorIs(t, err, ErrProposalActive)
	})

	t.Run("unknown line", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		po := createTestOrder(t, svc)
		_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID, Items: []ItemProposal{{ItemID: 3, Quantity: qty(1)}}})
		require.ErrorIs(t, err, shared.ErrNotFound)
		require.Equal(t, ProposalNone, repo.orders[po.ID].ProposedStatus)
	})

	t.Run("order no longer pending", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		po := createTestOrder(t, svc)
		_, err := svc.TransitionStatus(ctx, po.ID, StatusAccepted, "ops@example.com")
		require.NoError(t, err)
		_, err = svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID})
		require.ErrorIs(t, err, shared.ErrStateConflict)
	})

	t.Run("negative quantity", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		po := createTestOrder(t, svc)
		_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID, Items: []ItemProposal{{ItemID: 1, Quantity: qty(-1)}}})
		require.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestReproposalAfterDeclineIsAllowed(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	po := createTestOrder(t, svc)

	_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID, Items: []ItemProposal{{ItemID: 1, Quantity: qty(30)}}})
	require.NoError(t, err)
	declined, err := svc.DeclineProposal(ctx, po.ID, "buyer@example.com")
	require.NoError(t, err)
	require.Equal(t, ProposalDeclined, declined.ProposedStatus)
	require.Equal(t, int64(46), declined.Items[0].OrderedQuantity)

	again, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID, Items: []ItemProposal{{ItemID: 1, Quantity: qty(35)}}})
	require.NoError(t, err)
	require.Equal(t, ProposalProposed, again.ProposedStatus)
}

func TestProposalBlocksTransitions(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	po := createTestOrder(t, svc)
	_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID})
	require.NoError(t, err)

	_, err = svc.TransitionStatus(ctx, po.ID, StatusAccepted, "ops@example.com")
	require.ErrorIs(t, err, ErrProposalActive)
	require.Equal(t, StatusPending, repo.orders[po.ID].Status)
}

func TestAcceptProposalCreatesDerivedOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	po := createTestOrder(t, svc)
	delivery := testDelivery.AddDate(0, 0, 5)

	_, err := svc.RecordSupplierProposal(ctx, ProposalInput{
		POID:             po.ID,
		ProposedDelivery: &delivery,
		Items: []ItemProposal{
			{ItemID: 1, Quantity: qty(40), Price: price("2.75")},
			{ItemID: 2, Quantity: qty(0)},
		},
	})
	require.NoError(t, err)

	derived, err := svc.AcceptProposal(ctx, po.ID, "buyer@example.com")
	require.NoError(t, err)
	require.NotEqual(t, po.ID, derived.ID)
	require.Equal(t, po.ID, *derived.OriginalPOID)
	require.Equal(t, StatusPending, derived.Status)
	require.Equal(t, ProposalNone, derived.ProposedStatus)
	require.Equal(t, delivery, derived.ExpectedDelivery)
	require.Len(t, derived.Items, 1, "lines proposed at zero are dropped")
	require.Equal(t, int64(40), derived.Items[0].OrderedQuantity)
	require.True(t, derived.Items[0].EstimatedPrice.Decimal.Equal(decimal.RequireFromString("2.75")))

	original := repo.orders[po.ID]
	require.Equal(t, ProposalAccepted, original.ProposedStatus)
	require.Equal(t, int64(46), original.Items[0].OrderedQuantity)
	require.Equal(t, int64(3), original.Version)

	_, err = svc.TransitionStatus(ctx, po.ID, StatusAccepted, "ops@example.com")
	require.ErrorIs(t, err, ErrOrderSuperseded)
	_, err = svc.AcceptProposal(ctx, po.ID, "buyer@example.com")
	require.ErrorIs(t, err, ErrNoOpenProposal)
	_, err = svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID})
	require.ErrorIs(t, err, ErrOrderSuperseded)
}

func TestAcceptProposalFallsBackToOrderedTerms(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	po := createTestOrder(t, svc)
	_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID, Note: "can ship as ordered"})
	require.NoError(t, err)

	derived, err := svc.AcceptProposal(ctx, po.ID, "")
	require.NoError(t, err)
	require.Equal(t, testDelivery, derived.ExpectedDelivery)
	require.Equal(t, "buyer@example.com", derived.CreatedBy)
	require.Len(t, derived.Items, 2)
	require.True(t, derived.Items[0].EstimatedPrice.Decimal.Equal(decimal.RequireFromString("2.50")))
	require.False(t, derived.Items[1].EstimatedPrice.Valid)
}

func TestModifyProposalUsesBuyerTerms(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	po := createTestOrder(t, svc)
	_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID, Items: []ItemProposal{{ItemID: 1, Quantity: qty(40)}}})
	require.NoError(t, err)

	userDate := testDelivery.AddDate(0, 0, 2)
	derived, err := svc.ModifyProposal(ctx, ModifyInput{
		POID:         po.ID,
		DeliveryDate: userDate,
		Items:        []LineInput{{ItemID: 1, Quantity: 44, EstimatedPrice: price("2.60")}},
		UserEmail:    "lead@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, po.ID, *derived.OriginalPOID)
	require.Equal(t, "lead@example.com", derived.CreatedBy)
	require.Equal(t, userDate, derived.ExpectedDelivery)
	require.Len(t, derived.Items, 1)
	require.Equal(t, int64(44), derived.Items[0].OrderedQuantity)
	require.Equal(t, ProposalModified, repo.orders[po.ID].ProposedStatus)
}

func TestModifyProposalRejectsForeignLines(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	po := createTestOrder(t, svc)
	_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID})
	require.NoError(t, err)

	_, err = svc.ModifyProposal(ctx, ModifyInput{
		POID:         po.ID,
		DeliveryDate: testDelivery,
		Items:        []LineInput{{ItemID: 3, Quantity: 1}},
		UserEmail:    "lead@example.com",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Len(t, repo.orders, 1)
	require.Equal(t, ProposalProposed, repo.orders[po.ID].ProposedStatus)
}

func TestDeclineWithoutProposalIsConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	po := createTestOrder(t, svc)
	_, err := svc.DeclineProposal(context.Background(), po.ID, "buyer@example.com")
	require.ErrorIs(t, err, ErrNoOpenProposal)
}

func TestStaleVersionIsRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	po := createTestOrder(t, svc)

	stale := repo.orders[po.ID]
	tx := &memoryOrderTx{repo: repo}
	_, err := tx.UpdateOrder(context.Background(), stale)
	require.NoError(t, err)
	_, err = tx.UpdateOrder(context.Background(), stale)
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestQueriesPartitionOrders(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	active := createTestOrder(t, svc)
	proposed := createTestOrder(t, svc)
	declined := createTestOrder(t, svc)
	completed := createTestOrder(t, svc)

	_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: proposed.ID})
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, declined.ID, StatusDeclined, "ops@example.com")
	require.NoError(t, err)
	stored := repo.orders[completed.ID]
	stored.Status = StatusCompleted
	repo.orders[completed.ID] = stored

	ids := func(orders []PurchaseOrder, err error) []int64 {
		require.NoError(t, err)
		out := make([]int64, 0, len(orders))
		for _, po := range orders {
			out = append(out, po.ID)
		}
		return out
	}
	require.ElementsMatch(t, []int64{active.ID, proposed.ID}, ids(svc.ListActiveOrders(ctx)))
	require.ElementsMatch(t, []int64{declined.ID, completed.ID}, ids(svc.ListArchivedOrders(ctx)))
	require.ElementsMatch(t, []int64{proposed.ID}, ids(svc.ListProposedOrders(ctx)))

	got, err := svc.GetOrder(ctx, active.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	_, err = svc.GetOrder(ctx, 999)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.ListOrders(ctx, ListFilter{View: "everything"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestLineageFollowsChainToRoot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	root := createTestOrder(t, svc)

	current := root
	for i := 0; i < 2; i++ {
		_, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: current.ID})
		require.NoError(t, err)
		current, err = svc.AcceptProposal(ctx, current.ID, "buyer@example.com")
		require.NoError(t, err)
	}

	chain, err := svc.GetLineage(ctx, current.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	require.Equal(t, current.ID, chain[0].ID)
	require.Equal(t, root.ID, chain[2].ID)
	require.Nil(t, chain[2].OriginalPOID)

	_, err = svc.GetLineage(ctx, 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLineageDepthIsBounded(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	current := createTestOrder(t, svc)

	var err error
	for i := 0; i < 3; i++ {
		_, err = svc.RecordSupplierProposal(ctx, ProposalInput{POID: current.ID})
		require.NoError(t, err)
		current, err = svc.AcceptProposal(ctx, current.ID, "buyer@example.com")
		require.NoError(t, err)
	}
	// Chain is now at the configured depth of 4; one more derivation must fail.
	_, err = svc.RecordSupplierProposal(ctx, ProposalInput{POID: current.ID})
	require.NoError(t, err)
	_, err = svc.AcceptProposal(ctx, current.ID, "buyer@example.com")
	require.ErrorIs(t, err, ErrLineageTooDeep)
	require.Equal(t, ProposalProposed, func() ProposalStatus {
		po, getErr := svc.GetOrder(ctx, current.ID)
		require.NoError(t, getErr)
		return po.ProposedStatus
	}())
}

func TestLineageDetectsCycle(t *testing.T) {
	svc, repo, _ := newTestService(t)
	a := createTestOrder(t, svc)
	b := createTestOrder(t, svc)
	storedA, storedB := repo.orders[a.ID], repo.orders[b.ID]
	storedA.OriginalPOID, storedB.OriginalPOID = &b.ID, &a.ID
	repo.orders[a.ID], repo.orders[b.ID] = storedA, storedB

	_, err := svc.GetLineage(context.Background(), a.ID)
	require.True(t, errors.Is(err, ErrLineageCycle))
}

// Item X: threshold 10, average 50, on hand 4 -> need 46; supplier counters
// with 40 and the buyer accepts.
func TestNegotiationScenario(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	po, err := svc.CreateOrder(ctx, CreateOrderInput{
		SupplierID:       7,
		ExpectedDelivery: testDelivery,
		CreatedBy:        "replenishment@system",
		Items:            []LineInput{{ItemID: 1, Quantity: 46}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, po.Status)

	proposed, err := svc.RecordSupplierProposal(ctx, ProposalInput{POID: po.ID, Items: []ItemProposal{{ItemID: 1, Quantity: qty(40)}}})
	require.NoError(t, err)
	require.Equal(t, ProposalProposed, proposed.ProposedStatus)

	derived, err := svc.AcceptProposal(ctx, po.ID, "buyer@example.com")
	require.NoError(t, err)
	require.Equal(t, po.ID, *derived.OriginalPOID)
	require.Equal(t, StatusPending, derived.Status)
	require.Equal(t, int64(40), derived.Items[0].OrderedQuantity)
	require.Equal(t, ProposalAccepted, repo.orders[po.ID].ProposedStatus)
}
