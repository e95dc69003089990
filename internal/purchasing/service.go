package purchasing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/replenishment/internal/shared"
)

// RepositoryPort abstracts order storage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error)
	Lineage(ctx context.Context, id int64, limit int) ([]PurchaseOrder, error)
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertItems(ctx context.Context, poID int64, items []Item) error
	LockOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdateOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdateItemProposals(ctx context.Context, poID int64, items []Item) error
	Lineage(ctx context.Context, id int64, limit int) ([]PurchaseOrder, error)
}

// CatalogPort verifies foreign references before an order is written.
type CatalogPort interface {
	CheckReferences(ctx context.Context, supplierID int64, itemIDs []int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	LineageMaxDepth int
}

// Service owns the purchase order lifecycle.
type Service struct {
	repo     RepositoryPort
	catalog  CatalogPort
	audit    AuditPort
	observer shared.CommandObserver
	maxDepth int
	clock    func() time.Time
}

// NewService builds Service. catalog, audit and observer may be nil.
func NewService(repo RepositoryPort, catalog CatalogPort, audit AuditPort, observer shared.CommandObserver, cfg ServiceConfig) *Service {
	depth := cfg.LineageMaxDepth
	if depth <= 0 {
		depth = 32
	}
	return &Service{
		repo:     repo,
		catalog:  catalog,
		audit:    audit,
		observer: observer,
		maxDepth: depth,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateOrder persists a new Pending order with its lines atomically.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (po PurchaseOrder, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "purchasing.create_order", start, err) }(time.Now())

	if err := validateCreate(input); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.checkReferences(ctx, input.SupplierID, input.Items); err != nil {
		return PurchaseOrder{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := s.createInTx(ctx, tx, input)
		if err != nil {
			return err
		}
		po = created
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.CreatedBy, "purchase_order.created", po.ID, map[string]any{
		"supplier_id":    po.SupplierID,
		"lines":          len(po.Items),
		"original_po_id": po.OriginalPOID,
	})
	return po, nil
}

// RecordSupplierProposal opens a counter-proposal on a Pending order.
func (s *Service) RecordSupplierProposal(ctx context.Context, input ProposalInput) (po PurchaseOrder, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "purchasing.record_proposal", start, err) }(time.Now())

	if err := validateProposal(input); err != nil {
		return PurchaseOrder{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockOrder(ctx, input.POID)
		if err != nil {
			return err
		}
		if err := current.CanRecordProposal(); err != nil {
			return err
		}
		byItem := make(map[int64]ItemProposal, len(input.Items))
		for _, proposal := range input.Items {
			if _, ok := current.Line(proposal.ItemID); !ok {
				return fmt.Errorf("%w: item %d on order %d", ErrOrderLineNotFound, proposal.ItemID, current.ID)
			}
			byItem[proposal.ItemID] = proposal
		}
		for i := range current.Items {
			line := &current.Items[i]
			proposal, ok := byItem[line.ItemID]
			if !ok {
				line.SupplierProposedQuantity = nil
				line.SupplierProposedPrice = decimal.NullDecimal{}
				continue
			}
			line.SupplierProposedQuantity = proposal.Quantity
			line.SupplierProposedPrice = proposal.Price
		}

		now := s.clock()
		current.ProposedStatus = ProposalProposed
		current.SupplierProposedDeliver = dayPtr(input.ProposedDelivery)
		current.SupplierNote = nil
		if input.Note != "" {
			note := input.Note
			current.SupplierNote = &note
		}
		if current.RespondedAt == nil {
			current.RespondedAt = &now
		}
		if err := ValidateCombination(current.Status, current.ProposedStatus); err != nil {
			return err
		}
		if err := tx.UpdateItemProposals(ctx, current.ID, current.Items); err != nil {
			return err
		}
		version, err := tx.UpdateOrder(ctx, current)
		if err != nil {
			return err
		}
		current.Version = version
		po = current
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.Actor, "purchase_order.proposal_recorded", po.ID, map[string]any{
		"proposed_deliver": po.SupplierProposedDeliver,
		"lines":            len(input.Items),
	})
	return po, nil
}

// AcceptProposal derives a new Pending order from the supplier's proposed
// terms and marks the original proposal Accepted.
func (s *Service) AcceptProposal(ctx context.Context, poID int64, actor string) (derived PurchaseOrder, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "purchasing.accept_proposal", start, err) }(time.Now())

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.LockOrder(ctx, poID)
		if err != nil {
			return err
		}
		if original.ProposedStatus != ProposalProposed {
			return ErrNoOpenProposal
		}
		input := CreateOrderInput{
			SupplierID:       original.SupplierID,
			ExpectedDelivery: original.ExpectedDelivery,
			CreatedBy:        actor,
			OriginalPOID:     &original.ID,
		}
		if original.SupplierProposedDeliver != nil {
			input.ExpectedDelivery = *original.SupplierProposedDeliver
		}
		if input.CreatedBy == "" {
			input.CreatedBy = original.CreatedBy
		}
		for _, line := range original.Items {
			qty := line.OrderedQuantity
			if line.SupplierProposedQuantity != nil {
				qty = *line.SupplierProposedQuantity
			}
			if qty == 0 {
				continue
			}
			price := line.EstimatedPrice
			if line.SupplierProposedPrice.Valid {
				price = line.SupplierProposedPrice
			}
			input.Items = append(input.Items, LineInput{ItemID: line.ItemID, Quantity: qty, EstimatedPrice: price})
		}
		if err := validateCreate(input); err != nil {
			return err
		}
		created, err := s.createInTx(ctx, tx, input)
		if err != nil {
			return err
		}
		if err := s.resolve(ctx, tx, original, ProposalAccepted); err != nil {
			return err
		}
		derived = created
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, derived.CreatedBy, "purchase_order.proposal_accepted", poID, map[string]any{"derived_po_id": derived.ID})
	return derived, nil
}

// ModifyProposal derives a new Pending order from buyer-edited terms and marks
// the original proposal Modified. Lines omitted from the input are dropped.
func (s *Service) ModifyProposal(ctx context.Context, input ModifyInput) (derived PurchaseOrder, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "purchasing.modify_proposal", start, err) }(time.Now())

	if input.DeliveryDate.IsZero() {
		return PurchaseOrder{}, ErrDeliveryRequired
	}
	if input.UserEmail == "" {
		return PurchaseOrder{}, ErrCreatedByRequired
	}
	if err := validateLines(input.Items); err != nil {
		return PurchaseOrder{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.LockOrder(ctx, input.POID)
		if err != nil {
			return err
		}
		if original.ProposedStatus != ProposalProposed {
			return ErrNoOpenProposal
		}
		for _, line := range input.Items {
			if _, ok := original.Line(line.ItemID); !ok {
				return fmt.Errorf("%w: item %d on order %d", ErrOrderLineNotFound, line.ItemID, original.ID)
			}
		}
		created, err := s.createInTx(ctx, tx, CreateOrderInput{
			SupplierID:       original.SupplierID,
			ExpectedDelivery: input.DeliveryDate,
			Items:            input.Items,
			CreatedBy:        input.UserEmail,
			OriginalPOID:     &original.ID,
		})
		if err != nil {
			return err
		}
		if err := s.resolve(ctx, tx, original, ProposalModified); err != nil {
			return err
		}
		derived = created
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.UserEmail, "purchase_order.proposal_modified", input.POID, map[string]any{"derived_po_id": derived.ID})
	return derived, nil
}

// DeclineProposal closes the open proposal; the original terms stand.
func (s *Service) DeclineProposal(ctx context.Context, poID int64, actor string) (po PurchaseOrder, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "purchasing.decline_proposal", start, err) }(time.Now())

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockOrder(ctx, poID)
		if err != nil {
			return err
		}
		if err := current.ResolveProposal(ProposalDeclined); err != nil {
			return err
		}
		version, err := tx.UpdateOrder(ctx, current)
		if err != nil {
			return err
		}
		current.Version = version
		po = current
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, "purchase_order.proposal_declined", poID, nil)
	return po, nil
}

// TransitionStatus moves an order along the fulfillment state machine.
func (s *Service) TransitionStatus(ctx context.Context, poID int64, to Status, actor string) (po PurchaseOrder, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "purchasing.transition_status", start, err) }(time.Now())

	if !to.Valid() {
		return PurchaseOrder{}, fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	var from Status
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockOrder(ctx, poID)
		if err != nil {
			return err
		}
		from = current.Status
		if err := current.Transition(to, s.clock()); err != nil {
			return err
		}
		version, err := tx.UpdateOrder(ctx, current)
		if err != nil {
			return err
		}
		current.Version = version
		po = current
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, "purchase_order.status_changed", poID, map[string]any{"from": from, "to": to})
	return po, nil
}

// GetOrder returns an order with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	if id <= 0 {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return s.repo.GetOrder(ctx, id)
}

// ListOrders lists the orders of one view.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	switch filter.View {
	case ViewActive, ViewArchived, ViewProposed:
	case "":
		filter.View = ViewActive
	default:
		return nil, fmt.Errorf("%w: unknown view %q", shared.ErrValidation, filter.View)
	}
	return s.repo.ListOrders(ctx, filter)
}

// ListActiveOrders lists orders whose status is neither Completed nor Declined.
func (s *Service) ListActiveOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, ListFilter{View: ViewActive})
}

// ListArchivedOrders lists Completed and Declined orders.
func (s *Service) ListArchivedOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, ListFilter{View: ViewArchived})
}

// ListProposedOrders lists orders with an open supplier proposal.
func (s *Service) ListProposedOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, ListFilter{View: ViewProposed})
}

// GetLineage returns the order followed by each order it was derived from,
// ending at the root.
func (s *Service) GetLineage(ctx context.Context, id int64) ([]PurchaseOrder, error) {
	chain, err := s.repo.Lineage(ctx, id, s.maxDepth+1)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, ErrOrderNotFound
	}
	if err := s.checkChain(chain); err != nil {
		return nil, err
	}
	return chain, nil
}

func (s *Service) createInTx(ctx context.Context, tx TxRepository, input CreateOrderInput) (PurchaseOrder, error) {
	if input.OriginalPOID != nil {
		chain, err := tx.Lineage(ctx, *input.OriginalPOID, s.maxDepth)
		if err != nil {
			return PurchaseOrder{}, err
		}
		if len(chain) == 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: %d", ErrUnknownOriginal, *input.OriginalPOID)
		}
		// The new order extends the chain by one.
		if err := s.checkChain(append(chain, PurchaseOrder{})); err != nil {
			return PurchaseOrder{}, err
		}
	}
	now := s.clock()
	po := PurchaseOrder{
		SupplierID:       input.SupplierID,
		OrderDate:        shared.Day(now),
		ExpectedDelivery: shared.Day(input.ExpectedDelivery),
		Status:           StatusPending,
		CreatedBy:        input.CreatedBy,
		OriginalPOID:     input.OriginalPOID,
		ProposedStatus:   ProposalNone,
		Version:          1,
	}
	id, err := tx.InsertOrder(ctx, po)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.ID = id
	po.Items = make([]Item, 0, len(input.Items))
	for _, line := range input.Items {
		po.Items = append(po.Items, Item{
			POID:            id,
			ItemID:          line.ItemID,
			OrderedQuantity: line.Quantity,
			EstimatedPrice:  line.EstimatedPrice,
		})
	}
	if err := tx.InsertItems(ctx, id, po.Items); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (s *Service) resolve(ctx context.Context, tx TxRepository, original PurchaseOrder, outcome ProposalStatus) error {
	if err := original.ResolveProposal(outcome); err != nil {
		return err
	}
	if err := ValidateCombination(original.Status, original.ProposedStatus); err != nil {
		return err
	}
	_, err := tx.UpdateOrder(ctx, original)
	return err
}

// checkChain verifies a lineage slice, as returned with limit maxDepth+1,
// terminates without revisiting an order.
func (s *Service) checkChain(chain []PurchaseOrder) error {
	seen := make(map[int64]struct{}, len(chain))
	for _, po := range chain {
		if po.ID == 0 {
			continue
		}
		if _, dup := seen[po.ID]; dup {
			return fmt.Errorf("%w: order %d", ErrLineageCycle, po.ID)
		}
		seen[po.ID] = struct{}{}
	}
	if len(chain) > s.maxDepth {
		return fmt.Errorf("%w: limit %d", ErrLineageTooDeep, s.maxDepth)
	}
	return nil
}

func (s *Service) checkReferences(ctx context.Context, supplierID int64, lines []LineInput) error {
	if s.catalog == nil {
		return nil
	}
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	return s.catalog.CheckReferences(ctx, supplierID, ids)
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, poID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:         actor,
		Action:        action,
		Entity:        shared.AuditEntityPurchaseOrder,
		EntityID:      strconv.FormatInt(poID, 10),
		CorrelationID: uuid.NewString(),
		Meta:          meta,
		At:            s.clock(),
	})
}

func validateCreate(input CreateOrderInput) error {
	if input.SupplierID <= 0 {
		return ErrSupplierRequired
	}
	if input.ExpectedDelivery.IsZero() {
		return ErrDeliveryRequired
	}
	if input.CreatedBy == "" {
		return ErrCreatedByRequired
	}
	return validateLines(input.Items)
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return ErrItemsRequired
	}
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if line.ItemID <= 0 {
			return fmt.Errorf("%w: invalid item id %d", shared.ErrValidation, line.ItemID)
		}
		if _, dup := seen[line.ItemID]; dup {
			return fmt.Errorf("%w: item %d", ErrDuplicateItem, line.ItemID)
		}
		seen[line.ItemID] = struct{}{}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: item %d", ErrInvalidQuantity, line.ItemID)
		}
		if line.EstimatedPrice.Valid && line.EstimatedPrice.Decimal.IsNegative() {
			return fmt.Errorf("%w: item %d", ErrInvalidPrice, line.ItemID)
		}
	}
	return nil
}

func validateProposal(input ProposalInput) error {
	seen := make(map[int64]struct{}, len(input.Items))
	for _, proposal := range input.Items {
		if _, dup := seen[proposal.ItemID]; dup {
			return fmt.Errorf("%w: item %d", ErrDuplicateItem, proposal.ItemID)
		}
		seen[proposal.ItemID] = struct{}{}
		if proposal.Quantity != nil && *proposal.Quantity < 0 {
			return fmt.Errorf("%w: proposed quantity for item %d", shared.ErrValidation, proposal.ItemID)
		}
		if proposal.Price.Valid && proposal.Price.Decimal.IsNegative() {
			return fmt.Errorf("%w: item %d", ErrInvalidPrice, proposal.ItemID)
		}
	}
	return nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	day := shared.Day(*t)
	return &day
}
