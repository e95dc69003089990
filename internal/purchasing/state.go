package purchasing

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/replenishment/internal/shared"
)

var (
	// ErrOrderNotFound indicates the purchase order does not exist.
	ErrOrderNotFound = fmt.Errorf("purchasing: order not found: %w", shared.ErrNotFound)
	// ErrOrderLineNotFound indicates the item is not a line of the order.
	ErrOrderLineNotFound = fmt.Errorf("purchasing: order line not found: %w", shared.ErrNotFound)

	// ErrInvalidTransition indicates the fulfillment transition is not allowed.
	ErrInvalidTransition = fmt.Errorf("purchasing: invalid status transition: %w", shared.ErrStateConflict)
	// ErrCompletionViaReceiving rejects direct completion; only receiving completes orders.
	ErrCompletionViaReceiving = fmt.Errorf("purchasing: orders are completed by receiving: %w", shared.ErrStateConflict)
	// ErrProposalActive rejects commands while a supplier proposal is open.
	ErrProposalActive = fmt.Errorf("purchasing: supplier proposal is open: %w", shared.ErrStateConflict)
	// ErrNoOpenProposal rejects proposal resolution when nothing is proposed.
	ErrNoOpenProposal = fmt.Errorf("purchasing: no open supplier proposal: %w", shared.ErrStateConflict)
	// ErrOrderSuperseded rejects changes to an order replaced by a derived order.
	ErrOrderSuperseded = fmt.Errorf("purchasing: order superseded by a derived order: %w", shared.ErrStateConflict)
	// ErrInvalidCombination flags a status and proposal pair that cannot coexist.
	ErrInvalidCombination = fmt.Errorf("purchasing: invalid status/proposal combination: %w", shared.ErrStateConflict)
	// ErrConcurrentUpdate indicates the order changed since it was read.
	ErrConcurrentUpdate = fmt.Errorf("purchasing: order modified concurrently: %w", shared.ErrStateConflict)
	// ErrLineageCycle indicates the original order chain loops.
	ErrLineageCycle = fmt.Errorf("purchasing: lineage chain contains a cycle: %w", shared.ErrStateConflict)
	// ErrLineageTooDeep indicates the chain exceeds the configured depth.
	ErrLineageTooDeep = fmt.Errorf("purchasing: lineage chain too deep: %w", shared.ErrStateConflict)

	// ErrSupplierRequired indicates a missing supplier.
	ErrSupplierRequired = fmt.Errorf("purchasing: supplier required: %w", shared.ErrValidation)
	// ErrItemsRequired indicates an order without lines.
	ErrItemsRequired = fmt.Errorf("purchasing: at least one item required: %w", shared.ErrValidation)
	// ErrDuplicateItem indicates the same item appears twice.
	ErrDuplicateItem = fmt.Errorf("purchasing: duplicate item line: %w", shared.ErrValidation)
	// ErrInvalidQuantity indicates a non-positive ordered quantity.
	ErrInvalidQuantity = fmt.Errorf("purchasing: quantity must be positive: %w", shared.ErrValidation)
	// ErrInvalidPrice indicates a negative price.
	ErrInvalidPrice = fmt.Errorf("purchasing: price must not be negative: %w", shared.ErrValidation)
	// ErrDeliveryRequired indicates a missing expected delivery date.
	ErrDeliveryRequired = fmt.Errorf("purchasing: expected delivery required: %w", shared.ErrValidation)
	// ErrCreatedByRequired indicates a missing author.
	ErrCreatedByRequired = fmt.Errorf("purchasing: created by required: %w", shared.ErrValidation)
	// ErrUnknownOriginal indicates originalPoId references no order.
	ErrUnknownOriginal = fmt.Errorf("purchasing: original order does not exist: %w", shared.ErrValidation)
	// ErrUnknownStatus indicates a status value outside the enum.
	ErrUnknownStatus = fmt.Errorf("purchasing: unknown status: %w", shared.ErrValidation)
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusDeclined},
	StatusAccepted: {StatusShipping},
	StatusShipping: {StatusReceived},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusShipping, StatusReceived, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further fulfillment change is possible.
func (s Status) Terminal() bool {
	return s == StatusDeclined || s == StatusCompleted
}

// CanTransition reports whether from -> to is an allowed fulfillment step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether p is a known proposal status.
func (p ProposalStatus) Valid() bool {
	switch p {
	case ProposalNone, ProposalProposed, ProposalAccepted, ProposalDeclined, ProposalModified:
		return true
	}
	return false
}

// Terminal reports whether the proposal has been resolved.
func (p ProposalStatus) Terminal() bool {
	return p == ProposalAccepted || p == ProposalDeclined || p == ProposalModified
}

// Superseded reports whether resolving the proposal produced a derived order.
func (p ProposalStatus) Superseded() bool {
	return p == ProposalAccepted || p == ProposalModified
}

// ValidateCombination rejects status/proposal pairs that cannot coexist. An
// open proposal and a superseded order both pin the fulfillment status to
// Pending.
func ValidateCombination(status Status, proposal ProposalStatus) error {
	if !status.Valid() || !proposal.Valid() {
		return fmt.Errorf("%w: %s/%s", ErrInvalidCombination, status, proposal)
	}
	if (proposal == ProposalProposed || proposal.Superseded()) && status != StatusPending {
		return fmt.Errorf("%w: %s/%s", ErrInvalidCombination, status, proposal)
	}
	return nil
}

// Transition moves the order along the fulfillment state machine.
func (po *PurchaseOrder) Transition(to Status, now time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if to == StatusCompleted {
		return ErrCompletionViaReceiving
	}
	if po.ProposedStatus == ProposalProposed {
		return ErrProposalActive
	}
	if po.ProposedStatus.Superseded() {
		return ErrOrderSuperseded
	}
	if !CanTransition(po.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, po.Status, to)
	}
	if err := ValidateCombination(to, po.ProposedStatus); err != nil {
		return err
	}
	if po.Status == StatusPending && po.RespondedAt == nil {
		at := now
		po.RespondedAt = &at
	}
	if to == StatusReceived && po.ActualDelivery == nil {
		at := now
		po.ActualDelivery = &at
	}
	po.Status = to
	return nil
}

// CanRecordProposal reports whether a supplier proposal may be recorded now.
// A new proposal is allowed after none or a declined one. After an accepted
// or modified proposal the order is superseded by its derived order, so a
// further proposal belongs on that order and is refused here even though
// the earlier proposal is terminal.
func (po *PurchaseOrder) CanRecordProposal() error {
	switch {
	case po.ProposedStatus == ProposalProposed:
		return ErrProposalActive
	case po.ProposedStatus.Superseded():
		return ErrOrderSuperseded
	case po.Status != StatusPending:
		return fmt.Errorf("%w: proposals require a Pending order, got %s", ErrInvalidTransition, po.Status)
	}
	return nil
}

// ResolveProposal closes the open proposal with the given outcome.
func (po *PurchaseOrder) ResolveProposal(outcome ProposalStatus) error {
	if po.ProposedStatus != ProposalProposed {
		return ErrNoOpenProposal
	}
	if !outcome.Terminal() {
		return fmt.Errorf("%w: %s", ErrInvalidCombination, outcome)
	}
	po.ProposedStatus = outcome
	return nil
}

// CanReceive reports whether goods may be posted against an order in status.
func CanReceive(status Status, allowInTransit bool) bool {
	return status == StatusReceived || (allowInTransit && status == StatusShipping)
}

// Open reports whether the order still expects goods. Superseded orders are
// replaced by their derived order and do not count.
func (po *PurchaseOrder) Open() bool {
	return !po.Status.Terminal() && !po.ProposedStatus.Superseded()
}
