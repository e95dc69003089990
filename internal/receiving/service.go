package receiving

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/replenishment/internal/inventory"
	"github.com/odyssey-erp/replenishment/internal/purchasing"
	"github.com/odyssey-erp/replenishment/internal/shared"
)

// RepositoryPort opens receiving transactions.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockInvalidator drops cached stock-derived reads after a receipt commits.
type StockInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Config controls receiving policy.
type Config struct {
	AllowInTransit bool
	OverReceipt    OverReceiptPolicy
	Logger         *slog.Logger
}

// Service posts goods receipts into the inventory ledger.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	observer    shared.CommandObserver
	invalidator StockInvalidator
	cfg         Config
	logger      *slog.Logger
	clock       func() time.Time
}

// NewService builds Service. audit, observer and invalidator may be nil.
func NewService(repo RepositoryPort, audit AuditPort, observer shared.CommandObserver, invalidator StockInvalidator, cfg Config) *Service {
	if cfg.OverReceipt == "" {
		cfg.OverReceipt = OverReceiptAllow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		observer:    observer,
		invalidator: invalidator,
		cfg:         cfg,
		logger:      logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ReceiveOrder records the counted quantities, posts them as batches and
// completes the order. Either every line lands or none does.
func (s *Service) ReceiveOrder(ctx context.Context, input ReceiveInput) (receipt Receipt, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "receiving.receive_order", start, err) }(time.Now())

	postings, err := validateLines(input.Lines)
	if err != nil {
		return Receipt{}, err
	}

	now := s.clock()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockOrder(ctx, input.POID)
		if err != nil {
			return err
		}
		if po.Status == purchasing.StatusCompleted {
			return fmt.Errorf("%w: order %d", ErrAlreadyCompleted, po.ID)
		}
		if !purchasing.CanReceive(po.Status, s.cfg.AllowInTransit) {
			return fmt.Errorf("%w: order %d is %s", ErrNotReceivable, po.ID, po.Status)
		}

		received := make(map[int64]int64, len(input.Lines))
		batches := make(map[int64]inventory.Batch, len(input.Lines))
		for _, line := range input.Lines {
			ordered, ok := po.Line(line.ItemID)
			if !ok {
				return fmt.Errorf("%w: item %d on order %d", ErrUnknownLine, line.ItemID, po.ID)
			}
			if line.ReceivedQuantity > ordered.OrderedQuantity && s.cfg.OverReceipt == OverReceiptReject {
				return fmt.Errorf("%w: item %d received %d of %d", ErrOverReceipt, line.ItemID, line.ReceivedQuantity, ordered.OrderedQuantity)
			}
			if err := tx.SetReceivedQuantity(ctx, po.ID, line.ItemID, line.ReceivedQuantity); err != nil {
				return err
			}
			received[line.ItemID] = line.ReceivedQuantity
			posting, ok := postings[line.ItemID]
			if !ok {
				continue
			}
			posting.ReceivedAt = now
			batch, err := tx.UpsertBatch(ctx, posting)
			if err != nil {
				return err
			}
			batches[line.ItemID] = batch
		}

		done, err := tx.CompleteOrder(ctx, po.ID, po.Version, now)
		if err != nil {
			return err
		}
		receipt = buildReceipt(po, received, batches, done)
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "stock cache invalidation failed", slog.Int64("po_id", receipt.POID), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, input.Actor, receipt)
	return receipt, nil
}

func buildReceipt(po purchasing.PurchaseOrder, received map[int64]int64, batches map[int64]inventory.Batch, done CompletedOrder) Receipt {
	receipt := Receipt{
		POID:           po.ID,
		Status:         purchasing.StatusCompleted,
		ActualDelivery: done.ActualDelivery,
		Version:        done.Version,
		Lines:          make([]LineResult, 0, len(po.Items)),
	}
	for _, item := range po.Items {
		qty, ok := received[item.ItemID]
		if !ok {
			qty = item.ReceivedQuantity
		}
		result := LineResult{
			ItemID:   item.ItemID,
			Ordered:  item.OrderedQuantity,
			Received: qty,
			Variance: qty - item.OrderedQuantity,
		}
		if batch, ok := batches[item.ItemID]; ok {
			b := batch
			result.Batch = &b
		}
		receipt.Lines = append(receipt.Lines, result)
	}
	sort.Slice(receipt.Lines, func(i, j int) bool { return receipt.Lines[i].ItemID < receipt.Lines[j].ItemID })
	return receipt
}

func (s *Service) recordAudit(ctx context.Context, actor string, receipt Receipt) {
	if s.audit == nil {
		return
	}
	variances := make(map[string]int64)
	for _, line := range receipt.Lines {
		if line.Variance != 0 {
			variances[strconv.FormatInt(line.ItemID, 10)] = line.Variance
		}
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:         actor,
		Action:        "purchase_order.received",
		Entity:        shared.AuditEntityPurchaseOrder,
		EntityID:      strconv.FormatInt(receipt.POID, 10),
		CorrelationID: uuid.NewString(),
		Meta: map[string]any{
			"lines":     len(receipt.Lines),
			"variances": variances,
		},
		At: s.clock(),
	})
}

// validateLines checks the receipt shape and returns a posting for every
// line that brings stock in.
func validateLines(lines []Line) (map[int64]inventory.Posting, error) {
	if len(lines) == 0 {
		return nil, ErrLinesRequired
	}
	postings := make(map[int64]inventory.Posting, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if line.ItemID <= 0 {
			return nil, fmt.Errorf("receiving: item id must be positive: %w", shared.ErrValidation)
		}
		if _, dup := seen[line.ItemID]; dup {
			return nil, fmt.Errorf("%w: item %d", ErrDuplicateLine, line.ItemID)
		}
		seen[line.ItemID] = struct{}{}
		if line.ReceivedQuantity < 0 {
			return nil, fmt.Errorf("%w: item %d", ErrNegativeQuantity, line.ItemID)
		}
		if line.ReceivedQuantity == 0 {
			continue
		}
		key, err := inventory.NewBatchKey(line.ItemID, line.ExpirationDate, line.StorageLocation)
		if err != nil {
			return nil, err
		}
		postings[line.ItemID] = inventory.Posting{Key: key, Quantity: line.ReceivedQuantity}
	}
	return postings, nil
}
