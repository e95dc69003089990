package replenishment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/replenishment/internal/purchasing"
	"github.com/odyssey-erp/replenishment/internal/shared"
)

// RepositoryPort provides the live catalog and ledger reads behind a scan.
type RepositoryPort interface {
	StockLevels(ctx context.Context) ([]StockLevel, error)
	PrimarySuppliers(ctx context.Context) (map[int64]int64, error)
	OpenOrderItems(ctx context.Context) ([]int64, error)
}

// OrderPlacer creates purchase orders for a plan.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, input purchasing.CreateOrderInput) (purchasing.PurchaseOrder, error)
}

// Config groups service settings.
type Config struct {
	LeadDays int
	Actor    string
	Logger   *slog.Logger
}

// PlaceOrdersInput overrides the defaults of an ordering run.
type PlaceOrdersInput struct {
	CreatedBy        string
	ExpectedDelivery *time.Time
}

// PlaceResult reports an ordering run.
type PlaceResult struct {
	Orders  []purchasing.PurchaseOrder `json:"orders"`
	Skipped []int64                    `json:"skipped_item_ids"`
}

// Service runs the replenishment calculator and turns plans into orders.
type Service struct {
	repo     RepositoryPort
	cache    *Cache
	placer   OrderPlacer
	observer shared.CommandObserver
	cfg      Config
	logger   *slog.Logger
	group    singleflight.Group
	clock    func() time.Time
}

// NewService builds Service. cache, placer and observer may be nil.
func NewService(repo RepositoryPort, cache *Cache, placer OrderPlacer, observer shared.CommandObserver, cfg Config) *Service {
	if cfg.Actor == "" {
		cfg.Actor = "replenishment@system"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		placer:   placer,
		observer: observer,
		cfg:      cfg,
		logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Scan computes the plan from live catalog and ledger state. Concurrent
// callers share one computation. The result is written to the cache for
// Snapshot readers; a failed write is logged.
func (s *Service) Scan(ctx context.Context) (plan Plan, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "replenishment.scan", start, err) }(time.Now())

	v, err, _ := s.group.Do("scan", func() (any, error) {
		plan, err := s.compute(ctx)
		if err != nil {
			return Plan{}, err
		}
		if s.cache != nil {
			if err := s.store(ctx, plan); err != nil {
				s.logger.WarnContext(ctx, "replenishment cache write failed", slog.Any("error", err))
			}
		}
		return plan, nil
	})
	if err != nil {
		return Plan{}, err
	}
	return v.(Plan), nil
}

// Snapshot returns the plan of the last scan while the stock version has not
// moved, computing one when nothing is cached. Catalog edits made since that
// scan are not reflected; callers needing live state use Scan.
func (s *Service) Snapshot(ctx context.Context) (plan Plan, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "replenishment.snapshot", start, err) }(time.Now())

	v, err, _ := s.group.Do("snapshot", func() (any, error) {
		key, err := s.cache.BuildKey(ctx, "replenishment", "plan")
		if err != nil {
			s.logger.WarnContext(ctx, "replenishment cache unavailable", slog.Any("error", err))
			return s.compute(ctx)
		}
		var cached Plan
		err = s.cache.FetchJSON(ctx, key, &cached, func(ctx context.Context) (any, error) {
			return s.compute(ctx)
		})
		return cached, err
	})
	if err != nil {
		return Plan{}, err
	}
	return v.(Plan), nil
}

func (s *Service) store(ctx context.Context, plan Plan) error {
	key, err := s.cache.BuildKey(ctx, "replenishment", "plan")
	if err != nil {
		return err
	}
	return s.cache.StoreJSON(ctx, key, plan)
}

// Refresh drops cached plans and stores a freshly computed one.
func (s *Service) Refresh(ctx context.Context) (Plan, error) {
	if err := s.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "replenishment cache bump failed", slog.Any("error", err))
	}
	return s.Scan(ctx)
}

// Invalidate marks every cached plan stale.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// PlaceOrders creates one Pending order per supplier group from a fresh
// computation. Items already on an open order are skipped. Orders created
// before a failure stay placed and are reported alongside the error.
func (s *Service) PlaceOrders(ctx context.Context, input PlaceOrdersInput) (result PlaceResult, err error) {
	defer func(start time.Time) { err = shared.Observe(s.observer, "replenishment.place_orders", start, err) }(time.Now())

	if s.placer == nil {
		return PlaceResult{}, fmt.Errorf("replenishment: order placement not configured")
	}
	var (
		plan Plan
		open []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plan, err = s.compute(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		open, err = s.repo.OpenOrderItems(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return PlaceResult{}, err
	}

	onOrder := make(map[int64]struct{}, len(open))
	for _, id := range open {
		onOrder[id] = struct{}{}
	}
	createdBy := input.CreatedBy
	if createdBy == "" {
		createdBy = s.cfg.Actor
	}
	delivery := shared.Day(s.clock()).AddDate(0, 0, s.cfg.LeadDays)
	if input.ExpectedDelivery != nil && !input.ExpectedDelivery.IsZero() {
		delivery = shared.Day(*input.ExpectedDelivery)
	}

	result = PlaceResult{Orders: []purchasing.PurchaseOrder{}, Skipped: []int64{}}
	defer func() {
		if len(result.Orders) == 0 {
			return
		}
		if err := s.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "replenishment cache bump failed", slog.Any("error", err))
		}
	}()
	for _, group := range plan.Groups {
		lines := make([]purchasing.LineInput, 0, len(group.Lines))
		for _, line := range group.Lines {
			if _, ok := onOrder[line.ItemID]; ok {
				result.Skipped = append(result.Skipped, line.ItemID)
				continue
			}
			lines = append(lines, purchasing.LineInput{ItemID: line.ItemID, Quantity: line.NeededQuantity})
		}
		if len(lines) == 0 {
			continue
		}
		po, err := s.placer.CreateOrder(ctx, purchasing.CreateOrderInput{
			SupplierID:       group.SupplierID,
			ExpectedDelivery: delivery,
			Items:            lines,
			CreatedBy:        createdBy,
		})
		if err != nil {
			return result, fmt.Errorf("replenishment: order for supplier %d: %w", group.SupplierID, err)
		}
		result.Orders = append(result.Orders, po)
	}
	return result, nil
}

func (s *Service) compute(ctx context.Context) (Plan, error) {
	var (
		levels  []StockLevel
		primary map[int64]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		levels, err = s.repo.StockLevels(gctx)
		if err != nil {
			return fmt.Errorf("replenishment: stock levels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		primary, err = s.repo.PrimarySuppliers(gctx)
		if err != nil {
			return fmt.Errorf("replenishment: suppliers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Plan{}, err
	}
	return Calculate(levels, primary, s.clock()), nil
}
