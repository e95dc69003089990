package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/replenishment/internal/jobs"
	"github.com/odyssey-erp/replenishment/internal/replenishment"
	"github.com/odyssey-erp/replenishment/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Planner is the replenishment surface the scan job drives.
type Planner interface {
	Refresh(ctx context.Context) (replenishment.Plan, error)
	PlaceOrders(ctx context.Context, input replenishment.PlaceOrdersInput) (replenishment.PlaceResult, error)
}

// RunGuard records that a daily ordering run already happened.
type RunGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ReplenishmentScanJob refreshes the cached plan and, when enabled, places
// one order per supplier at most once per UTC day.
type ReplenishmentScanJob struct {
	Planner   Planner
	Guard     RunGuard
	AutoOrder bool
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewReplenishmentScanJob wires dependencies for the scan handler.
func NewReplenishmentScanJob(planner Planner, guard RunGuard, autoOrder bool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReplenishmentScanJob {
	return &ReplenishmentScanJob{
		Planner:   planner,
		Guard:     guard,
		AutoOrder: autoOrder,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes replenishment scan tasks.
func (j *ReplenishmentScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Planner == nil {
		return errors.New("replenishment scan: handler not configured")
	}
	var payload ReplenishmentScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskReplenishmentScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	plan, err := j.Planner.Refresh(ctx)
	if err != nil {
		logger.Error("scan replenishment candidates", slog.Any("error", err))
		return err
	}
	candidates := len(plan.Candidates())
	j.metrics().AddItems(TaskReplenishmentScan, "candidates", candidates)
	logger.Info("replenishment scan complete", slog.Int("candidates", candidates), slog.Int("suppliers", len(plan.Groups)))

	autoOrder := j.AutoOrder
	if payload.AutoOrder != nil {
		autoOrder = *payload.AutoOrder
	}
	if !autoOrder || candidates == 0 {
		return nil
	}
	return j.placeOrders(ctx, logger, payload.Force)
}

func (j *ReplenishmentScanJob) placeOrders(ctx context.Context, logger *slog.Logger, force bool) error {
	key := shared.ReplenishmentRunKey(j.now())
	guarded := j.Guard != nil && !force
	if guarded {
		if err := j.Guard.CheckAndInsert(ctx, key, "replenishment"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				logger.Info("automatic ordering already ran today", slog.String("key", key))
				return nil
			}
			return err
		}
	}

	result, err := j.Planner.PlaceOrders(ctx, replenishment.PlaceOrdersInput{})
	j.metrics().AddItems(TaskReplenishmentScan, "orders", len(result.Orders))
	j.metrics().AddItems(TaskReplenishmentScan, "skipped", len(result.Skipped))
	if err != nil {
		logger.Error("place replenishment orders", slog.Int("placed", len(result.Orders)), slog.Any("error", err))
		if guarded {
			if delErr := j.Guard.Delete(ctx, key); delErr != nil {
				logger.Warn("release run key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return err
	}
	logger.Info("placed replenishment orders", slog.Int("orders", len(result.Orders)), slog.Int("skipped", len(result.Skipped)))
	return nil
}

func (j *ReplenishmentScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReplenishmentScan))
	}
	return slog.Default().With(slog.String("job", TaskReplenishmentScan))
}

func (j *ReplenishmentScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReplenishmentScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
