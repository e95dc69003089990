package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/replenishment/internal/catalog"
	"github.com/odyssey-erp/replenishment/internal/inventory"
	"github.com/odyssey-erp/replenishment/internal/purchasing"
	"github.com/odyssey-erp/replenishment/internal/receiving"
	"github.com/odyssey-erp/replenishment/internal/replenishment"
	"github.com/odyssey-erp/replenishment/internal/shared"
)

// Engine holds the wired domain services shared by the server and worker.
type Engine struct {
	Catalog       *catalog.Service
	Inventory     *inventory.Service
	Replenishment *replenishment.Service
	Purchasing    *purchasing.Service
	Receiving     *receiving.Service
	Idempotency   *shared.IdempotencyStore
}

// NewEngine wires every domain service against one pool and redis client.
// redisClient may be nil, in which case plans are computed on every scan.
func NewEngine(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, observer shared.CommandObserver) *Engine {
	auditLogger := shared.NewAuditLogger(pool)
	catalogRepo := catalog.NewRepository(pool)
	references := catalog.NewService(catalogRepo, nil)

	orders := purchasing.NewService(purchasing.NewRepository(pool), references, auditLogger, observer, purchasing.ServiceConfig{
		LineageMaxDepth: cfg.LineageMaxDepth,
	})

	var planCache *replenishment.Cache
	if redisClient != nil {
		planCache = replenishment.NewCache(redisClient, cfg.ReplenishmentCacheTTL)
	}
	planner := replenishment.NewService(replenishment.NewRepository(pool), planCache, orders, observer, replenishment.Config{
		LeadDays: cfg.ReplenishmentLeadDays,
		Actor:    cfg.ReplenishmentActor,
		Logger:   logger,
	})

	receipts := receiving.NewService(receiving.NewRepository(pool), auditLogger, observer, planner, receiving.Config{
		AllowInTransit: cfg.ReceivingAllowInTransit,
		OverReceipt:    receiving.OverReceiptPolicy(cfg.ReceivingOverReceipt),
		Logger:         logger,
	})

	return &Engine{
		Catalog:       catalog.NewService(catalogRepo, planner),
		Inventory:     inventory.NewService(inventory.NewRepository(pool), references),
		Replenishment: planner,
		Purchasing:    orders,
		Receiving:     receipts,
		Idempotency:   shared.NewIdempotencyStore(pool),
	}
}
