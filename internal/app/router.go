package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/replenishment/internal/catalog"
	"github.com/odyssey-erp/replenishment/internal/inventory"
	"github.com/odyssey-erp/replenishment/internal/observability"
	"github.com/odyssey-erp/replenishment/internal/platform/httpx"
	"github.com/odyssey-erp/replenishment/internal/purchasing"
	"github.com/odyssey-erp/replenishment/internal/receiving"
	"github.com/odyssey-erp/replenishment/internal/replenishment"
	"github.com/odyssey-erp/replenishment/jobs"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(r *http.Request) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	Metrics              *observability.Metrics
	Health               HealthCheck
	CatalogHandler       *catalog.Handler
	InventoryHandler     *inventory.Handler
	ReplenishmentHandler *replenishment.Handler
	PurchasingHandler    *purchasing.Handler
	ReceivingHandler     *receiving.Handler
	JobHandler           *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Health != nil {
			if err := params.Health(r); err != nil {
				params.Logger.Warn("health check", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.ReplenishmentHandler != nil {
			r.Route("/replenishment", params.ReplenishmentHandler.MountRoutes)
		}
		r.Route("/purchase-orders", func(r chi.Router) {
			if params.PurchasingHandler != nil {
				params.PurchasingHandler.MountRoutes(r)
			}
			if params.ReceivingHandler != nil {
				params.ReceivingHandler.MountRoutes(r)
			}
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
