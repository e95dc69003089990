package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/replenishment/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the inventory ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items/{id}/batches", h.listBatches)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	includeEmpty := r.URL.Query().Get("include_empty") == "true"
	summary, err := h.service.Summary(r.Context(), itemID, includeEmpty)
	if err != nil {
		h.logger.Warn("inventory: list batches", slog.Int64("item_id", itemID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
