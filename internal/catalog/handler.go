package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/replenishment/internal/platform/httpx"
)

// Handler serves catalog read endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items/{id}", h.getItem)
	r.Get("/items/{id}/suppliers", h.listItemSuppliers)
	r.Get("/suppliers/{id}", h.getSupplier)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listItemSuppliers(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	suppliers, err := h.service.GetSuppliersForItem(r.Context(), id)
	if err != nil {
		h.fail(w, "list item suppliers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item_id": id, "suppliers": suppliers})
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		h.fail(w, "get supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("catalog: "+op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
