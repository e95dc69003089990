package replenishment

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/replenishment/internal/platform/httpx"
	"github.com/odyssey-erp/replenishment/internal/shared"
)

// Handler exposes the calculator and automatic ordering.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers replenishment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/candidates", h.candidates)
	r.Post("/candidates/refresh", h.refresh)
	r.Post("/orders", h.placeOrders)
}

type placeOrdersRequest struct {
	CreatedBy        string      `json:"created_by" validate:"omitempty,email"`
	ExpectedDelivery shared.Date `json:"expected_delivery"`
}

func (h *Handler) candidates(w http.ResponseWriter, r *http.Request) {
	scan := h.service.Scan
	if cached, _ := strconv.ParseBool(r.URL.Query().Get("cached")); cached {
		scan = h.service.Snapshot
	}
	plan, err := scan(r.Context())
	if err != nil {
		h.fail(w, "scan", err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.Refresh(r.Context())
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) placeOrders(w http.ResponseWriter, r *http.Request) {
	var req placeOrdersRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeAndValidate(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = shared.ActorFromContext(r.Context())
	}
	result, err := h.service.PlaceOrders(r.Context(), PlaceOrdersInput{
		CreatedBy:        createdBy,
		ExpectedDelivery: req.ExpectedDelivery.Ptr(),
	})
	if err != nil {
		h.fail(w, "place orders", err)
		return
	}
	status := http.StatusOK
	if len(result.Orders) > 0 {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("replenishment: "+op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
