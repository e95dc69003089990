package receiving

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/replenishment/internal/platform/httpx"
	"github.com/odyssey-erp/replenishment/internal/shared"
)

// Handler exposes goods receipt.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers receipt routes on the /purchase-orders router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/receipt", h.receive)
}

type lineRequest struct {
	ItemID           int64       `json:"item_id" validate:"required,gt=0"`
	ReceivedQuantity int64       `json:"received_quantity" validate:"gte=0"`
	ExpirationDate   shared.Date `json:"expiration_date"`
	StorageLocation  string      `json:"storage_location" validate:"max=64"`
}

type receiptRequest struct {
	Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receiptRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := ReceiveInput{POID: id, Actor: shared.ActorFromContext(r.Context())}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, Line{
			ItemID:           line.ItemID,
			ReceivedQuantity: line.ReceivedQuantity,
			ExpirationDate:   line.ExpirationDate.Time,
			StorageLocation:  line.StorageLocation,
		})
	}
	receipt, err := h.service.ReceiveOrder(r.Context(), input)
	if err != nil {
		h.logger.Warn("receiving: receive order", slog.Int64("po_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}
