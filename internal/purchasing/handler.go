package purchasing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/replenishment/internal/platform/httpx"
	"github.com/odyssey-erp/replenishment/internal/shared"
)

// Handler wires purchase order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes on a router mounted at /purchase-orders.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{id}", h.getOrder)
	r.Get("/{id}/lineage", h.getLineage)
	r.Post("/{id}/proposal", h.recordProposal)
	r.Post("/{id}/proposal/accept", h.acceptProposal)
	r.Post("/{id}/proposal/modify", h.modifyProposal)
	r.Post("/{id}/proposal/decline", h.declineProposal)
	r.Post("/{id}/status", h.transitionStatus)
}

type lineRequest struct {
	ItemID         int64               `json:"item_id" validate:"required,gt=0"`
	Quantity       int64               `json:"quantity" validate:"gt=0"`
	EstimatedPrice decimal.NullDecimal `json:"estimated_price"`
}

type createOrderRequest struct {
	SupplierID       int64         `json:"supplier_id" validate:"required,gt=0"`
	ExpectedDelivery shared.Date   `json:"expected_delivery" validate:"required"`
	CreatedBy        string        `json:"created_by" validate:"omitempty,email"`
	OriginalPOID     *int64        `json:"original_po_id" validate:"omitempty,gt=0"`
	Items            []lineRequest `json:"items" validate:"required,min=1,dive"`
}

type itemProposalRequest struct {
	ItemID   int64               `json:"item_id" validate:"required,gt=0"`
	Quantity *int64              `json:"quantity" validate:"omitempty,gte=0"`
	Price    decimal.NullDecimal `json:"price"`
}

type proposalRequest struct {
	ProposedDelivery shared.Date           `json:"proposed_delivery"`
	Note             string                `json:"note" validate:"max=2000"`
	Items            []itemProposalRequest `json:"items" validate:"dive"`
}

type modifyRequest struct {
	DeliveryDate shared.Date   `json:"delivery_date" validate:"required"`
	UserEmail    string        `json:"user_email" validate:"omitempty,email"`
	Items        []lineRequest `json:"items" validate:"required,min=1,dive"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Accepted Declined Shipping Received Completed"`
}

type listResponse struct {
	Orders     []PurchaseOrder   `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateOrderInput{
		SupplierID:       req.SupplierID,
		ExpectedDelivery: req.ExpectedDelivery.Time,
		Items:            toLines(req.Items),
		CreatedBy:        actorOr(r, req.CreatedBy),
		OriginalPOID:     req.OriginalPOID,
	}
	po, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{View: View(r.URL.Query().Get("view"))}
	if raw := r.URL.Query().Get("supplier_id"); raw != "" {
		supplierID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid supplier_id")
			return
		}
		filter.SupplierID = supplierID
	}
	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	page, perPage := httpx.PageParams(r)
	pagination := shared.NewPagination(page, perPage, len(orders))
	start, end := pagination.Bounds()
	httpx.JSON(w, http.StatusOK, listResponse{Orders: orders[start:end], Pagination: pagination})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) getLineage(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	chain, err := h.service.GetLineage(r.Context(), id)
	if err != nil {
		h.fail(w, "get lineage", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"po_id": id, "lineage": chain})
}

func (h *Handler) recordProposal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req proposalRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := ProposalInput{
		POID:             id,
		ProposedDelivery: req.ProposedDelivery.Ptr(),
		Note:             req.Note,
		Actor:            shared.ActorFromContext(r.Context()),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemProposal{ItemID: item.ItemID, Quantity: item.Quantity, Price: item.Price})
	}
	po, err := h.service.RecordSupplierProposal(r.Context(), input)
	if err != nil {
		h.fail(w, "record proposal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) acceptProposal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	derived, err := h.service.AcceptProposal(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "accept proposal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, derived)
}

func (h *Handler) modifyProposal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req modifyRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	derived, err := h.service.ModifyProposal(r.Context(), ModifyInput{
		POID:         id,
		DeliveryDate: req.DeliveryDate.Time,
		Items:        toLines(req.Items),
		UserEmail:    actorOr(r, req.UserEmail),
	})
	if err != nil {
		h.fail(w, "modify proposal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, derived)
}

func (h *Handler) declineProposal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.DeclineProposal(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "decline proposal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) transitionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.TransitionStatus(r.Context(), id, Status(req.Status), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "transition status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("purchasing: "+op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func toLines(req []lineRequest) []LineInput {
	lines := make([]LineInput, 0, len(req))
	for _, line := range req {
		lines = append(lines, LineInput{ItemID: line.ItemID, Quantity: line.Quantity, EstimatedPrice: line.EstimatedPrice})
	}
	return lines
}

// actorOr prefers an explicit author from the body over the request actor.
func actorOr(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return shared.ActorFromContext(r.Context())
}
