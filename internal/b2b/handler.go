package b2b

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// Handler wires distributor order HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers distributor order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.handleList)
	r.Post("/orders", h.handlePlace)
	r.Get("/orders/{orderID}", h.handleGet)
	r.Post("/orders/{orderID}/transition", h.handleTransition)
	r.Post("/orders/{orderID}/assign", h.handleAssign)
	r.Post("/orders/{orderID}/otp", h.handleRotateOTP)
}

type placeOrderLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type placeOrderRequest struct {
	DistributorID string                  `json:"distributor_id" validate:"required,uuid4"`
	Notes         string                  `json:"notes" validate:"omitempty,max=500"`
	DeliveryOTP   string                  `json:"delivery_otp" validate:"omitempty,len=6,numeric"`
	Lines         []placeOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type transitionRequest struct {
	Status Status `json:"status" validate:"required"`
	Remark string `json:"remark" validate:"omitempty,max=500"`
	OTP    string `json:"otp" validate:"omitempty,len=6,numeric"`
}

type assignRequest struct {
	AgentID string `json:"agent_id" validate:"required,uuid4"`
}

func (h *Handler) handlePlace(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	in := PlaceOrderInput{DistributorID: req.DistributorID, Notes: req.Notes, DeliveryOTP: req.DeliveryOTP}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, PlaceOrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	order, err := h.service.PlaceOrder(r.Context(), identity, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("b2b order placed", slog.String("order_id", order.ID), slog.String("order_number", order.OrderNumber))
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	order, err := h.service.Transition(r.Context(), identity, chi.URLParam(r, "orderID"), req.Status, req.Remark, req.OTP)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("b2b order transitioned", slog.String("order_id", order.ID), slog.String("status", string(order.Status)))
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	order, err := h.service.AssignAgent(r.Context(), identity, chi.URLParam(r, "orderID"), req.AgentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleRotateOTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	otp, err := h.service.RotateDeliveryOTP(r.Context(), identity, chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("delivery code rotated", slog.String("order_id", chi.URLParam(r, "orderID")))
	httpx.JSON(w, http.StatusOK, map[string]string{"delivery_otp": otp})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	order, err := h.service.Get(r.Context(), identity, chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	q := r.URL.Query()

	filters := ListFilters{Status: Status(q.Get("status")), Limit: 50}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 200 {
			filters.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	orders, err := h.service.List(r.Context(), tenantID, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}
