package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// Handler wires point-of-sale HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sale order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.handleList)
	r.Post("/orders", h.handleCreate)
	r.Get("/orders/{orderID}", h.handleGet)
}

type saleLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	BatchID   string `json:"batch_id" validate:"required,uuid4"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type createSaleRequest struct {
	CustomerName  string            `json:"customer_name" validate:"omitempty,max=200"`
	CustomerPhone string            `json:"customer_phone" validate:"omitempty,max=20"`
	Discount      float64           `json:"discount" validate:"gte=0"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash card upi credit"`
	Lines         []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	tenantID, _ := shared.TenantFromContext(r.Context())

	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	in := NewSaleInput{
		TenantID:      tenantID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Discount:      req.Discount,
		PaymentMethod: req.PaymentMethod,
		CreatedBy:     identity.UserID,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, NewSaleLine{ProductID: l.ProductID, BatchID: l.BatchID, Quantity: l.Quantity})
	}

	order, err := h.service.CreateSaleOrder(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("sale order created", slog.String("order_id", order.ID), slog.String("order_number", order.OrderNumber))
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())

	order, err := h.service.Get(r.Context(), tenantID, chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	q := r.URL.Query()

	filters := ListFilters{Limit: 50}
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
	if v := q.Get("from"); v != "" {
		if from, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = from
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = to
		}
	}

	orders, err := h.service.List(r.Context(), tenantID, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}
