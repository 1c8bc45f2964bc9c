package procurement

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

// Handler wires procurement HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers supplier and purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suppliers", h.handleListSuppliers)
	r.Post("/suppliers", h.handleCreateSupplier)
	r.Get("/purchases", h.handleListPurchases)
	r.Post("/purchases", h.handleInwardPurchase)
	r.Get("/purchases/{purchaseID}", h.handleGetPurchase)
}

type supplierRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=200"`
	Phone string `json:"phone" validate:"omitempty,max=20"`
	Email string `json:"email" validate:"omitempty,email"`
	GSTIN string `json:"gstin" validate:"omitempty,len=15"`
}

type purchaseItemRequest struct {
	ProductID   string  `json:"product_id" validate:"required,uuid4"`
	BatchNumber string  `json:"batch_number" validate:"required,min=1,max=64"`
	ExpiryDate  string  `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	Quantity    int64   `json:"quantity" validate:"required,gt=0"`
	CostPrice   float64 `json:"cost_price" validate:"gte=0"`
	MRP         float64 `json:"mrp" validate:"gte=0"`
}

type inwardPurchaseRequest struct {
	SupplierID    string                `json:"supplier_id" validate:"required,uuid4"`
	InvoiceNumber string                `json:"invoice_number" validate:"required,min=1,max=64"`
	InvoiceDate   string                `json:"invoice_date" validate:"required,datetime=2006-01-02"`
	Items         []purchaseItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())

	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	supplier, err := h.service.CreateSupplier(r.Context(), Supplier{
		TenantID: tenantID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		GSTIN:    req.GSTIN,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())

	suppliers, err := h.service.Suppliers(r.Context(), tenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (h *Handler) handleInwardPurchase(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	tenantID, _ := shared.TenantFromContext(r.Context())

	var req inwardPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	invoiceDate, _ := time.Parse("2006-01-02", req.InvoiceDate)
	in := InwardPurchaseInput{
		TenantID:      tenantID,
		SupplierID:    req.SupplierID,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceDate:   invoiceDate,
		CreatedBy:     identity.UserID,
	}
	for _, item := range req.Items {
		expiry, _ := time.Parse("2006-01-02", item.ExpiryDate)
		in.Items = append(in.Items, InwardItem{
			ProductID:   item.ProductID,
			BatchNumber: item.BatchNumber,
			ExpiryDate:  expiry,
			Quantity:    item.Quantity,
			CostPrice:   item.CostPrice,
			MRP:         item.MRP,
		})
	}

	purchase, err := h.service.InwardPurchase(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("purchase received", slog.String("purchase_id", purchase.ID), slog.String("invoice_number", purchase.InvoiceNumber))
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())

	purchase, err := h.service.Purchase(r.Context(), tenantID, chi.URLParam(r, "purchaseID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

func (h *Handler) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	purchases, err := h.service.Purchases(r.Context(), tenantID, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}
