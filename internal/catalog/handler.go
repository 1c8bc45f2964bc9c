package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	validate *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.handleList)
	r.Post("/products", h.handleCreate)
	r.Get("/products/{productID}", h.handleGet)
	r.Put("/products/{productID}", h.handleUpdate)
	r.Delete("/products/{productID}", h.handleDeactivate)
}

type productRequest struct {
	SKU           *string `json:"sku" validate:"omitempty,min=1,max=64"`
	Name          string  `json:"name" validate:"required,min=2,max=200"`
	Unit          string  `json:"unit" validate:"required,min=1,max=32"`
	MinStockLevel int64   `json:"min_stock_level" validate:"gte=0"`
	TaxRate       float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	Price         float64 `json:"price" validate:"gte=0"`
}

type listResponse struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	q := r.URL.Query()

	filters := ListFilters{Search: q.Get("search"), Limit: 50}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 200 {
			filters.Limit = limit
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}
	if activeStr := q.Get("active"); activeStr != "" {
		active := activeStr == "true"
		filters.IsActive = &active
	}

	products, total, err := h.repo.List(r.Context(), tenantID, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Products: products, Total: total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	p, err := h.repo.Get(r.Context(), tenantID, chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())

	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	p, err := h.repo.Create(r.Context(), Product{
		TenantID:      tenantID,
		SKU:           req.SKU,
		Name:          req.Name,
		Unit:          req.Unit,
		MinStockLevel: req.MinStockLevel,
		TaxRate:       req.TaxRate,
		Price:         req.Price,
		IsActive:      true,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("product created", slog.String("tenant_id", tenantID), slog.String("product_id", p.ID))
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())

	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	id := chi.URLParam(r, "productID")
	err := h.repo.Update(r.Context(), tenantID, id, Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Unit:          req.Unit,
		MinStockLevel: req.MinStockLevel,
		TaxRate:       req.TaxRate,
		Price:         req.Price,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.repo.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	if err := h.repo.Deactivate(r.Context(), tenantID, chi.URLParam(r, "productID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
