package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// Handler wires HTTP endpoints for ledger queries. Mutations reach the
// ledger through the order engines and purchase inward, not directly.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/batches", h.handleQuery)
	r.Get("/allocation-preview", h.handleAllocationPreview)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	batches, err := h.service.Query(r.Context(), tenantID, r.URL.Query().Get("product_id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) handleAllocationPreview(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	q := r.URL.Query()

	productID := q.Get("product_id")
	qty, err := strconv.ParseInt(q.Get("qty"), 10, 64)
	if productID == "" || err != nil || qty <= 0 {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	usableOnly := q.Get("usable_only") != "false"

	plan, err := h.service.Allocate(r.Context(), tenantID, productID, qty, usableOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allocations": plan})
}
