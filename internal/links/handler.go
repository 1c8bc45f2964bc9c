package links

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// Handler wires HTTP endpoints for link requests and responses.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers link routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleRequest)
	r.Post("/{linkID}/respond", h.handleRespond)
}

type requestLinkRequest struct {
	DistributorID string `json:"distributor_id" validate:"required,uuid4"`
}

type respondLinkRequest struct {
	Approve      bool     `json:"approve"`
	CreditLimit  *float64 `json:"credit_limit" validate:"omitempty,gte=0"`
	PaymentTerms string   `json:"payment_terms" validate:"omitempty,max=100"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	status := Status(r.URL.Query().Get("status"))

	result, err := h.service.List(r.Context(), tenantID, status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"links": result})
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req requestLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	link, err := h.service.Request(r.Context(), identity.TenantID, req.DistributorID, identity.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("link requested", slog.String("link_id", link.ID), slog.String("pharmacy_id", link.PharmacyID), slog.String("distributor_id", link.DistributorID))
	httpx.JSON(w, http.StatusCreated, link)
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req respondLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	terms := Terms{CreditLimit: req.CreditLimit, PaymentTerms: req.PaymentTerms}
	link, err := h.service.Respond(r.Context(), chi.URLParam(r, "linkID"), identity.TenantID, identity.UserID, req.Approve, terms)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, link)
}
