package tenant

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// Handler wires HTTP endpoints for tenant records. Registration is the
// entry point of the external onboarding workflow; approval itself happens
// outside this service.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	validate *validator.Validate
	caser    cases.Caser
}

// NewHandler constructs the tenant handler.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{
		logger:   logger,
		repo:     repo,
		validate: validator.New(),
		caser:    cases.Title(language.English),
	}
}

// MountRoutes registers tenant routes. Register is public; reads require auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleRegister)
}

// MountAuthedRoutes registers routes behind the auth middleware.
func (h *Handler) MountAuthedRoutes(r chi.Router) {
	r.Get("/{tenantID}", h.handleGet)
}

type registerRequest struct {
	Subdomain string `json:"subdomain" validate:"required,hostname_rfc1123,min=3,max=63"`
	Name      string `json:"name" validate:"required,min=2,max=120"`
	Type      string `json:"type" validate:"required,oneof=PHARMACY DISTRIBUTOR"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	t, err := h.repo.Create(r.Context(), Tenant{
		Subdomain: strings.ToLower(req.Subdomain),
		Name:      h.caser.String(strings.TrimSpace(req.Name)),
		Type:      Type(req.Type),
		Status:    OnboardingPending,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("tenant registered", slog.String("tenant_id", t.ID), slog.String("subdomain", t.Subdomain))
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tenantID")
	t, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}
