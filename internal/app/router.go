package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pharmalink/pharmalink/internal/auth"
	"github.com/pharmalink/pharmalink/internal/b2b"
	"github.com/pharmalink/pharmalink/internal/bus"
	"github.com/pharmalink/pharmalink/internal/catalog"
	"github.com/pharmalink/pharmalink/internal/ledger"
	"github.com/pharmalink/pharmalink/internal/links"
	"github.com/pharmalink/pharmalink/internal/messaging"
	"github.com/pharmalink/pharmalink/internal/observability"
	"github.com/pharmalink/pharmalink/internal/procurement"
	"github.com/pharmalink/pharmalink/internal/sales"
	"github.com/pharmalink/pharmalink/internal/tenant"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Issuer             *auth.Issuer
	Resolver           *tenant.Resolver
	AuthHandler        *auth.Handler
	TenantHandler      *tenant.Handler
	CatalogHandler     *catalog.Handler
	LedgerHandler      *ledger.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	B2BHandler         *b2b.Handler
	LinksHandler       *links.Handler
	MessagingHandler   *messaging.Handler
	EventsHandler      *bus.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Public surface: login and tenant onboarding.
	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})
	r.Route("/tenants", func(r chi.Router) {
		params.TenantHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(params.Issuer))
			r.Use(params.Resolver.Middleware)
			params.TenantHandler.MountAuthedRoutes(r)
		})
	})

	// Everything else requires a verified identity and a resolved
	// tenant.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(params.Issuer))
		r.Use(params.Resolver.Middleware)

		r.Route("/catalog", params.CatalogHandler.MountRoutes)
		r.Route("/ledger", params.LedgerHandler.MountRoutes)
		r.Route("/procurement", params.ProcurementHandler.MountRoutes)
		r.Route("/sales", params.SalesHandler.MountRoutes)
		r.Route("/b2b", params.B2BHandler.MountRoutes)
		r.Route("/links", params.LinksHandler.MountRoutes)
		r.Route("/messaging", params.MessagingHandler.MountRoutes)
		r.Route("/events", params.EventsHandler.MountRoutes)
	})

	return r
}
