package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// HeaderTenantID is the explicit tenant override header.
const HeaderTenantID = "X-Tenant-ID"

// SubdomainLookup resolves a subdomain to a tenant id. The resolver only
// needs this one query, so it takes a narrow port instead of Repository.
type SubdomainLookup interface {
	GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
}

// Resolver derives the active tenant for a request and exposes it to every
// downstream component as an opaque key on the context. Resolution order:
// explicit header, then the credential's tenant claim, then the request
// subdomain. An authenticated identity must match the resolved tenant.
type Resolver struct {
	logger *slog.Logger
	lookup SubdomainLookup
	domain string
}

// NewResolver constructs a Resolver. domain is the apex the service is
// served under (e.g. "pharmalink.example"); subdomain resolution is skipped
// when empty.
func NewResolver(logger *slog.Logger, lookup SubdomainLookup, domain string) *Resolver {
	return &Resolver{logger: logger, lookup: lookup, domain: domain}
}

// Middleware resolves the tenant and stores it on the request context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := res.resolve(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if tenantID == "" {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		ctx := shared.ContextWithTenant(r.Context(), tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (res *Resolver) resolve(r *http.Request) (string, error) {
	identity, hasIdentity := shared.IdentityFromContext(r.Context())

	candidate := r.Header.Get(HeaderTenantID)
	if candidate == "" && hasIdentity {
		candidate = identity.TenantID
	}
	if candidate == "" {
		sub := res.subdomain(r.Host)
		if sub != "" {
			t, err := res.lookup.GetBySubdomain(r.Context(), sub)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return "", shared.ErrForbidden
				}
				return "", err
			}
			candidate = t.ID
		}
	}

	// The credential's tenant is authoritative; an explicit override may
	// never cross the isolation boundary.
	if hasIdentity && identity.TenantID != "" && candidate != identity.TenantID {
		res.logger.Warn("tenant mismatch rejected",
			slog.String("claimed", candidate),
			slog.String("credential", identity.TenantID))
		return "", shared.ErrForbidden
	}
	return candidate, nil
}

func (res *Resolver) subdomain(host string) string {
	if res.domain == "" {
		return ""
	}
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	suffix := "." + res.domain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}
