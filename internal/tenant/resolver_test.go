package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pharmalink/pharmalink/internal/shared"
)

type stubLookup struct {
	tenants map[string]Tenant
}

func (s *stubLookup) GetBySubdomain(_ context.Context, subdomain string) (Tenant, error) {
	if t, ok := s.tenants[subdomain]; ok {
		return t, nil
	}
	return Tenant{}, shared.ErrNotFound
}

func resolveWith(t *testing.T, res *Resolver, req *http.Request) (string, int) {
	t.Helper()
	var got string
	rec := httptest.NewRecorder()
	handler := res.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = shared.TenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)
	return got, rec.Code
}

func TestResolverHeaderWins(t *testing.T) {
	res := NewResolver(slog.Default(), &stubLookup{}, "pharmalink.test")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTenantID, "t-9")

	got, code := resolveWith(t, res, req)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "t-9", got)
}

func TestResolverUsesCredentialClaim(t *testing.T) {
	res := NewResolver(slog.Default(), &stubLookup{}, "pharmalink.test")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: "u-1", TenantID: "t-1"})

	got, code := resolveWith(t, res, req.WithContext(ctx))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "t-1", got)
}

func TestResolverSubdomainFallback(t *testing.T) {
	lookup := &stubLookup{tenants: map[string]Tenant{"acme": {ID: "t-acme"}}}
	res := NewResolver(slog.Default(), lookup, "pharmalink.test")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.pharmalink.test:8080"

	got, code := resolveWith(t, res, req)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "t-acme", got)
}

func TestResolverRejectsCrossTenantOverride(t *testing.T) {
	res := NewResolver(slog.Default(), &stubLookup{}, "pharmalink.test")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTenantID, "t-other")
	ctx := shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: "u-1", TenantID: "t-1"})

	_, code := resolveWith(t, res, req.WithContext(ctx))
	require.Equal(t, http.StatusForbidden, code)
}

func TestResolverUnknownSubdomain(t *testing.T) {
	res := NewResolver(slog.Default(), &stubLookup{}, "pharmalink.test")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "ghost.pharmalink.test"

	_, code := resolveWith(t, res, req)
	require.Equal(t, http.StatusForbidden, code)
}
