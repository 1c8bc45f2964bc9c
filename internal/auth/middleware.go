package auth

import (
	"net/http"
	"strings"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// CookieName is the http-only cookie carrying the credential for browser clients.
const CookieName = "pharmalink_token"

// Middleware verifies the bearer header or session cookie and stores the
// identity on the request context. Requests without a valid credential are
// rejected.
func Middleware(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := bearerToken(r)
			if credential == "" {
				if cookie, err := r.Cookie(CookieName); err == nil {
					credential = cookie.Value
				}
			}
			if credential == "" {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			identity, err := issuer.Verify(credential)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			ctx := shared.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects identities whose role is not in the allowed set.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if _, ok := allowed[identity.Role]; !ok {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
