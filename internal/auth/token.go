package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// ErrInvalidCredential covers malformed, expired and tampered tokens.
var ErrInvalidCredential = fmt.Errorf("invalid credential: %w", shared.ErrUnauthorized)

// Claims is the JWT payload embedded in issued credentials.
type Claims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies time-bounded HS256 credentials.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer constructs an Issuer. TTL defaults to 24h when zero.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured validity window.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue produces a signed credential embedding the identity.
func (i *Issuer) Issue(id shared.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   id.UserID,
		TenantID: id.TenantID,
		Role:     id.Role,
		Email:    id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses a credential and returns the embedded identity.
// Verification is pure: no side effects, no store access.
func (i *Issuer) Verify(credential string) (shared.Identity, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return shared.Identity{}, errors.Join(ErrInvalidCredential, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return shared.Identity{}, ErrInvalidCredential
	}
	return shared.Identity{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Role:     claims.Role,
		Email:    claims.Email,
	}, nil
}
