package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	issuer *Issuer
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer *Issuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Login validates email/password credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	token, err := s.issuer.Issue(shared.Identity{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		Email:    user.Email,
	})
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Verify delegates to the issuer; exposed so callers depend on Service only.
func (s *Service) Verify(credential string) (shared.Identity, error) {
	return s.issuer.Verify(credential)
}
