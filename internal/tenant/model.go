// Package tenant owns the tenant records and the request tenant resolver.
package tenant

import "time"

// Type distinguishes the two tenant kinds on the platform.
type Type string

const (
	TypePharmacy    Type = "PHARMACY"
	TypeDistributor Type = "DISTRIBUTOR"
)

// IsValid checks the tenant type.
func (t Type) IsValid() bool {
	return t == TypePharmacy || t == TypeDistributor
}

// OnboardingStatus tracks the external approval workflow state.
type OnboardingStatus string

const (
	OnboardingPending OnboardingStatus = "PENDING"
	OnboardingActive  OnboardingStatus = "ACTIVE"
)

// Tenant is the isolation boundary for one pharmacy or distributor business.
type Tenant struct {
	ID        string           `json:"id"`
	Subdomain string           `json:"subdomain"`
	Name      string           `json:"name"`
	Type      Type             `json:"type"`
	Status    OnboardingStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
