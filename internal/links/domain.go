package links

import "time"

// Status is the approval state of a pharmacy-distributor link.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Link connects a pharmacy tenant to a distributor tenant. At most one
// link exists per pair; a rejected link is revived to PENDING when the
// pharmacy asks again.
type Link struct {
	ID            string    `json:"id"`
	PharmacyID    string    `json:"pharmacy_id"`
	DistributorID string    `json:"distributor_id"`
	Status        Status    `json:"status"`
	RequestedBy   string    `json:"requested_by"`
	RespondedBy   string    `json:"responded_by,omitempty"`
	CreditLimit   *float64  `json:"credit_limit,omitempty"`
	PaymentTerms  string    `json:"payment_terms,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Terms are the commercial conditions a distributor sets when approving.
type Terms struct {
	CreditLimit  *float64 `json:"credit_limit,omitempty"`
	PaymentTerms string   `json:"payment_terms,omitempty"`
}
