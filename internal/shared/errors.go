package shared

import "errors"

// Stable error kinds shared across modules. Services wrap these with
// context via %w; the HTTP layer maps them onto problem responses.
var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates a role or tenant mismatch.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey indicates a uniqueness constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInsufficientStock indicates requested quantity exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition indicates an illegal order state change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrLinkNotApproved indicates a B2B operation against a non-approved link.
	ErrLinkNotApproved = errors.New("link not approved")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTransientStore indicates a retryable infrastructure failure.
	ErrTransientStore = errors.New("transient store failure")
)
