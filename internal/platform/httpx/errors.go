// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Each problem carries a stable machine-readable type slug.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "invalid-credentials", "Invalid Credentials", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "forbidden", "Forbidden", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "not-found", "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateKey):
		Problem(w, http.StatusConflict, "duplicate-key", "Duplicate", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "insufficient-stock", "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "invalid-transition", "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrLinkNotApproved):
		Problem(w, http.StatusConflict, "link-not-approved", "Link Not Approved", err.Error())
	case errors.Is(err, shared.ErrTransientStore):
		Problem(w, http.StatusServiceUnavailable, "transient-store", "Temporarily Unavailable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "internal", "Internal Error", "")
	}
}
