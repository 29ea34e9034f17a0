// Package httperr maps domain errors to HTTP status codes. The central echo
// error handler and the action handlers share it.
package httperr

import (
	"errors"
	"net/http"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/service"
	"github.com/ree-portal/agent-onboarding/internal/portal"
)

type mapping struct {
	err    error
	status int
}

var known = []mapping{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrNotAuthenticated, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrUserExists, http.StatusConflict},
	{domain.ErrProfileNotFound, http.StatusNotFound},
	{domain.ErrObjectNotFound, http.StatusNotFound},
	{service.ErrNoReceipt, http.StatusNotFound},
	{domain.ErrInvalidEmail, http.StatusBadRequest},
	{domain.ErrWeakPassword, http.StatusBadRequest},
	{domain.ErrReceiptRequired, http.StatusBadRequest},
	{domain.ErrUnsupportedFile, http.StatusUnsupportedMediaType},
	{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{domain.ErrInvalidStatus, http.StatusUnprocessableEntity},
	{portal.ErrRegistryClosed, http.StatusServiceUnavailable},
}

// Status returns the status code and client message for a known error.
// ok is false for unexpected errors.
func Status(err error) (code int, msg string, ok bool) {
	for _, m := range known {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error(), true
		}
	}
	return http.StatusInternalServerError, "internal server error", false
}
