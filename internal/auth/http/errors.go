package http

import (
	"errors"
	"net/http"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/internal/auth/session"
	"github.com/scrum0/scrum0/pkg/authsdk"
	"github.com/scrum0/scrum0/pkg/httpx"
	"github.com/scrum0/scrum0/pkg/slogx"
)

// errorStatus maps a controller error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrOperationInProgress):
		return http.StatusConflict, authsdk.ErrorCodeOperationInProgress
	case errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, authsdk.ErrorCodeServerError
	}

	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, authsdk.ErrorCodeServerError
	}

	switch ae.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest, authsdk.ErrorCodeValidationFailed
	case domain.KindCredential:
		return http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials
	case domain.KindConflict:
		return http.StatusConflict, authsdk.ErrorCodeUsernameTaken
	case domain.KindConsistency:
		return http.StatusUnprocessableEntity, authsdk.ErrorCodeProfileNotFound
	case domain.KindConnection:
		return http.StatusServiceUnavailable, authsdk.ErrorCodeBackendUnavailable
	case domain.KindConfiguration:
		return http.StatusServiceUnavailable, authsdk.ErrorCodeNotConfigured
	default:
		return http.StatusBadGateway, authsdk.ErrorCodeBackendError
	}
}

// writeControllerError writes err as an ErrorResponse. The description is the
// same display message the session state carries.
func writeControllerError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	log := slogx.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("session operation failed", "code", code, "error", err)
	} else {
		log.Info("session operation rejected", "code", code, "error", err)
	}

	desc := domain.UserMessage(err)
	switch {
	case errors.Is(err, session.ErrOperationInProgress):
		desc = "Another session operation is in progress. Please retry."
	case errors.Is(err, session.ErrNotAuthenticated):
		desc = "You must be signed in."
	case errors.Is(err, session.ErrClosed):
		desc = "The session service is shutting down."
	case status == http.StatusInternalServerError:
		desc = "Internal server error"
	}

	httpx.WriteError(w, status, code, desc)
}
