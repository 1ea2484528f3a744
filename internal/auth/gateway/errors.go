package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/pkg/supabase"
)

const (
	msgTimeout            = "Request to the backend timed out"
	msgUnreachable        = "Backend is unreachable"
	msgUsernameCheck      = "Failed to verify username availability"
	msgNoUserReturned     = "User creation failed - no user data returned"
	msgProfileCreation    = "Profile creation failed"
	msgEmailRegistered    = "An account with this email already exists"
	msgUnexpectedResponse = "Unexpected response from the backend"
)

// classify maps any error from pkg/supabase or the transport into an
// AuthError. fallback is the message used for unrecognized backend errors.
func classify(err error, fallback string) error {
	if err == nil {
		return nil
	}

	var ae *domain.AuthError
	if errors.As(err, &ae) {
		return ae
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindConnection, msgTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewError(domain.KindConnection, "Request was cancelled", err)
	}

	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr, fallback)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.NewError(domain.KindConnection, msgTimeout, err)
		}
		return domain.NewError(domain.KindConnection, msgUnreachable, err)
	}

	// Anything left came out of the HTTP client before a response existed.
	return domain.NewError(domain.KindConnection, msgUnreachable, err)
}

func classifyAPIError(apiErr *supabase.APIError, fallback string) error {
	switch apiErr.Code {
	case supabase.CodeInvalidCredentials, supabase.CodeInvalidGrant:
		return domain.NewError(domain.KindCredential, domain.MsgInvalidCredentials, apiErr)
	case supabase.CodeUniqueViolation:
		return domain.NewError(domain.KindConflict, domain.MsgUsernameTaken, apiErr)
	case supabase.CodeUserAlreadyExists, supabase.CodeEmailExists:
		return domain.NewError(domain.KindBackend, msgEmailRegistered, apiErr)
	case supabase.CodeNoRows:
		return domain.NewError(domain.KindConsistency, domain.MsgProfileNotFound, apiErr)
	}

	switch {
	case apiErr.StatusCode == http.StatusBadGateway,
		apiErr.StatusCode == http.StatusServiceUnavailable,
		apiErr.StatusCode == http.StatusGatewayTimeout:
		return domain.NewError(domain.KindConnection, msgUnreachable, apiErr)
	}

	if fallback == "" {
		fallback = apiErr.Message
	}
	if fallback == "" {
		fallback = msgUnexpectedResponse
	}
	return domain.NewError(domain.KindBackend, fallback, apiErr)
}
