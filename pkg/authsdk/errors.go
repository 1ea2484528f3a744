package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes returned in ErrorResponse.Error.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeValidationFailed    = "validation_failed"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeUsernameTaken       = "username_taken"
	ErrorCodeProfileNotFound     = "profile_not_found"
	ErrorCodeBackendUnavailable  = "backend_unavailable"
	ErrorCodeNotConfigured       = "not_configured"
	ErrorCodeBackendError        = "backend_error"
	ErrorCodeOperationInProgress = "operation_in_progress"
	ErrorCodeNotAuthenticated    = "not_authenticated"
	ErrorCodeRateLimitExceeded   = "rate_limit_exceeded"
	ErrorCodeServerError         = "server_error"
)

// APIError is a non-2xx reply from the dashboard. Description is suitable
// for display.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// parseErrorResponse converts an error reply into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
