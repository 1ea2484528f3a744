package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Backend error codes the callers care about.
const (
	// CodeNoRows is PostgREST's "JSON object requested, multiple (or no) rows
	// returned" error, produced by single-object selects that match nothing.
	CodeNoRows = "PGRST116"

	// CodeUniqueViolation is the Postgres SQLSTATE for unique_violation.
	CodeUniqueViolation = "23505"

	// GoTrue error codes.
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidGrant       = "invalid_grant"
	CodeUserAlreadyExists  = "user_already_exists"
	CodeEmailExists        = "email_exists"
	CodeSessionNotFound    = "session_not_found"
	CodeBadJWT             = "bad_jwt"
)

// ErrNoSession is returned by Auth when no session is held or persisted.
var ErrNoSession = errors.New("supabase: no session")

// APIError is a non-2xx response from any Supabase endpoint. GoTrue and
// PostgREST use different bodies; both are folded into this shape.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("supabase: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("supabase: HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// HasCode reports whether err is an APIError with the given code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == code
}

// StatusOf returns the HTTP status of an APIError, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return 0
	}
	return apiErr.StatusCode
}

// parseErrorResponse converts an error body into an *APIError. It never
// returns nil for a non-2xx response.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}

	// PostgREST: {"code","message","details","hint"}
	// GoTrue v2: {"code":400,"error_code":"...","msg":"..."}
	// GoTrue v1 / OAuth: {"error":"...","error_description":"..."}
	var raw struct {
		Code             json.RawMessage `json:"code"`
		Message          string          `json:"message"`
		Details          string          `json:"details"`
		Hint             string          `json:"hint"`
		ErrorCode        string          `json:"error_code"`
		Msg              string          `json:"msg"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}

	if err := json.Unmarshal(body, &raw); err == nil {
		var code string
		_ = json.Unmarshal(raw.Code, &code) // numeric codes are ignored

		switch {
		case raw.ErrorCode != "":
			apiErr.Code = raw.ErrorCode
			apiErr.Message = raw.Msg
		case raw.Error != "":
			apiErr.Code = raw.Error
			apiErr.Message = raw.ErrorDescription
		default:
			apiErr.Code = code
			apiErr.Message = raw.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = raw.Msg
		}
		apiErr.Details = raw.Details
		apiErr.Hint = raw.Hint
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
