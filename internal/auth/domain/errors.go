package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories surfaced by the auth core.
type ErrorKind int

const (
	// KindConfiguration: backend location/key missing or placeholder.
	KindConfiguration ErrorKind = iota + 1
	// KindConnection: backend configured but unreachable, or timed out.
	KindConnection
	// KindValidation: local input malformed; never reaches the backend.
	KindValidation
	// KindCredential: bad email/password.
	KindCredential
	// KindConflict: username already taken.
	KindConflict
	// KindConsistency: authenticated identity without a profile.
	KindConsistency
	// KindBackend: any other unexpected backend response.
	KindBackend
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration_error"
	case KindConnection:
		return "connection_error"
	case KindValidation:
		return "validation_error"
	case KindCredential:
		return "credential_error"
	case KindConflict:
		return "conflict_error"
	case KindConsistency:
		return "consistency_error"
	case KindBackend:
		return "backend_error"
	default:
		return "unknown_error"
	}
}

// Sentinels for errors.Is matching on kind alone.
var (
	ErrConfiguration = &AuthError{Kind: KindConfiguration}
	ErrConnection    = &AuthError{Kind: KindConnection}
	ErrValidation    = &AuthError{Kind: KindValidation}
	ErrCredential    = &AuthError{Kind: KindCredential}
	ErrConflict      = &AuthError{Kind: KindConflict}
	ErrConsistency   = &AuthError{Kind: KindConsistency}
	ErrBackend       = &AuthError{Kind: KindBackend}
)

// Display messages for kinds whose wording must not depend on backend detail.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgUsernameTaken      = "Username is already taken"
	MsgProfileNotFound    = "User profile not found"
	MsgNotConfigured      = "Supabase environment variables not properly configured"
)

// AuthError is the only error shape that leaves the gateway. Message is safe
// to show to an end user; Err carries the underlying cause for logs.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError of the same kind, so errors.Is(err, ErrConflict)
// works regardless of message.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an AuthError.
func NewError(kind ErrorKind, msg string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: msg, Err: cause}
}

// KindOf returns the kind of err, or KindBackend when err is not an AuthError.
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindBackend
}

// UserMessage returns a display string for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *AuthError
	if !errors.As(err, &ae) {
		return err.Error()
	}
	switch ae.Kind {
	case KindCredential:
		return MsgInvalidCredentials
	case KindConflict:
		return MsgUsernameTaken
	case KindConsistency:
		if ae.Message != "" {
			return ae.Message
		}
		return MsgProfileNotFound
	}
	if ae.Message != "" {
		return ae.Message
	}
	return ae.Kind.String()
}
