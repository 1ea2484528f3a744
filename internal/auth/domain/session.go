package domain

import "time"

// ConnectionStatus describes whether the backend is configured and reachable.
// Connected implies Configured.
type ConnectionStatus struct {
	Connected  bool   `json:"connected"`
	Configured bool   `json:"configured"`
	Error      string `json:"error,omitempty"`
}

// Phase is the coarse state of a session, derived from its state snapshot.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLoading       Phase = "loading"
	PhaseAuthenticated Phase = "authenticated"
	PhaseAnonymous     Phase = "anonymous"
	PhaseErrored       Phase = "errored"
)

// AuthEvent names a change in the backend's notion of the session.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthChange is delivered to auth-change listeners. Session is nil when the
// backend reports no session. Err is set when the session behind the event
// could not be resolved.
type AuthChange struct {
	Event   AuthEvent
	Session *Session
	Err     error
}

// StoredSession is the persisted form of a backend session. Both tokens are
// sealed; Key identifies the project the session belongs to.
type StoredSession struct {
	Key                string
	UserID             string
	Email              string
	AccessTokenSealed  []byte
	RefreshTokenSealed []byte
	ExpiresAt          time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
