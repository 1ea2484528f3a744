package authsdk

import "time"

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Profile is the signed-in user's profile.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConnectionStatus reports whether the backend is configured and reachable.
type ConnectionStatus struct {
	Connected  bool   `json:"connected"`
	Configured bool   `json:"configured"`
	Error      string `json:"error,omitempty"`
}

// StateResponse is a snapshot of the dashboard session.
type StateResponse struct {
	User       *Profile          `json:"user"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
	Connection *ConnectionStatus `json:"connection_status,omitempty"`

	// Phase is one of uninitialized, loading, authenticated, anonymous or
	// errored.
	Phase string `json:"phase"`

	// DemoMode is set when no backend is configured and profiles are
	// synthesized locally.
	DemoMode bool `json:"demo_mode"`
}

// Authenticated reports whether a user is signed in.
func (s StateResponse) Authenticated() bool { return s.User != nil }

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

// ProfileUpdateRequest changes only the fields that are set.
type ProfileUpdateRequest struct {
	Username  *string `json:"username,omitempty"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the readiness of each dependency.
type HealthChecks struct {
	Database string `json:"database"`
	Backend  string `json:"backend"`
}
