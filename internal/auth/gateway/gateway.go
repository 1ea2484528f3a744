// Package gateway is the boundary between the session controller and the
// remote identity/database backend. Every error it returns is a
// *domain.AuthError; backend error shapes never leave this package.
package gateway

import (
	"context"

	"github.com/scrum0/scrum0/internal/auth/domain"
)

// ProfilesTable is the backend table holding user profiles.
const ProfilesTable = "profiles"

// TableChange is a row change pushed by the backend.
type TableChange struct {
	EventType string         `json:"eventType"`
	Table     string         `json:"table"`
	Row       map[string]any `json:"new"`
	OldRow    map[string]any `json:"old"`
}

// Gateway wraps the remote calls the session controller needs.
type Gateway interface {
	// SignUp checks username availability, creates the identity and inserts
	// its profile. A failed profile insert signs the new identity out again.
	SignUp(ctx context.Context, in domain.SignUpInput) (domain.Session, error)

	// SignIn authenticates and requires the identity's profile to exist.
	SignIn(ctx context.Context, cred domain.Credential) (domain.Session, error)

	// SignOut invalidates the current session. It is a no-op when signed out.
	SignOut(ctx context.Context) error

	// CurrentSession resolves the persisted session and its profile. It
	// returns (nil, nil) when the backend reports no session.
	CurrentSession(ctx context.Context) (*domain.Session, error)

	Profile(ctx context.Context, id string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (domain.Profile, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)

	// OnAuthChange registers fn for session changes. fn is called
	// asynchronously and in order. The returned function unregisters it.
	OnAuthChange(fn func(domain.AuthChange)) (unsubscribe func())

	// SubscribeTable delivers row changes for table until unsubscribed.
	SubscribeTable(table string, fn func(TableChange)) (unsubscribe func())
}

// Prober is what the connection health monitor needs from a backend.
type Prober interface {
	Configured() bool
	Probe(ctx context.Context) error
}
