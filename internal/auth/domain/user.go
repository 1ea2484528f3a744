package domain

import "time"

// Profile is the application-level user record stored in the backend's
// profiles table. It is keyed by the identity id.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy of p, or nil when p is nil.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// ProfileUpdate is a partial profile mutation. Nil fields are left untouched.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// IsEmpty reports whether the update carries no changes.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Username == nil && u.FullName == nil && u.AvatarURL == nil
}

// Apply returns a copy of p with the update applied and UpdatedAt set to now.
func (u ProfileUpdate) Apply(p Profile, now time.Time) Profile {
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	p.UpdatedAt = now
	return p
}

// Credential is an email/password pair. It is never persisted.
type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpInput carries everything needed to register a new account.
type SignUpInput struct {
	Credential
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

// Identity is the backend's authentication record, distinct from Profile.
type Identity struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// Session pairs the backend identity with its profile.
type Session struct {
	Identity Identity
	Profile  Profile
}
