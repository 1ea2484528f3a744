package supabase

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User is the GoTrue identity record.
type User struct {
	ID           string         `json:"id"`
	Aud          string         `json:"aud,omitempty"`
	Role         string         `json:"role,omitempty"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MetadataString returns a string value from user metadata, or "".
func (u User) MetadataString(key string) string {
	if u.UserMetadata == nil {
		return ""
	}
	s, _ := u.UserMetadata[key].(string)
	return s
}

// ValidID reports whether the identity id is a well-formed UUID.
func (u User) ValidID() bool {
	_, err := uuid.Parse(u.ID)
	return err == nil
}

// TokenResponse is the body of /auth/v1/token and of auto-confirmed signups.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// Session is an authenticated token pair plus its identity.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// ExpiresWithin reports whether the access token expires within d of now.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !now.Add(d).Before(s.ExpiresAt)
}

// accessClaims is the subset of GoTrue access token claims the client reads.
type accessClaims struct {
	jwt.RegisteredClaims

	Email        string         `json:"email,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
}

// newSession builds a Session from a token response. Expiry is taken from
// expires_at, then the token's exp claim, then expires_in.
func newSession(tr *TokenResponse, now time.Time) *Session {
	s := &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	if tr.User != nil {
		s.User = *tr.User
	}

	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	default:
		if exp, ok := tokenExpiry(tr.AccessToken); ok {
			s.ExpiresAt = exp
		} else {
			s.ExpiresAt = now.Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
		}
	}

	if s.User.ID == "" {
		if claims, ok := parseAccessClaims(tr.AccessToken); ok {
			s.User.ID = claims.Subject
			s.User.Email = claims.Email
			s.User.UserMetadata = claims.UserMetadata
		}
	}
	return s
}

// parseAccessClaims decodes an access token without verifying its signature.
// The client cannot verify it (the signing secret lives on the server); the
// claims are only used for scheduling refreshes.
func parseAccessClaims(token string) (*accessClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func tokenExpiry(token string) (time.Time, bool) {
	claims, ok := parseAccessClaims(token)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.UTC(), true
}
