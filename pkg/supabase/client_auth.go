package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// SignUpRequest is the body of POST /auth/v1/signup.
type SignUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// SignUp registers a new identity. When the project auto-confirms emails the
// response carries a session; otherwise only the user is returned and the
// TokenResponse is nil.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*TokenResponse, *User, error) {
	var raw json.RawMessage
	err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   req,
	}, &raw)
	if err != nil {
		return nil, nil, err
	}

	var tr TokenResponse
	if err := json.Unmarshal(raw, &tr); err == nil && tr.AccessToken != "" {
		return &tr, tr.User, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil, err
	}
	return nil, &user, nil
}

// PasswordGrant exchanges email and password for a token pair.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (*TokenResponse, error) {
	return c.requestToken(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// RefreshGrant exchanges a refresh token for a new token pair. GoTrue rotates
// refresh tokens, so the returned pair replaces the old one.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.requestToken(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

func (c *Client) requestToken(ctx context.Context, grantType string, body any) (*TokenResponse, error) {
	var tr TokenResponse
	err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
	}, &tr)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// Logout revokes the session behind accessToken.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.call(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		token:  accessToken,
	}, nil)
}

// GetUser returns the identity behind accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		token:  accessToken,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
