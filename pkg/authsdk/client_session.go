package authsdk

import (
	"context"
	"net/http"
)

// State returns the current session snapshot.
func (c *Client) State(ctx context.Context) (*StateResponse, error) {
	return c.state(ctx, http.MethodGet, "/v1/auth/state", nil)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*StateResponse, error) {
	return c.state(ctx, http.MethodPost, "/v1/auth/signin", SignInRequest{Email: email, Password: password})
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*StateResponse, error) {
	return c.state(ctx, http.MethodPost, "/v1/auth/signup", req)
}

// SignOut always leaves the dashboard signed out.
func (c *Client) SignOut(ctx context.Context) (*StateResponse, error) {
	return c.state(ctx, http.MethodPost, "/v1/auth/signout", nil)
}

// Refresh re-reads the backend session.
func (c *Client) Refresh(ctx context.Context) (*StateResponse, error) {
	return c.state(ctx, http.MethodPost, "/v1/auth/refresh", nil)
}

func (c *Client) UpdateProfile(ctx context.Context, req ProfileUpdateRequest) (*StateResponse, error) {
	return c.state(ctx, http.MethodPatch, "/v1/auth/profile", req)
}

// Connection runs a backend connection check.
func (c *Client) Connection(ctx context.Context) (*ConnectionStatus, error) {
	var status ConnectionStatus
	if err := c.call(ctx, http.MethodGet, "/v1/auth/connection", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) state(ctx context.Context, method, path string, body any) (*StateResponse, error) {
	var st StateResponse
	if err := c.call(ctx, method, path, body, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
