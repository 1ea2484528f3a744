package supabase

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Placeholder values shipped in example environments. A client configured
// with either of these is treated as unconfigured.
const (
	PlaceholderURL = "https://placeholder.supabase.co"
	PlaceholderKey = "placeholder-key"

	hostSuffix = ".supabase.co"
)

// DefaultTimeout bounds every HTTP call made by a Client.
const DefaultTimeout = 10 * time.Second

// Client talks to the auth (GoTrue), REST (PostgREST) and realtime endpoints of
// a single Supabase project. It holds no session state; see Auth for that.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a client with a bounded HTTP timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Configured reports whether the client points at a real project: both values
// present, neither a placeholder, and the host under the supabase.co domain.
func (c *Client) Configured() bool {
	return IsConfigured(c.BaseURL, c.APIKey)
}

// IsConfigured applies the configuration check to raw values.
func IsConfigured(baseURL, apiKey string) bool {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	apiKey = strings.TrimSpace(apiKey)

	if baseURL == "" || apiKey == "" {
		return false
	}
	if baseURL == PlaceholderURL || apiKey == PlaceholderKey {
		return false
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.HasSuffix(u.Hostname(), hostSuffix)
}

// RealtimeURL returns the websocket endpoint for this project.
func (c *Client) RealtimeURL() string {
	base := c.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	q := url.Values{}
	q.Set("apikey", c.APIKey)
	q.Set("vsn", "1.0.0")
	return base + "/realtime/v1/websocket?" + q.Encode()
}
