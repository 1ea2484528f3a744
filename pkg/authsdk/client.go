package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client talks to a running scrum0 dashboard.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a bounded HTTP timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}
