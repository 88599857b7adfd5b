// Package client is the typed HTTP client for the storybook-generation
// backend. One method per backend action; all methods take a context and
// round-trip JSON through a single helper.
package client

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storyforge/session"
)

// Client talks to one backend on behalf of one session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sess       *session.Session
	log        zerolog.Logger
}

// New creates a client for the given base URL. The session supplies the
// identity header attached to every request.
func New(baseURL string, sess *session.Session, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sess:       sess,
		log:        log,
	}
}

// SetTimeout overrides the whole-request timeout; zero disables it, leaving
// cancellation to the caller's context.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}
