// Package avatar issues session tokens for the HeyGen streaming avatar that
// fronts the live interview in the browser.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the HeyGen API root.
const DefaultBaseURL = "https://api.heygen.com"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("avatar: heygen api key is not configured")

// Client requests streaming tokens.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client. The default times out after 15s.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a [Client] authenticating with apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// CreateToken requests a new streaming session token.
func (c *Client) CreateToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/streaming.create_token", nil)
	if err != nil {
		return "", fmt.Errorf("avatar: build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("avatar: create token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("avatar: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("avatar: token request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	token := gjson.GetBytes(body, "data.token").String()
	if token == "" {
		return "", errors.New("avatar: response has no data.token")
	}
	return token, nil
}
