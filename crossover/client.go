/*
Package crossover is the client for the upstream time-tracking service.

PURPOSE:
  Wraps the undocumented HTTP API behind typed calls: token authentication,
  the multi-strategy fetch engine, profile lookups, and approval actions.
  All response-shape heterogeneity is contained here (normalize.go) so the
  rest of the system only ever sees canonical sequences.

AUTH CONTRACT:
  POST /api/v3/token with Basic credentials returns a token that every data
  call carries in an x-auth-token header. A rejection by the token endpoint
  means the stored secret is stale (tracker.ErrAuth) and the caller must
  invalidate stored credentials; a transport failure reaching it is only a
  transient outage (tracker.ErrUnavailable).

FAILURE POLICY:
  Per-strategy transport and parse failures are "no data, try the next";
  only the exhaustion of every strategy surfaces as tracker.ErrUnavailable.
  Nothing in this package panics or returns a partial decode.

SEE ALSO:
  - fetch.go: strategy descriptors and the first-non-empty combinator
  - engine/cycle.go: applies cache fallback when this package reports
    unavailability
*/
package crossover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
)

const (
	prodBase = "https://api.crossover.com"
	qaBase   = "https://api-qa.crossover.com"

	defaultTimeout = 8 * time.Second
)

// Client talks to one upstream deployment. It holds no session state:
// Authenticate returns a token and every data call takes it explicitly.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the given environment.
func New(env tracker.Environment) *Client {
	base := prodBase
	if env == tracker.EnvQA {
		base = qaBase
	}
	return NewWithBase(base, &http.Client{Timeout: defaultTimeout})
}

// NewWithBase creates a client against an explicit base URL. Used by tests
// and by deployments fronted by a proxy.
func NewWithBase(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// tokenResponse covers the shapes the token endpoint is known to return.
type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// Authenticate exchanges Basic credentials for a session token. A
// transport failure is transient; a response the endpoint rejects or
// that carries no token wraps tracker.ErrAuth.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v3/token", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", tracker.ErrUnavailable, err)
	}
	req.SetBasicAuth(username, password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", tracker.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil || resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", tracker.ErrAuth, resp.StatusCode)
	}

	token := parseToken(body)
	if token == "" {
		return "", fmt.Errorf("%w: empty token in response", tracker.ErrAuth)
	}
	return token, nil
}

// parseToken accepts {token}, {access_token}, a bare JSON string, or a
// bare text body — all observed in the wild.
func parseToken(body []byte) string {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err == nil {
		if tr.Token != "" {
			return tr.Token
		}
		if tr.AccessToken != "" {
			return tr.AccessToken
		}
	}
	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		return strings.TrimSpace(bare)
	}
	return strings.TrimSpace(string(body))
}

// =============================================================================
// REQUEST PRIMITIVES
// =============================================================================

// getBody performs an authenticated GET and returns the raw body. Non-2xx
// statuses are errors; callers treat them as "no data" per strategy.
func (c *Client) getBody(ctx context.Context, token, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-auth-token", token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: status 401 from %s", tracker.ErrAuth, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// getJSON decodes an authenticated GET straight into out.
func (c *Client) getJSON(ctx context.Context, token, url string, out any) error {
	body, err := c.getBody(ctx, token, url)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// putJSON performs an authenticated PUT; success is exactly HTTP 200.
func (c *Client) putJSON(ctx context.Context, token, url string, payload any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("x-auth-token", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}
	return nil
}
