package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/NjengaIWJ/tetea-jamii/internal/platform/logging"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotHydrated      = errors.New("session not hydrated yet")
)

// Client talks to the CMS API with session handling built in: bearer token
// injection, one transparent refresh-and-retry on 401, and a hydration gate.
type Client struct {
	baseURL   string
	http      *http.Client
	state     *sessionState
	statePath string
	guard     *Guard
	logger    *logging.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// StatePath is where identity and token persist between runs. Empty
	// disables persistence.
	StatePath string
	// PublicPaths and SafePath configure the navigation guard; empty values
	// take the defaults.
	PublicPaths []string
	SafePath    string
	Timeout     time.Duration
	Logger      *logging.Logger
}

// New builds a client. The persisted identity, if any, is loaded immediately
// but the session stays in the hydrating phase until Hydrate runs.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client requires a base URL")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	c := &Client{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		state:     loadState(opts.StatePath),
		statePath: opts.StatePath,
		guard:     NewGuard(opts.PublicPaths, opts.SafePath),
		logger:    opts.Logger,
	}
	c.http = &http.Client{
		Timeout: opts.Timeout,
		Transport: &retryTransport{
			base:    http.DefaultTransport,
			state:   c.state,
			refresh: c.tryRefresh,
		},
	}
	return c, nil
}

// Status returns the current session phase.
func (c *Client) Status() Status {
	return c.state.status()
}

// Resolve runs the navigation guard against the current phase: while
// hydrating or signed in the path passes through; once hydration settles
// signed out, non-public paths fall back to the safe default.
func (c *Client) Resolve(path string) (string, bool) {
	return c.guard.Resolve(c.Status(), path)
}

// Identity returns the last known identity. During hydration it is only a
// rendering hint; ErrNotHydrated reminds callers not to gate on it.
func (c *Client) Identity() (*Identity, error) {
	identity, _, hydrated := c.state.snapshot()
	if !hydrated {
		return identity, ErrNotHydrated
	}
	if identity == nil {
		return nil, ErrNotAuthenticated
	}
	return identity, nil
}

// Envelope is the server's uniform response envelope.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

type sessionPayload struct {
	Admin *Identity `json:"admin"`
	Token string    `json:"token"`
}

// Hydrate confirms or discards the stored session with one refresh round
// trip. Whatever the outcome, the client leaves the hydrating phase: a
// network failure or rejection clears the identity rather than trusting it.
func (c *Client) Hydrate(ctx context.Context) error {
	defer c.state.markHydrated()

	_, token, _ := c.state.snapshot()
	if token == "" {
		c.state.clearSession()
		return nil
	}

	payload, err := c.refreshOnce(ctx)
	if err != nil {
		c.state.clearSession()
		c.persist()
		c.logger.InfoTag("client", "hydration failed, starting signed out: %v", err)
		return nil
	}

	c.state.setSession(payload.Admin, payload.Token)
	c.persist()
	return nil
}

// Login authenticates and stores the fresh session.
func (c *Client) Login(ctx context.Context, email, password string) (*Identity, error) {
	body, err := sonic.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	env, status, err := c.doJSON(ctx, http.MethodPost, "/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("login failed: %s", env.Message)
	}

	var payload sessionPayload
	if err := sonic.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("unexpected login response: %w", err)
	}
	// a 200 without both identity and token is malformed; committing it
	// would poison the session state
	if payload.Admin == nil || payload.Token == "" {
		return nil, errors.New("login response missing identity or token")
	}

	c.state.setSession(payload.Admin, payload.Token)
	c.state.markHydrated()
	c.persist()
	return payload.Admin, nil
}

// Logout clears the session locally and tells the server to drop its cookie.
func (c *Client) Logout(ctx context.Context) error {
	_, status, err := c.doJSON(ctx, http.MethodPost, "/logout", nil)
	c.state.clearSession()
	c.persist()
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("logout returned status %d", status)
	}
	return nil
}

// refreshOnce performs one refresh round trip, outside the retrying
// transport's interception.
func (c *Client) refreshOnce(ctx context.Context) (*sessionPayload, error) {
	env, status, err := c.doJSON(ctx, http.MethodGet, "/refresh", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("refresh rejected: %s", env.Message)
	}
	var payload sessionPayload
	if err := sonic.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("unexpected refresh response: %w", err)
	}
	if payload.Admin == nil || payload.Token == "" {
		return nil, errors.New("refresh response missing identity or token")
	}
	return &payload, nil
}

// tryRefresh backs the transport's 401 retry. It refreshes synchronously
// and reports success; on rejection the session is cleared so the caller
// sees the original 401.
func (c *Client) tryRefresh() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, err := c.refreshOnce(ctx)
	if err != nil {
		c.state.clearSession()
		c.persist()
		return false
	}
	c.state.setSession(payload.Admin, payload.Token)
	c.persist()
	return true
}

// Do issues an authenticated request relative to the base URL and decodes
// the response envelope. Non-2xx envelopes come back as errors.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*Envelope, error) {
	env, status, err := c.doJSON(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return env, fmt.Errorf("%s %s: %s (status %d)", method, path, env.Message, status)
	}
	return env, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader) (*Envelope, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("unexpected response body: %w", err)
	}
	return &env, resp.StatusCode, nil
}

func (c *Client) persist() {
	if err := saveState(c.statePath, c.state); err != nil {
		c.logger.WarnTag("client", "failed to persist session state: %v", err)
	}
}
