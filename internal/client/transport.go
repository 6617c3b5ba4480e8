package client

import (
	"net/http"
	"sync"
)

// refreshFunc attempts a token refresh and reports whether a new token was
// obtained.
type refreshFunc func() bool

// retryTransport retries a request exactly once after a 401, provided a
// token refresh succeeds in between. The refresh call itself and the other
// session endpoints are exempt, otherwise an expired session would loop.
type retryTransport struct {
	base    http.RoundTripper
	state   *sessionState
	refresh refreshFunc

	// single-flight guard so concurrent 401s trigger one refresh
	mu sync.Mutex
}

var exemptPaths = map[string]bool{
	"/login":   true,
	"/refresh": true,
	"/logout":  true,
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.authorize(req)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || exemptPaths[req.URL.Path] {
		return resp, nil
	}
	// a request without a replayable body cannot be retried
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	t.mu.Lock()
	refreshed := t.refresh()
	t.mu.Unlock()
	if !refreshed {
		return resp, nil
	}
	resp.Body.Close()

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	t.authorize(retry)
	return t.base.RoundTrip(retry)
}

// authorize attaches the current token as a bearer header.
func (t *retryTransport) authorize(req *http.Request) {
	_, token, _ := t.state.snapshot()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Del("Authorization")
	}
}
