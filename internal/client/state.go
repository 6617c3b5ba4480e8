// Package client is the session-aware API client used by the admin CLI. It
// mirrors the browser behavior: persisted identity is a hint for rendering,
// never proof; only a server round-trip during hydration confirms a session.
package client

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// Status is the session lifecycle phase.
type Status string

const (
	// StatusHydrating means the stored session has not been confirmed with
	// the server yet. Callers must not gate anything on identity while in
	// this phase.
	StatusHydrating       Status = "hydrating"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Identity is the admin identity as last reported by the server.
type Identity struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// persistedState is what survives restarts. The hydration outcome never
// does; every run starts over in the hydrating phase.
type persistedState struct {
	Identity *Identity `json:"identity,omitempty"`
	Token    string    `json:"token,omitempty"`
}

// sessionState tracks the in-memory session. hasHydrated flips to true
// exactly once per run, on the first hydration outcome, success or not.
type sessionState struct {
	mu          sync.RWMutex
	identity    *Identity
	token       string
	hasHydrated bool
}

func (s *sessionState) status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasHydrated {
		return StatusHydrating
	}
	if s.identity != nil {
		return StatusAuthenticated
	}
	return StatusUnauthenticated
}

func (s *sessionState) snapshot() (*Identity, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var id *Identity
	if s.identity != nil {
		copied := *s.identity
		id = &copied
	}
	return id, s.token, s.hasHydrated
}

func (s *sessionState) setSession(identity *Identity, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.token = token
}

func (s *sessionState) clearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.token = ""
}

func (s *sessionState) markHydrated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasHydrated = true
}

// loadState restores persisted identity and token. A missing or corrupt
// state file is a clean slate, not an error.
func loadState(path string) *sessionState {
	state := &sessionState{}
	if path == "" {
		return state
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return state
	}
	var persisted persistedState
	if err := sonic.Unmarshal(data, &persisted); err != nil {
		return state
	}
	state.identity = persisted.Identity
	state.token = persisted.Token
	return state
}

// saveState writes the persistable part of the session to disk.
func saveState(path string, state *sessionState) error {
	if path == "" {
		return nil
	}
	identity, token, _ := state.snapshot()
	data, err := sonic.Marshal(persistedState{Identity: identity, Token: token})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
