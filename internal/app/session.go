package app

import (
	"sync"

	"go.pactly.app/datakit/internal/core/domain"
)

// SessionState holds the authenticated session and implements
// ports.Session. The epoch counter moves on every login and logout so a
// refresh started under an old session can never commit into a new one.
type SessionState struct {
	mu    sync.Mutex
	token string
	epoch uint64
}

// NewSessionState creates a logged-out SessionState.
func NewSessionState() *SessionState {
	return &SessionState{}
}

// Login installs a bearer token and starts a new session epoch.
func (s *SessionState) Login(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.epoch++
}

// Logout drops the token and starts a new session epoch.
func (s *SessionState) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.epoch++
}

// Renew starts a new session epoch without changing the token. A refresh
// already in flight can no longer commit its result, while new operations
// keep the existing login.
func (s *SessionState) Renew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// Token returns the current bearer token, or domain.ErrSessionEnded when
// logged out.
func (s *SessionState) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", domain.ErrSessionEnded
	}
	return s.token, nil
}

// Epoch returns the current session epoch.
func (s *SessionState) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Active reports whether a user is logged in.
func (s *SessionState) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}
