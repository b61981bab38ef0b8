package cachedhttp

import (
	"sync"
	"time"
)

// Session holds the bearer token attached to outgoing requests. The token is
// set once after login; there is no refresh, so a token revoked upstream
// surfaces as ErrUnauthorized on later calls.
type Session struct {
	mu    sync.RWMutex
	token string
	setAt time.Time
}

// NewSession creates an unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// SetToken stores the token returned by a login exchange.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.setAt = time.Now()
}

// Token returns the current token, empty when not logged in.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// AuthenticatedAt returns when the token was set.
func (s *Session) AuthenticatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.setAt
}

// Clear drops the token.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.setAt = time.Time{}
}
