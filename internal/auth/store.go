package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/leonletto/tellersim/internal/identity"
)

// TokenHeader carries the login token on HTTP requests.
const TokenHeader = "X-CSRFToken"

// ErrInvalidCredentials is returned by Login for a wrong username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is one successful login.
type Session struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Token      string    `json:"token"`
	SessionKey string    `json:"session_key"`
	IP         string    `json:"ip,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store checks credentials against the shared secret and remembers the
// tokens it issues. Nothing survives a restart.
type Store struct {
	expected Credentials
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewStore creates a store accepting exactly expected. A zero ttl keeps
// logins forever.
func NewStore(expected Credentials, ttl time.Duration) *Store {
	return &Store{
		expected: expected,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// Login validates creds and issues a new token.
func (s *Store) Login(creds Credentials, ip string) (Session, error) {
	if !equal(creds.Username, s.expected.Username) || !equal(creds.Password, s.expected.Password) {
		return Session{}, ErrInvalidCredentials
	}

	token, err := identity.GenerateSecret(32)
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}
	key, err := identity.GenerateSecret(16)
	if err != nil {
		return Session{}, fmt.Errorf("generate session key: %w", err)
	}

	sess := Session{
		ID:         identity.GenerateLoginID(),
		Username:   creds.Username,
		Token:      token,
		SessionKey: key,
		IP:         ip,
		CreatedAt:  s.now(),
	}

	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()
	return sess, nil
}

// Lookup returns the live session for token.
func (s *Store) Lookup(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if s.ttl > 0 && s.now().Sub(sess.CreatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return Session{}, false
	}
	return sess, true
}

// Valid reports whether token belongs to a live login.
func (s *Store) Valid(token string) bool {
	_, ok := s.Lookup(token)
	return ok
}

// Count returns the number of stored logins, expired ones included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Authorize reports whether r carries a live token, either in the
// X-CSRFToken header or the token query parameter.
func (s *Store) Authorize(r *http.Request) bool {
	return s.Valid(TokenFromRequest(r))
}

// TokenFromRequest extracts the login token from r.
func TokenFromRequest(r *http.Request) string {
	if tok := r.Header.Get(TokenHeader); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
