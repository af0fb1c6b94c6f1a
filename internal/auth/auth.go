// Package auth authenticates back-office users for the merchant radar API.
//
// Authentication model:
// - POST /auth/login checks username/password against the users table
// - Success issues an opaque bearer token, valid for a configured TTL
// - All other endpoints require the token in the Authorization header
//
// Only token hashes are held server-side; the raw token is returned once.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/vistapay/merchant-radar/internal/metrics"
)

// Errors
var (
	ErrMissingFields      = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoToken            = errors.New("bearer token required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
)

// User is a back-office account from the credentials store.
type User struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"-"` // never serialized
}

// UserStore looks up accounts in the credentials store.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// Session is one issued token. Only the hash of the raw token is kept.
type Session struct {
	Hash      string
	Username  string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager handles credential checks and token issuance.
// Sessions live in memory for the process lifetime; a restart
// invalidates all tokens, which matches the 10-hour TTL model.
type Manager struct {
	users UserStore
	ttl   time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session // by token hash
}

// NewManager creates an auth manager issuing tokens with the given TTL.
func NewManager(users UserStore, ttl time.Duration) *Manager {
	return &Manager{
		users:    users,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Login validates credentials and issues a bearer token.
// Returns the raw token (shown once) and the matched user.
func (m *Manager) Login(ctx context.Context, username, password string) (string, *User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", nil, ErrMissingFields
	}

	user, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if user.Password != password {
		return "", nil, ErrInvalidCredentials
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}
	rawToken := "tk_" + hex.EncodeToString(b)

	now := time.Now()
	session := &Session{
		Hash:      hashToken(rawToken),
		Username:  user.Username,
		Name:      user.Name,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.purgeExpiredLocked(now)
	m.sessions[session.Hash] = session
	metrics.ActiveTokens.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	return rawToken, user, nil
}

// Validate checks a raw bearer token and returns its session.
func (m *Manager) Validate(rawToken string) (*Session, error) {
	rawToken = strings.TrimPrefix(rawToken, "Bearer ")
	rawToken = strings.TrimSpace(rawToken)

	if rawToken == "" {
		return nil, ErrNoToken
	}
	if !strings.HasPrefix(rawToken, "tk_") {
		return nil, ErrInvalidToken
	}

	hash := hashToken(rawToken)

	m.mu.RLock()
	session, ok := m.sessions[hash]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidToken
	}

	if time.Now().After(session.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, hash)
		metrics.ActiveTokens.Set(float64(len(m.sessions)))
		m.mu.Unlock()
		return nil, ErrInvalidToken
	}

	return session, nil
}

// Revoke invalidates a raw token immediately.
func (m *Manager) Revoke(rawToken string) {
	hash := hashToken(strings.TrimSpace(strings.TrimPrefix(rawToken, "Bearer ")))
	m.mu.Lock()
	delete(m.sessions, hash)
	metrics.ActiveTokens.Set(float64(len(m.sessions)))
	m.mu.Unlock()
}

// purgeExpiredLocked drops expired sessions. Caller holds the write lock.
func (m *Manager) purgeExpiredLocked(now time.Time) {
	for hash, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, hash)
		}
	}
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// MemoryUserStore is an in-memory implementation of UserStore.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*User // by username
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[string]*User),
	}
}

// Create adds or replaces a user.
func (s *MemoryUserStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
	return nil
}

func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}
