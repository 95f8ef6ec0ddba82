/*
session.go - Bearer-credential issue and validation

PURPOSE:
  Turns a verified Telegram identity into an opaque bearer token the
  Mini App presents on subsequent calls. Tokens are random, stored
  server-side with an expiry, and resolved back to a live account on
  every request — so a revoked or deleted account loses access
  immediately, and role changes take effect without re-login.

TOKEN SHAPE:
  Opaque random value (not a signed claim set). The stored session is
  the source of truth; the account record is the source of truth for
  the role. Nothing is trusted from the client beyond the token bytes.
*/
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bandroom/studio-scheduler/schedule"
)

// DefaultSessionTTL matches the original deployment's one-day tokens.
const DefaultSessionTTL = 24 * time.Hour

var (
	// ErrSessionNotFound is returned for unknown or deleted tokens.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned for tokens past their expiry.
	ErrSessionExpired = errors.New("session expired")
)

// Session is one issued credential.
type Session struct {
	ID        string
	Token     string
	AccountID schedule.AccountID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionStore persists sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) error
}

// Sessions issues and resolves bearer tokens.
type Sessions struct {
	store    SessionStore
	accounts schedule.AccountStore
	ttl      time.Duration
}

// NewSessions creates a session manager. ttl <= 0 uses DefaultSessionTTL.
func NewSessions(store SessionStore, accounts schedule.AccountStore, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{store: store, accounts: accounts, ttl: ttl}
}

// Issue creates a new session for the account and returns the token.
func (s *Sessions) Issue(ctx context.Context, accountID schedule.AccountID) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}

	now := time.Now().UTC()
	session := Session{
		ID:        uuid.NewString(),
		Token:     token,
		AccountID: accountID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Resolve maps a bearer token to the live account record. Expired
// sessions are deleted on sight; a session whose account no longer
// exists resolves to ErrSessionNotFound.
func (s *Sessions) Resolve(ctx context.Context, token string) (*schedule.Account, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.store.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		_ = s.store.DeleteSession(ctx, token)
		return nil, ErrSessionExpired
	}

	account, err := s.accounts.GetAccount(ctx, session.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		_ = s.store.DeleteSession(ctx, token)
		return nil, ErrSessionNotFound
	}
	return account, nil
}

// Revoke deletes a session by token. Unknown tokens are a no-op.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// PurgeExpired removes sessions that expired before now.
func (s *Sessions) PurgeExpired(ctx context.Context) error {
	return s.store.DeleteExpiredSessions(ctx, time.Now().UTC())
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
