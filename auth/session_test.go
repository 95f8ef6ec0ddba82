package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandroom/studio-scheduler/auth"
	"github.com/bandroom/studio-scheduler/schedule"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]auth.Session
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]auth.Session)}
}

func (m *memorySessions) CreateSession(_ context.Context, s auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return nil
}

func (m *memorySessions) GetSession(_ context.Context, token string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[token]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memorySessions) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memorySessions) DeleteExpiredSessions(_ context.Context, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.sessions {
		if !s.ExpiresAt.After(cutoff) {
			delete(m.sessions, token)
		}
	}
	return nil
}

type memoryAccounts struct {
	mu   sync.Mutex
	byID map[schedule.AccountID]schedule.Account
}

func newMemoryAccounts(accounts ...schedule.Account) *memoryAccounts {
	m := &memoryAccounts{byID: make(map[schedule.AccountID]schedule.Account)}
	for _, a := range accounts {
		m.byID[a.ID] = a
	}
	return m
}

func (m *memoryAccounts) GetAccount(_ context.Context, id schedule.AccountID) (*schedule.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *memoryAccounts) CreateAccount(_ context.Context, a schedule.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = a
	return nil
}

func (m *memoryAccounts) GetAccountByTelegramID(context.Context, int64) (*schedule.Account, error) {
	return nil, nil
}
func (m *memoryAccounts) UpdateProfile(context.Context, schedule.AccountID, string, string, string, string) error {
	return nil
}
func (m *memoryAccounts) SetRole(_ context.Context, id schedule.AccountID, role schedule.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byID[id]
	a.Role = role
	m.byID[id] = a
	return nil
}
func (m *memoryAccounts) ListAccounts(context.Context) ([]schedule.Account, error) { return nil, nil }
func (m *memoryAccounts) DeleteAccount(_ context.Context, id schedule.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

// =============================================================================
// TESTS
// =============================================================================

func TestSessions_IssueAndResolve(t *testing.T) {
	accounts := newMemoryAccounts(schedule.Account{ID: "u1", Role: schedule.RoleUser})
	sessions := auth.NewSessions(newMemorySessions(), accounts, time.Hour)
	ctx := context.Background()

	issued, err := sessions.Issue(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.NotEmpty(t, issued.ID)

	account, err := sessions.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, schedule.AccountID("u1"), account.ID)
}

func TestSessions_TokensAreUnique(t *testing.T) {
	accounts := newMemoryAccounts(schedule.Account{ID: "u1"})
	sessions := auth.NewSessions(newMemorySessions(), accounts, time.Hour)
	ctx := context.Background()

	a, err := sessions.Issue(ctx, "u1")
	require.NoError(t, err)
	b, err := sessions.Issue(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestSessions_ResolveReflectsCurrentRole(t *testing.T) {
	// The stored account is the source of truth for the role, so a
	// promotion takes effect without re-login.
	accounts := newMemoryAccounts(schedule.Account{ID: "u1", Role: schedule.RoleGuest})
	sessions := auth.NewSessions(newMemorySessions(), accounts, time.Hour)
	ctx := context.Background()

	issued, err := sessions.Issue(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, accounts.SetRole(ctx, "u1", schedule.RoleUser))

	account, err := sessions.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, schedule.RoleUser, account.Role)
}

func TestSessions_ExpiredTokenRejected(t *testing.T) {
	accounts := newMemoryAccounts(schedule.Account{ID: "u1"})
	store := newMemorySessions()
	sessions := auth.NewSessions(store, accounts, time.Hour)
	ctx := context.Background()

	issued, err := sessions.Issue(ctx, "u1")
	require.NoError(t, err)

	// Force the session into the past.
	s := store.sessions[issued.Token]
	s.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	store.sessions[issued.Token] = s

	_, err = sessions.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)

	// Expired sessions are deleted on sight.
	_, err = sessions.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestSessions_DeletedAccountLosesAccess(t *testing.T) {
	accounts := newMemoryAccounts(schedule.Account{ID: "u1"})
	sessions := auth.NewSessions(newMemorySessions(), accounts, time.Hour)
	ctx := context.Background()

	issued, err := sessions.Issue(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, accounts.DeleteAccount(ctx, "u1"))

	_, err = sessions.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestSessions_RevokeAndEmptyToken(t *testing.T) {
	accounts := newMemoryAccounts(schedule.Account{ID: "u1"})
	sessions := auth.NewSessions(newMemorySessions(), accounts, time.Hour)
	ctx := context.Background()

	issued, err := sessions.Issue(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, sessions.Revoke(ctx, issued.Token))
	_, err = sessions.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	_, err = sessions.Resolve(ctx, "")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}
