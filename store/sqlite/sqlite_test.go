package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandroom/studio-scheduler/auth"
	"github.com/bandroom/studio-scheduler/schedule"
	"github.com/bandroom/studio-scheduler/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(t *testing.T, s string) schedule.DayKey {
	t.Helper()
	d, err := schedule.ParseDayKey(s)
	require.NoError(t, err)
	return d
}

func slot(hour schedule.Hour, owner string) schedule.SlotBooking {
	return schedule.SlotBooking{
		Hour:        hour,
		AccountID:   schedule.AccountID(owner),
		DisplayName: owner,
		Kind:        schedule.KindRehearsal,
		CreatedAt:   time.Now().UTC(),
	}
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func TestAppendSlots_CreatesLedgerLazily(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	d := day(t, "10/03/2025")

	got, err := store.GetLedger(ctx, d)
	require.NoError(t, err)
	assert.Nil(t, got, "no ledger before first booking")

	ledger, conflicts, err := store.AppendSlots(ctx, d,
		[]schedule.SlotBooking{slot("18:00", "u1"), slot("19:00", "u1")})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	require.NotNil(t, ledger)
	assert.Len(t, ledger.Slots, 2)

	got, err = store.GetLedger(ctx, d)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Slots, 2)
}

func TestAppendSlots_ConflictIsAllOrNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	d := day(t, "10/03/2025")

	_, conflicts, err := store.AppendSlots(ctx, d,
		[]schedule.SlotBooking{slot("18:00", "u1"), slot("19:00", "u1")})
	require.NoError(t, err)
	require.Empty(t, conflicts)

	ledger, conflicts, err := store.AppendSlots(ctx, d,
		[]schedule.SlotBooking{slot("19:00", "u2"), slot("20:00", "u2")})
	require.NoError(t, err)
	assert.Nil(t, ledger)
	assert.Equal(t, []schedule.Hour{"19:00"}, conflicts)

	// 20:00 was free but the failed request must not have touched it.
	got, err := store.GetLedger(ctx, d)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Slots, 2)
	for _, s := range got.Slots {
		assert.Equal(t, schedule.AccountID("u1"), s.AccountID)
	}
}

func TestAppendSlots_SlotFieldsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	d := day(t, "10/03/2025")

	in := schedule.SlotBooking{
		Hour:        "21:00",
		AccountID:   "u1",
		DisplayName: "ivan_drums",
		PhotoURL:    "https://t.me/i/u1.jpg",
		BandName:    "The Valves",
		Kind:        schedule.KindShooting,
		CreatedAt:   time.Date(2025, time.March, 1, 10, 30, 0, 0, time.UTC),
	}
	_, conflicts, err := store.AppendSlots(ctx, d, []schedule.SlotBooking{in})
	require.NoError(t, err)
	require.Empty(t, conflicts)

	got, err := store.GetLedger(ctx, d)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Slots, 1)
	assert.Equal(t, in, got.Slots[0])
}

func TestRemoveSlots_OwnerScopeInPredicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	d := day(t, "10/03/2025")

	_, _, err := store.AppendSlots(ctx, d,
		[]schedule.SlotBooking{slot("18:00", "u1"), slot("19:00", "u2")})
	require.NoError(t, err)

	// u1 asks for both hours; only their own is removed.
	res, err := store.RemoveSlots(ctx, d, []schedule.Hour{"18:00", "19:00"}, "u1", false)
	require.NoError(t, err)
	require.Len(t, res.Removed, 1)
	assert.Equal(t, schedule.Hour("18:00"), res.Removed[0].Hour)
	assert.False(t, res.LedgerDeleted)
	require.NotNil(t, res.Ledger)
	require.Len(t, res.Ledger.Slots, 1)
	assert.Equal(t, schedule.AccountID("u2"), res.Ledger.Slots[0].AccountID)
}

func TestRemoveSlots_AdminOverrideRemovesForeign(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	d := day(t, "10/03/2025")

	_, _, err := store.AppendSlots(ctx, d,
		[]schedule.SlotBooking{slot("18:00", "u1"), slot("19:00", "u2")})
	require.NoError(t, err)

	res, err := store.RemoveSlots(ctx, d, []schedule.Hour{"18:00", "19:00"}, "a1", true)
	require.NoError(t, err)
	assert.Len(t, res.Removed, 2)
	assert.True(t, res.LedgerDeleted)
}

func TestRemoveSlots_LastBookingDeletesLedger(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	d := day(t, "10/03/2025")

	_, _, err := store.AppendSlots(ctx, d, []schedule.SlotBooking{slot("18:00", "u1")})
	require.NoError(t, err)

	res, err := store.RemoveSlots(ctx, d, []schedule.Hour{"18:00"}, "u1", false)
	require.NoError(t, err)
	assert.True(t, res.LedgerDeleted)
	assert.Nil(t, res.Ledger)

	got, err := store.GetLedger(ctx, d)
	require.NoError(t, err)
	assert.Nil(t, got, "ledger row must be gone, not just empty")

	// The day can be booked again from scratch.
	ledger, conflicts, err := store.AppendSlots(ctx, d, []schedule.SlotBooking{slot("18:00", "u2")})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Len(t, ledger.Slots, 1)
}

func TestDaysWithBookings_MonthWindowAscending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, s := range []string{"20/03/2025", "05/03/2025", "01/04/2025", "28/02/2025"} {
		_, _, err := store.AppendSlots(ctx, day(t, s), []schedule.SlotBooking{slot("18:00", "u1")})
		require.NoError(t, err)
	}

	from, to := day(t, "15/03/2025").MonthRange()
	days, err := store.DaysWithBookings(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "05/03/2025", days[0].String())
	assert.Equal(t, "20/03/2025", days[1].String())
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func account(id string, telegramID int64, role schedule.Role) schedule.Account {
	now := time.Now().UTC().Truncate(time.Second)
	return schedule.Account{
		ID:         schedule.AccountID(id),
		TelegramID: telegramID,
		FirstName:  "Ivan",
		Username:   id,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestAccounts_CreateAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, account("u1", 111, schedule.RoleGuest)))

	byID, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, int64(111), byID.TelegramID)
	assert.Equal(t, schedule.RoleGuest, byID.Role)

	byTG, err := store.GetAccountByTelegramID(ctx, 111)
	require.NoError(t, err)
	require.NotNil(t, byTG)
	assert.Equal(t, schedule.AccountID("u1"), byTG.ID)

	missing, err := store.GetAccountByTelegramID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAccounts_TelegramIDUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, account("u1", 111, schedule.RoleGuest)))
	err := store.CreateAccount(ctx, account("u2", 111, schedule.RoleGuest))
	assert.Error(t, err, "second account for the same telegram identity must fail")
}

func TestAccounts_UpdateProfileKeepsRole(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, account("u1", 111, schedule.RoleUser)))
	require.NoError(t, store.UpdateProfile(ctx, "u1", "Ivan", "Petrov", "ivan_drums", "https://t.me/i/new.jpg"))

	got, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Petrov", got.LastName)
	assert.Equal(t, "ivan_drums", got.Username)
	assert.Equal(t, schedule.RoleUser, got.Role, "profile refresh must not touch the role")
}

func TestAccounts_SetRole(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, account("u1", 111, schedule.RoleGuest)))
	require.NoError(t, store.SetRole(ctx, "u1", schedule.RoleUser))

	got, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, schedule.RoleUser, got.Role)

	assert.Error(t, store.SetRole(ctx, "missing", schedule.RoleUser))
}

func TestAccounts_DeleteRemovesSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, account("u1", 111, schedule.RoleUser)))
	session := auth.Session{
		ID:        "s1",
		Token:     "tok-1",
		AccountID: "u1",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateSession(ctx, session))

	require.NoError(t, store.DeleteAccount(ctx, "u1"))

	gone, err := store.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, gone, "deleting the account revokes its sessions")

	assert.Error(t, store.DeleteAccount(ctx, "u1"), "double delete reports not found")
}

// =============================================================================
// SESSION STORE
// =============================================================================

func TestSessions_RoundTripAndPurge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	live := auth.Session{ID: "s1", Token: "tok-live", AccountID: "u1",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	stale := auth.Session{ID: "s2", Token: "tok-stale", AccountID: "u1",
		ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour)}
	require.NoError(t, store.CreateSession(ctx, live))
	require.NoError(t, store.CreateSession(ctx, stale))

	got, err := store.GetSession(ctx, "tok-live")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, live.ExpiresAt, got.ExpiresAt)

	require.NoError(t, store.DeleteExpiredSessions(ctx, now))

	gone, err := store.GetSession(ctx, "tok-stale")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := store.GetSession(ctx, "tok-live")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	require.NoError(t, store.DeleteSession(ctx, "tok-live"))
	kept, err = store.GetSession(ctx, "tok-live")
	require.NoError(t, err)
	assert.Nil(t, kept)
}
