/*
store.go - Persistence contracts for ledgers and accounts

PURPOSE:
  Defines the interface between the reservation engine and the
  database. The engine never does read-then-write races: the store is
  the single point where concurrent requests for the same day are
  resolved.

ATOMICITY CONTRACT:
  AppendSlots: conflict check + insert happen inside one storage-level
  transaction. Two concurrent calls that both target hour H on the same
  day can never both succeed; the loser gets H back in the conflicts
  slice and no partial insert survives (all-or-nothing).

  RemoveSlots: the ownership scope (owner account unless adminOverride)
  is part of the removal predicate itself, not a separate check. The
  last booking removed deletes the ledger in the same transaction, so
  empty ledgers never persist.

IMPLEMENTATIONS:
  - store/sqlite: production store (accounts, ledgers, sessions)
  - schedule/store/memory: in-memory store for engine tests
*/
package schedule

import "context"

// =============================================================================
// LEDGER STORE
// =============================================================================

// RemovalResult describes what an atomic RemoveSlots call did.
type RemovalResult struct {
	// Removed lists the bookings actually deleted (commit-time truth;
	// the engine uses it to notify prior owners).
	Removed []SlotBooking

	// Ledger is the post-removal ledger, nil when the day's last
	// booking was removed and the ledger itself was deleted.
	Ledger *DayLedger

	// LedgerDeleted is true when the ledger no longer exists.
	LedgerDeleted bool
}

// LedgerStore persists day ledgers. One ledger per calendar day.
type LedgerStore interface {
	// GetLedger returns the ledger for day, or nil if none exists.
	GetLedger(ctx context.Context, day DayKey) (*DayLedger, error)

	// AppendSlots atomically inserts the given bookings into day's
	// ledger, creating the ledger if absent (upsert). If any requested
	// hour is already occupied, NOTHING is inserted and the occupied
	// hours are returned in conflicts. This is the sole race-resolution
	// point for concurrent bookings.
	AppendSlots(ctx context.Context, day DayKey, slots []SlotBooking) (ledger *DayLedger, conflicts []Hour, err error)

	// RemoveSlots atomically deletes bookings for the given hours,
	// scoped to owner unless adminOverride is set. Hours that are
	// absent or out of scope are silently skipped. Deletes the ledger
	// when it ends up empty.
	RemoveSlots(ctx context.Context, day DayKey, hours []Hour, owner AccountID, adminOverride bool) (RemovalResult, error)

	// DaysWithBookings returns the days in [from, to] that have at
	// least one booking, in ascending order.
	DaysWithBookings(ctx context.Context, from, to DayKey) ([]DayKey, error)
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

// AccountStore persists accounts. The store is the source of truth for
// roles; tokens only carry hints.
type AccountStore interface {
	// CreateAccount inserts a new account. The Telegram id must be
	// unique; a duplicate is an error.
	CreateAccount(ctx context.Context, a Account) error

	// GetAccount returns the account by internal id, or nil.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// GetAccountByTelegramID returns the account by Telegram id, or nil.
	GetAccountByTelegramID(ctx context.Context, telegramID int64) (*Account, error)

	// UpdateProfile refreshes the mutable profile fields (names,
	// username, photo). Role and ids are untouched.
	UpdateProfile(ctx context.Context, id AccountID, firstName, lastName, username, photoURL string) error

	// SetRole changes an account's role. Admin-initiated only.
	SetRole(ctx context.Context, id AccountID, role Role) error

	// ListAccounts returns all accounts ordered by creation time.
	ListAccounts(ctx context.Context) ([]Account, error)

	// DeleteAccount hard-deletes an account. Existing bookings keep
	// their snapshot data.
	DeleteAccount(ctx context.Context, id AccountID) error
}
