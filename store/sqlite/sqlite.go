/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements schedule.LedgerStore, schedule.AccountStore, and
  auth.SessionStore on one database handle. This is the layer where
  concurrent reservation requests are actually serialized.

KEY TABLES:
  accounts:      Studio members, keyed by internal UUID; telegram_id
                 is unique (one account per Telegram identity).
  day_ledgers:   One row per calendar day that has bookings. Created
                 lazily, deleted when its last booking goes.
  slot_bookings: The bookings themselves. PRIMARY KEY (day, hour)
                 enforces the no-double-booking invariant at the
                 database level, not just in engine code.
  sessions:      Opaque bearer tokens with expiry.

ATOMICITY:
  AppendSlots and RemoveSlots each run inside one SQL transaction,
  serialized additionally by a write mutex (SQLite allows one writer
  at a time anyway). Two concurrent bookings that both saw the hour
  free cannot both insert it: the second insert hits the (day, hour)
  primary key and is reported back as a conflict, with nothing from
  that request committed.

DATE STORAGE:
  Days are stored as ISO "2006-01-02" strings so BETWEEN and ORDER BY
  work lexically. The DD/MM/YYYY wire format exists only at the API
  boundary.

USAGE:
  store, err := sqlite.New("./studio.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - schedule/store.go: The contracts implemented here
  - schedule/store/memory: In-memory implementation for engine tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bandroom/studio-scheduler/auth"
	"github.com/bandroom/studio-scheduler/schedule"
)

// dayLayout is the storage format for calendar days.
const dayLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes write transactions
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Studio members
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		telegram_id INTEGER NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		photo_url TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One row per day that has bookings; no empty ledgers persist
	CREATE TABLE IF NOT EXISTS day_ledgers (
		day TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: (day, hour) primary key is the no-double-booking
	-- invariant. Concurrent bookings race on this constraint, nowhere
	-- else.
	CREATE TABLE IF NOT EXISTS slot_bookings (
		day TEXT NOT NULL REFERENCES day_ledgers(day) ON DELETE CASCADE,
		hour TEXT NOT NULL,
		account_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		photo_url TEXT NOT NULL DEFAULT '',
		band_name TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (day, hour)
	);

	CREATE INDEX IF NOT EXISTS idx_slot_bookings_account
		ON slot_bookings(account_id);

	-- Bearer sessions
	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_account
		ON sessions(account_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires
		ON sessions(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// GetLedger returns the ledger for day, or nil if none exists.
func (s *Store) GetLedger(ctx context.Context, day schedule.DayKey) (*schedule.DayLedger, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM day_ledgers WHERE day = ?`, dbDay(day)).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, nil
	}
	slots, err := s.loadSlots(ctx, s.db, day)
	if err != nil {
		return nil, err
	}
	return &schedule.DayLedger{Day: day, Slots: slots}, nil
}

// AppendSlots atomically inserts bookings, creating the ledger row if
// needed. Conflict check and insert share one transaction; the
// (day, hour) primary key backstops races from outside this process.
func (s *Store) AppendSlots(ctx context.Context, day schedule.DayKey, slots []schedule.SlotBooking) (*schedule.DayLedger, []schedule.Hour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	requested := make([]schedule.Hour, len(slots))
	for i, slot := range slots {
		requested[i] = slot.Hour
	}
	conflicts, err := occupiedHours(ctx, tx, day, requested)
	if err != nil {
		return nil, nil, err
	}
	if len(conflicts) > 0 {
		return nil, conflicts, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO day_ledgers (day, created_at) VALUES (?, ?)
		 ON CONFLICT(day) DO NOTHING`,
		dbDay(day), now()); err != nil {
		return nil, nil, err
	}

	for _, slot := range slots {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO slot_bookings
			 (day, hour, account_id, display_name, photo_url, band_name, kind, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			dbDay(day), string(slot.Hour), string(slot.AccountID),
			slot.DisplayName, slot.PhotoURL, slot.BandName,
			string(slot.Kind), slot.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			if isUniqueViolation(err) {
				// Lost a cross-process race after our check. Report
				// the currently occupied hours; nothing from this
				// request survives the rollback.
				tx.Rollback()
				conflicts, cErr := occupiedHours(ctx, s.db, day, requested)
				if cErr != nil {
					return nil, nil, cErr
				}
				return nil, conflicts, nil
			}
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	ledgerSlots, err := s.loadSlots(ctx, s.db, day)
	if err != nil {
		return nil, nil, err
	}
	return &schedule.DayLedger{Day: day, Slots: ledgerSlots}, nil, nil
}

// RemoveSlots atomically deletes matching bookings. The ownership
// scope is part of the DELETE predicate itself, and the empty-ledger
// cleanup commits in the same transaction.
func (s *Store) RemoveSlots(ctx context.Context, day schedule.DayKey, hours []schedule.Hour, owner schedule.AccountID, adminOverride bool) (schedule.RemovalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schedule.RemovalResult{}, err
	}
	defer tx.Rollback()

	placeholders, args := hourArgs(day, hours)
	scope := ""
	if !adminOverride {
		scope = " AND account_id = ?"
		args = append(args, string(owner))
	}

	// Capture what the predicate matches, then delete with the very
	// same predicate. Single transaction, so the two cannot diverge.
	rows, err := tx.QueryContext(ctx,
		`SELECT hour, account_id, display_name, photo_url, band_name, kind, created_at
		 FROM slot_bookings
		 WHERE day = ? AND hour IN (`+placeholders+`)`+scope, args...)
	if err != nil {
		return schedule.RemovalResult{}, err
	}
	removed, err := scanSlots(rows)
	if err != nil {
		return schedule.RemovalResult{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM slot_bookings
		 WHERE day = ? AND hour IN (`+placeholders+`)`+scope, args...); err != nil {
		return schedule.RemovalResult{}, err
	}

	var remaining int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM slot_bookings WHERE day = ?`, dbDay(day)).Scan(&remaining); err != nil {
		return schedule.RemovalResult{}, err
	}

	if remaining == 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM day_ledgers WHERE day = ?`, dbDay(day)); err != nil {
			return schedule.RemovalResult{}, err
		}
		if err := tx.Commit(); err != nil {
			return schedule.RemovalResult{}, err
		}
		return schedule.RemovalResult{Removed: removed, LedgerDeleted: true}, nil
	}

	if err := tx.Commit(); err != nil {
		return schedule.RemovalResult{}, err
	}

	slots, err := s.loadSlots(ctx, s.db, day)
	if err != nil {
		return schedule.RemovalResult{}, err
	}
	return schedule.RemovalResult{
		Removed: removed,
		Ledger:  &schedule.DayLedger{Day: day, Slots: slots},
	}, nil
}

// DaysWithBookings returns days in [from, to] with at least one
// booking, ascending. The EXISTS clause does not assume the
// no-empty-ledgers invariant even though RemoveSlots maintains it.
func (s *Store) DaysWithBookings(ctx context.Context, from, to schedule.DayKey) ([]schedule.DayKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.day FROM day_ledgers l
		 WHERE l.day BETWEEN ? AND ?
		   AND EXISTS (SELECT 1 FROM slot_bookings b WHERE b.day = l.day)
		 ORDER BY l.day`,
		dbDay(from), dbDay(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []schedule.DayKey
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := time.ParseInLocation(dayLayout, raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("corrupt day key %q: %w", raw, err)
		}
		days = append(days, schedule.NewDayKey(t))
	}
	return days, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) loadSlots(ctx context.Context, q querier, day schedule.DayKey) ([]schedule.SlotBooking, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT hour, account_id, display_name, photo_url, band_name, kind, created_at
		 FROM slot_bookings WHERE day = ?`, dbDay(day))
	if err != nil {
		return nil, err
	}
	return scanSlots(rows)
}

func scanSlots(rows *sql.Rows) ([]schedule.SlotBooking, error) {
	defer rows.Close()

	var slots []schedule.SlotBooking
	for rows.Next() {
		var (
			slot      schedule.SlotBooking
			hour      string
			accountID string
			kind      string
			createdAt string
		)
		if err := rows.Scan(&hour, &accountID, &slot.DisplayName,
			&slot.PhotoURL, &slot.BandName, &kind, &createdAt); err != nil {
			return nil, err
		}
		slot.Hour = schedule.Hour(hour)
		slot.AccountID = schedule.AccountID(accountID)
		slot.Kind = schedule.SessionKind(kind)
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			slot.CreatedAt = t
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// occupiedHours returns the subset of hours already booked on day.
func occupiedHours(ctx context.Context, q querier, day schedule.DayKey, hours []schedule.Hour) ([]schedule.Hour, error) {
	placeholders, args := hourArgs(day, hours)
	rows, err := q.QueryContext(ctx,
		`SELECT hour FROM slot_bookings
		 WHERE day = ? AND hour IN (`+placeholders+`)
		 ORDER BY hour`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occupied []schedule.Hour
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		occupied = append(occupied, schedule.Hour(h))
	}
	return occupied, rows.Err()
}

func hourArgs(day schedule.DayKey, hours []schedule.Hour) (string, []any) {
	args := make([]any, 0, len(hours)+1)
	args = append(args, dbDay(day))
	for _, h := range hours {
		args = append(args, string(h))
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(hours)), ","), args
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

// CreateAccount inserts a new account. Duplicate Telegram ids fail on
// the unique constraint.
func (s *Store) CreateAccount(ctx context.Context, a schedule.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts
		 (id, telegram_id, first_name, last_name, username, photo_url, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.ID), a.TelegramID, a.FirstName, a.LastName, a.Username,
		a.PhotoURL, string(a.Role),
		a.CreatedAt.UTC().Format(time.RFC3339), a.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

// GetAccount returns the account by internal id, or nil.
func (s *Store) GetAccount(ctx context.Context, id schedule.AccountID) (*schedule.Account, error) {
	return s.queryAccount(ctx, `WHERE id = ?`, string(id))
}

// GetAccountByTelegramID returns the account by Telegram id, or nil.
func (s *Store) GetAccountByTelegramID(ctx context.Context, telegramID int64) (*schedule.Account, error) {
	return s.queryAccount(ctx, `WHERE telegram_id = ?`, telegramID)
}

func (s *Store) queryAccount(ctx context.Context, where string, arg any) (*schedule.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, first_name, last_name, username, photo_url, role, created_at, updated_at
		 FROM accounts `+where, arg)

	var (
		a                    schedule.Account
		id, role             string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &a.TelegramID, &a.FirstName, &a.LastName,
		&a.Username, &a.PhotoURL, &role, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ID = schedule.AccountID(id)
	a.Role = schedule.Role(role)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

// UpdateProfile refreshes the mutable profile fields.
func (s *Store) UpdateProfile(ctx context.Context, id schedule.AccountID, firstName, lastName, username, photoURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts
		 SET first_name = ?, last_name = ?, username = ?, photo_url = ?, updated_at = ?
		 WHERE id = ?`,
		firstName, lastName, username, photoURL, now(), string(id))
	return err
}

// SetRole changes an account's role.
func (s *Store) SetRole(ctx context.Context, id schedule.AccountID, role schedule.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), now(), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListAccounts returns all accounts ordered by creation time.
func (s *Store) ListAccounts(ctx context.Context) ([]schedule.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, telegram_id, first_name, last_name, username, photo_url, role, created_at, updated_at
		 FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []schedule.Account
	for rows.Next() {
		var (
			a                    schedule.Account
			id, role             string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&id, &a.TelegramID, &a.FirstName, &a.LastName,
			&a.Username, &a.PhotoURL, &role, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		a.ID = schedule.AccountID(id)
		a.Role = schedule.Role(role)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteAccount hard-deletes an account and its sessions. Bookings
// keep their snapshot data.
func (s *Store) DeleteAccount(ctx context.Context, id schedule.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_id = ?`, string(id)); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// SESSION STORE
// =============================================================================

// CreateSession stores a new bearer session.
func (s *Store) CreateSession(ctx context.Context, session auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, id, account_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		session.Token, session.ID, string(session.AccountID),
		session.ExpiresAt.UTC().Format(time.RFC3339),
		session.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// GetSession returns the session for token, or nil.
func (s *Store) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT token, id, account_id, expires_at, created_at
		 FROM sessions WHERE token = ?`, token)

	var (
		session              auth.Session
		accountID            string
		expiresAt, createdAt string
	)
	err := row.Scan(&session.Token, &session.ID, &accountID, &expiresAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.AccountID = schedule.AccountID(accountID)
	if session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("corrupt expires_at: %w", err)
	}
	session.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &session, nil
}

// DeleteSession removes a session by token. Unknown tokens are a no-op.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteExpiredSessions removes sessions that expired on or before cutoff.
func (s *Store) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`,
		cutoff.UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func dbDay(day schedule.DayKey) string {
	return day.Time.Format(dayLayout)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
