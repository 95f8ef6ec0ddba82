/*
types.go - Core domain types for the studio reservation system

PURPOSE:
  Defines the data model shared by the engine, stores, and API:
  accounts, the per-day booking ledger, slot bookings, and the fixed
  daily hour catalog.

KEY CONCEPTS:
  Catalog hour:  One of twelve fixed one-hour labels ("12:00".."23:00").
                 The unit of allocation. Nothing finer exists.
  Day ledger:    All bookings for one calendar day. At most one ledger
                 per day; created on first booking, deleted when the
                 last booking is removed.
  Slot booking:  One account's claim on one catalog hour. Carries a
                 denormalized snapshot of the account's profile taken
                 at booking time. Later profile edits do not rewrite
                 history.

DATE HANDLING:
  Days are normalized to midnight UTC. The wire format is DD/MM/YYYY
  (DateLayout), matching what the Telegram client sends.

SEE ALSO:
  - engine.go: Booking/cancellation rules over these types
  - store.go: Persistence contracts
*/
package schedule

import (
	"strings"
	"time"
)

// =============================================================================
// HOUR CATALOG
// =============================================================================

// Hour is one label from the fixed daily catalog, e.g. "18:00".
type Hour string

// Catalog is the fixed set of bookable hours per day, in display order.
// The studio operates 12:00 through 23:59; each label is the starting
// hour of a one-hour slot.
var Catalog = []Hour{
	"12:00", "13:00", "14:00", "15:00", "16:00", "17:00",
	"18:00", "19:00", "20:00", "21:00", "22:00", "23:00",
}

var catalogIndex = func() map[Hour]int {
	m := make(map[Hour]int, len(Catalog))
	for i, h := range Catalog {
		m[h] = i
	}
	return m
}()

// IsCatalogHour reports whether h is a valid catalog label.
func IsCatalogHour(h Hour) bool {
	_, ok := catalogIndex[h]
	return ok
}

// CatalogIndex returns the position of h in the catalog, or -1.
func CatalogIndex(h Hour) int {
	if i, ok := catalogIndex[h]; ok {
		return i
	}
	return -1
}

// NormalizeHours deduplicates hours and orders them by catalog position.
// The second return value lists labels that are not in the catalog.
func NormalizeHours(hours []Hour) (valid []Hour, unknown []Hour) {
	seen := make(map[Hour]bool, len(hours))
	for _, h := range hours {
		if seen[h] {
			continue
		}
		seen[h] = true
		if IsCatalogHour(h) {
			valid = append(valid, h)
		} else {
			unknown = append(unknown, h)
		}
	}
	sortByCatalog(valid)
	return valid, unknown
}

func sortByCatalog(hours []Hour) {
	// Insertion sort: the slice is at most twelve elements.
	for i := 1; i < len(hours); i++ {
		for j := i; j > 0 && CatalogIndex(hours[j]) < CatalogIndex(hours[j-1]); j-- {
			hours[j], hours[j-1] = hours[j-1], hours[j]
		}
	}
}

// =============================================================================
// DAYS
// =============================================================================

// DateLayout is the wire format for calendar days (DD/MM/YYYY).
const DateLayout = "02/01/2006"

// DayKey identifies one calendar day, normalized to midnight UTC.
type DayKey struct {
	Time time.Time
}

// ParseDayKey parses a DD/MM/YYYY string into a normalized day key.
func ParseDayKey(s string) (DayKey, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return DayKey{}, err
	}
	return NewDayKey(t), nil
}

// NewDayKey truncates t to its UTC day boundary.
func NewDayKey(t time.Time) DayKey {
	u := t.UTC()
	return DayKey{Time: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d DayKey) String() string {
	return d.Time.Format(DateLayout)
}

// IsZero reports whether the key is unset.
func (d DayKey) IsZero() bool {
	return d.Time.IsZero()
}

// Equal reports whether two keys identify the same day.
func (d DayKey) Equal(other DayKey) bool {
	return d.Time.Equal(other.Time)
}

// MonthRange returns the first and last day keys of d's month.
func (d DayKey) MonthRange() (first, last DayKey) {
	y, m, _ := d.Time.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return DayKey{Time: start}, DayKey{Time: end}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountID is the internal account identifier (UUID string).
type AccountID string

// Role controls what an account may do.
type Role string

const (
	// RoleGuest is a known but unapproved account. Guests may browse
	// the timetable but cannot author bookings.
	RoleGuest Role = "guest"

	// RoleUser may book slots and cancel its own bookings.
	RoleUser Role = "user"

	// RoleAdmin may additionally cancel anyone's bookings and moderate
	// accounts.
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r Role) bool {
	return r == RoleGuest || r == RoleUser || r == RoleAdmin
}

// Account is a studio member resolved from a Telegram identity.
// TelegramID is immutable and unique; profile fields are refreshed on
// every successful identity validation.
type Account struct {
	ID         AccountID
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	PhotoURL   string
	Role       Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName is the handle shown on bookings: the Telegram username
// when present, the first name otherwise.
func (a Account) DisplayName() string {
	if a.Username != "" {
		return a.Username
	}
	return a.FirstName
}

// CanBook reports whether the account may author bookings.
func (a Account) CanBook() bool {
	return a.Role == RoleUser || a.Role == RoleAdmin
}

// IsAdmin reports whether the account may moderate.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// =============================================================================
// SESSION KINDS
// =============================================================================

// SessionKind classifies what a booking is for. Display-only; it has no
// effect on conflict or authorization rules.
type SessionKind string

const (
	KindRehearsal SessionKind = "rehearsal"
	KindRecording SessionKind = "recording"
	KindShooting  SessionKind = "shooting"
)

// ValidSessionKind reports whether k is a known kind.
func ValidSessionKind(k SessionKind) bool {
	return k == KindRehearsal || k == KindRecording || k == KindShooting
}

// =============================================================================
// LEDGER
// =============================================================================

// SlotBooking is one account's claim on one catalog hour of one day.
// Account fields are a snapshot taken at booking time.
type SlotBooking struct {
	Hour        Hour
	AccountID   AccountID
	DisplayName string
	PhotoURL    string
	BandName    string
	Kind        SessionKind
	CreatedAt   time.Time
}

// DayLedger aggregates all bookings for one calendar day.
// Hours are unique within a ledger; the store enforces this.
type DayLedger struct {
	Day   DayKey
	Slots []SlotBooking
}

// BookedHours returns the set of occupied hours.
func (l *DayLedger) BookedHours() map[Hour]bool {
	set := make(map[Hour]bool, len(l.Slots))
	for _, s := range l.Slots {
		set[s.Hour] = true
	}
	return set
}

// SlotFor returns the booking occupying h, if any.
func (l *DayLedger) SlotFor(h Hour) (SlotBooking, bool) {
	for _, s := range l.Slots {
		if s.Hour == h {
			return s, true
		}
	}
	return SlotBooking{}, false
}

// SortSlots orders the ledger's bookings by catalog position.
func (l *DayLedger) SortSlots() {
	for i := 1; i < len(l.Slots); i++ {
		for j := i; j > 0 && CatalogIndex(l.Slots[j].Hour) < CatalogIndex(l.Slots[j-1].Hour); j-- {
			l.Slots[j], l.Slots[j-1] = l.Slots[j-1], l.Slots[j]
		}
	}
}
