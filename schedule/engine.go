/*
engine.go - The slot reservation engine

PURPOSE:
  Decides whether a set of hourly slots on a given day can be booked or
  released, enforcing the system's real invariants:
  - no double-booking (one booking per hour per day)
  - all-or-nothing multi-hour operations
  - authorization-scoped cancellation (own bookings, or any as admin)
  - guests cannot author bookings

CONCURRENCY:
  The engine holds no locks and keeps no mutable state. "Read, decide,
  commit" collapses into the store's atomic AppendSlots/RemoveSlots
  calls; the pre-read in Cancel only shapes the error response, the
  removal predicate is re-evaluated atomically at commit time.

NOTIFICATIONS:
  Dispatched after the storage commit, before returning. A notifier
  failure is logged and swallowed; it never reverts the reservation.

SEE ALSO:
  - store.go: The atomicity contract the engine relies on
  - errors.go: The error taxonomy surfaced to callers
*/
package schedule

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Engine is the slot reservation engine. Safe for concurrent use.
type Engine struct {
	ledgers  LedgerStore
	notifier Notifier
}

// NewEngine creates an engine over the given ledger store. notifier may
// be nil, in which case events are silently dropped.
func NewEngine(ledgers LedgerStore, notifier Notifier) *Engine {
	return &Engine{ledgers: ledgers, notifier: notifier}
}

// =============================================================================
// BOOKING
// =============================================================================

// BookRequest is a multi-hour booking attempt by one account.
type BookRequest struct {
	Date     string // DD/MM/YYYY
	Hours    []Hour
	Actor    Account
	BandName string
	Kind     SessionKind
}

// Book reserves the requested hours on the requested day.
//
// Fails with *ValidationError on malformed input, *AuthorizationError
// for guests, and *ConflictError listing exactly the occupied hours
// when any requested hour is taken. No partial booking is ever applied.
func (e *Engine) Book(ctx context.Context, req BookRequest) (*DayLedger, error) {
	day, hours, err := parseDayAndHours(req.Date, req.Hours)
	if err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = KindRehearsal
	}
	if !ValidSessionKind(kind) {
		return nil, &ValidationError{Field: "sessionKind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}

	if !req.Actor.CanBook() {
		return nil, &AuthorizationError{Reason: "guests cannot book rehearsals"}
	}

	slots := make([]SlotBooking, len(hours))
	now := time.Now().UTC()
	for i, h := range hours {
		slots[i] = SlotBooking{
			Hour:        h,
			AccountID:   req.Actor.ID,
			DisplayName: req.Actor.DisplayName(),
			PhotoURL:    req.Actor.PhotoURL,
			BandName:    trimBandName(req.BandName),
			Kind:        kind,
			CreatedAt:   now,
		}
	}

	// The store resolves the race: conflict check and insert are one
	// atomic operation per day ledger.
	ledger, conflicts, err := e.ledgers.AppendSlots(ctx, day, slots)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Day: day, ConflictingHours: conflicts}
	}

	e.notify(ctx, func(n Notifier) error {
		return n.NotifyBooking(ctx, BookingEvent{Day: day, Hours: hours, Actor: req.Actor})
	})

	ledger.SortSlots()
	return ledger, nil
}

// =============================================================================
// CANCELLATION
// =============================================================================

// CancelRequest is a multi-hour cancellation attempt by one account.
type CancelRequest struct {
	Date  string // DD/MM/YYYY
	Hours []Hour
	Actor Account
}

// CancelResult is the outcome of a successful cancellation.
type CancelResult struct {
	// Ledger is the remaining ledger, nil when LedgerDeleted.
	Ledger *DayLedger

	// LedgerDeleted is true when the day's last booking was removed.
	LedgerDeleted bool

	// Removed lists the bookings that were actually deleted.
	Removed []SlotBooking
}

// Cancel releases the requested hours on the requested day.
//
// Hours not present in the ledger are silently skipped. Hours owned by
// someone else are skipped unless the actor is an admin. If nothing at
// all is authorized, the call fails with *AuthorizationError carrying
// the originally requested hours; if the day has no ledger it fails
// with *NotFoundError.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	day, hours, err := parseDayAndHours(req.Date, req.Hours)
	if err != nil {
		return nil, err
	}

	ledger, err := e.ledgers.GetLedger(ctx, day)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, &NotFoundError{Day: day}
	}

	// Pre-check against the read shapes the error response only. The
	// authoritative scope check runs inside the atomic removal below;
	// ownership never changes after booking, so the two cannot drift.
	admin := req.Actor.IsAdmin()
	var authorized []Hour
	for _, h := range hours {
		booking, ok := ledger.SlotFor(h)
		if !ok {
			continue
		}
		if admin || booking.AccountID == req.Actor.ID {
			authorized = append(authorized, h)
		}
	}
	if len(authorized) == 0 {
		return nil, &AuthorizationError{
			Reason:         "none of the selected bookings are yours to cancel",
			RequestedHours: hours,
		}
	}

	removal, err := e.ledgers.RemoveSlots(ctx, day, authorized, req.Actor.ID, admin)
	if err != nil {
		return nil, err
	}

	e.notify(ctx, func(n Notifier) error {
		ev := CancellationEvent{Day: day, Hours: removedHours(removal.Removed), Actor: req.Actor}
		if admin {
			ev.ByAdmin = true
			ev.AffectedAccounts = distinctOwners(removal.Removed, req.Actor.ID)
		}
		return n.NotifyCancellation(ctx, ev)
	})

	if removal.Ledger != nil {
		removal.Ledger.SortSlots()
	}
	return &CancelResult{
		Ledger:        removal.Ledger,
		LedgerDeleted: removal.LedgerDeleted,
		Removed:       removal.Removed,
	}, nil
}

// =============================================================================
// READ PROJECTIONS
// =============================================================================

// Summary returns the days of the anchor date's month that have at
// least one booking. Pure read, no authorization beyond a valid session.
func (e *Engine) Summary(ctx context.Context, anchorDate string) ([]DayKey, error) {
	anchor, err := ParseDayKey(anchorDate)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "expected DD/MM/YYYY"}
	}
	first, last := anchor.MonthRange()
	return e.ledgers.DaysWithBookings(ctx, first, last)
}

// HoursForDay returns the day's bookings in catalog order. A day with
// no ledger yields an empty slice, not an error.
func (e *Engine) HoursForDay(ctx context.Context, date string) ([]SlotBooking, error) {
	day, err := ParseDayKey(date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "expected DD/MM/YYYY"}
	}
	ledger, err := e.ledgers.GetLedger(ctx, day)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return []SlotBooking{}, nil
	}
	ledger.SortSlots()
	return ledger.Slots, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDayAndHours(date string, hours []Hour) (DayKey, []Hour, error) {
	day, err := ParseDayKey(date)
	if err != nil {
		return DayKey{}, nil, &ValidationError{Field: "date", Reason: "expected DD/MM/YYYY"}
	}
	valid, unknown := NormalizeHours(hours)
	if len(unknown) > 0 {
		return DayKey{}, nil, &ValidationError{Field: "hours", Reason: fmt.Sprintf("unknown hour labels: %v", unknown)}
	}
	if len(valid) == 0 {
		return DayKey{}, nil, &ValidationError{Field: "hours", Reason: "at least one hour is required"}
	}
	return day, valid, nil
}

// notify dispatches an event and swallows any failure. Notification is
// strictly best-effort: the reservation already committed.
func (e *Engine) notify(ctx context.Context, fn func(Notifier) error) {
	if e.notifier == nil {
		return
	}
	if err := fn(e.notifier); err != nil {
		log.Printf("schedule: notification failed: %v", err)
	}
}

func trimBandName(name string) string {
	const maxBandName = 128
	name = strings.TrimSpace(name)
	if len(name) > maxBandName {
		name = name[:maxBandName]
	}
	return name
}

func removedHours(removed []SlotBooking) []Hour {
	hours := make([]Hour, len(removed))
	for i, s := range removed {
		hours[i] = s.Hour
	}
	return hours
}

// distinctOwners returns the unique owners of the removed bookings,
// excluding the actor (admins are not notified about their own slots).
func distinctOwners(removed []SlotBooking, actor AccountID) []AccountID {
	seen := make(map[AccountID]bool)
	var owners []AccountID
	for _, s := range removed {
		if s.AccountID == actor || seen[s.AccountID] {
			continue
		}
		seen[s.AccountID] = true
		owners = append(owners, s.AccountID)
	}
	return owners
}
