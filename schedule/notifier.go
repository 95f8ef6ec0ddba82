/*
notifier.go - Best-effort event delivery boundary

PURPOSE:
  The engine reports bookings and cancellations to humans: the studio
  operator channel and, when an admin cancels on someone's behalf, the
  affected members. Delivery is best-effort by contract: a notification
  failure is logged and never fails or rolls back the reservation.

IMPLEMENTATIONS:
  - notify.Telegram: sends via the Telegram Bot API
  - notify.Log:      log-only, for development and tests
*/
package schedule

import "context"

// BookingEvent describes a successful booking.
type BookingEvent struct {
	Day   DayKey
	Hours []Hour
	Actor Account
}

// CancellationEvent describes a successful cancellation.
type CancellationEvent struct {
	Day   DayKey
	Hours []Hour
	Actor Account

	// ByAdmin is true when the actor removed someone else's bookings.
	ByAdmin bool

	// AffectedAccounts are the distinct prior owners of the removed
	// bookings. Populated only for admin cancellations.
	AffectedAccounts []AccountID
}

// Notifier delivers human-readable events. Implementations must never
// block indefinitely; errors are the caller's to log and drop.
type Notifier interface {
	// NotifyBooking announces a new booking to the operator channel.
	NotifyBooking(ctx context.Context, ev BookingEvent) error

	// NotifyCancellation announces a cancellation: to each affected
	// account when an admin canceled, to the operator channel when a
	// member canceled their own booking.
	NotifyCancellation(ctx context.Context, ev CancellationEvent) error
}
