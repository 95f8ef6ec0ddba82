/*
errors.go - Centralized error types for the reservation engine

PURPOSE:
  All engine error types in one place. The HTTP layer maps these to
  status codes; nothing else should inspect error strings.

ERROR CATEGORIES:
  1. Validation errors    - Malformed dates, unknown hour labels
  2. Authorization errors - Guests booking, non-owners canceling
  3. Conflict errors      - Hour already booked
  4. Not-found errors     - No ledger for the requested day

USAGE:
  Check categories with errors.Is against the sentinels, then extract
  detail with errors.As:

    var conflict *schedule.ConflictError
    if errors.As(err, &conflict) {
        // conflict.ConflictingHours
    }

  Storage failures are NOT wrapped into this taxonomy. They propagate
  as-is and surface as internal errors; the engine never retries them.
*/
package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the category for malformed client input.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization is the category for role/ownership refusals.
	ErrAuthorization = errors.New("not authorized")

	// ErrConflict is the category for hours that are already booked.
	ErrConflict = errors.New("hours already booked")

	// ErrNotFound is the category for days with no ledger.
	ErrNotFound = errors.New("no bookings for this day")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string // e.g. "date", "hours"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// AuthorizationError reports a refused action. For cancellations it
// carries the originally requested hours so the client can tell
// "not yours" apart from "nothing to cancel".
type AuthorizationError struct {
	Reason         string
	RequestedHours []Hour
}

func (e *AuthorizationError) Error() string {
	return e.Reason
}

func (e *AuthorizationError) Unwrap() error {
	return ErrAuthorization
}

// ConflictError reports exactly which requested hours were already
// taken. The booking is all-or-nothing: nothing was applied.
type ConflictError struct {
	Day              DayKey
	ConflictingHours []Hour
}

func (e *ConflictError) Error() string {
	labels := make([]string, len(e.ConflictingHours))
	for i, h := range e.ConflictingHours {
		labels[i] = string(h)
	}
	return fmt.Sprintf("hours already booked on %s: %s", e.Day, strings.Join(labels, ","))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NotFoundError reports a cancellation against a day with no ledger.
type NotFoundError struct {
	Day DayKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no bookings found for %s", e.Day)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is the caller's fault and
// correcting the request can succeed. Anything else is internal.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAuthorization) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound)
}
