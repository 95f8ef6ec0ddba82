/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for the Mini App client. These decouple
  the wire contract from the domain model: the client keeps its
  snake_case field names (hour, userId, band_name, userPhotoUrl,
  rehearsalType) regardless of how the domain types evolve.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/bandroom/studio-scheduler/schedule"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AuthRequest carries the raw Telegram init data. The user field is
// the signed query string the Mini App receives from Telegram.
type AuthRequest struct {
	InitData string `json:"initData"`
	User     string `json:"user"`
}

// AuthResponse is the result of authentication or registration.
type AuthResponse struct {
	Valid bool    `json:"valid"`
	Token *string `json:"token"`
	User  UserDTO `json:"user"`
}

// UserDTO represents an account in API responses.
type UserDTO struct {
	ID           string `json:"id,omitempty"`
	TelegramID   int64  `json:"telegram_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	Role         string `json:"role"`
	IsRegistered bool   `json:"isRegistered"`
}

// SetRoleRequest changes an account's role.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// BookRequest reserves hours on a day.
type BookRequest struct {
	Date          string   `json:"date"` // DD/MM/YYYY
	Hours         []string `json:"hours"`
	BandName      string   `json:"band_name,omitempty"`
	RehearsalType string   `json:"rehearsalType,omitempty"`
}

// CancelRequest releases hours on a day.
type CancelRequest struct {
	Date  string   `json:"date"` // DD/MM/YYYY
	Hours []string `json:"hours"`
}

// SlotDTO represents one booked hour, field names per the Mini App.
type SlotDTO struct {
	Hour          string `json:"hour"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	BandName      string `json:"band_name,omitempty"`
	UserPhotoURL  string `json:"userPhotoUrl,omitempty"`
	RehearsalType string `json:"rehearsalType"`
}

// LedgerDTO is one day's bookings.
type LedgerDTO struct {
	Date  string    `json:"date"` // DD/MM/YYYY
	Hours []SlotDTO `json:"hours"`
}

// CancelResponse reports a successful cancellation.
type CancelResponse struct {
	Message       string     `json:"message"`
	LedgerDeleted bool       `json:"ledgerDeleted,omitempty"`
	Rehearsal     *LedgerDTO `json:"rehearsal,omitempty"`
}

// TimetableResponse lists the days of a month that have bookings.
type TimetableResponse struct {
	Result []string `json:"result"` // DD/MM/YYYY
}

// HoursResponse lists one day's bookings.
type HoursResponse struct {
	Hours []SlotDTO `json:"hours"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error            string   `json:"error"`
	ConflictingHours []string `json:"conflictingHours,omitempty"`
	RequestedHours   []string `json:"requestedHours,omitempty"`
	Details          any      `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUserDTO(a schedule.Account, registered bool) UserDTO {
	return UserDTO{
		ID:           string(a.ID),
		TelegramID:   a.TelegramID,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Username:     a.Username,
		PhotoURL:     a.PhotoURL,
		Role:         string(a.Role),
		IsRegistered: registered,
	}
}

func toSlotDTO(s schedule.SlotBooking) SlotDTO {
	return SlotDTO{
		Hour:          string(s.Hour),
		UserID:        string(s.AccountID),
		Username:      s.DisplayName,
		BandName:      s.BandName,
		UserPhotoURL:  s.PhotoURL,
		RehearsalType: string(s.Kind),
	}
}

func toLedgerDTO(l *schedule.DayLedger) *LedgerDTO {
	if l == nil {
		return nil
	}
	dto := &LedgerDTO{Date: l.Day.String(), Hours: make([]SlotDTO, len(l.Slots))}
	for i, s := range l.Slots {
		dto.Hours[i] = toSlotDTO(s)
	}
	return dto
}

func toHours(hours []string) []schedule.Hour {
	out := make([]schedule.Hour, len(hours))
	for i, h := range hours {
		out[i] = schedule.Hour(h)
	}
	return out
}

func fromHours(hours []schedule.Hour) []string {
	out := make([]string, len(hours))
	for i, h := range hours {
		out[i] = string(h)
	}
	return out
}
