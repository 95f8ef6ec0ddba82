/*
handlers.go - HTTP API handlers for the studio scheduler

PURPOSE:
  Exposes the reservation engine and account management to the Telegram
  Mini App. Handles HTTP request/response, JSON serialization, and
  delegates all domain decisions to the engine.

ENDPOINTS:
  Identity:
    POST   /api/users/auth       Verify Telegram init data, issue a token
    POST   /api/users/register   Create a pending (guest) account
    GET    /api/users            List accounts (admin)
    PUT    /api/users/{id}/role  Change an account's role (admin)
    DELETE /api/users/{id}       Delete an account (admin)

  Reservations:
    POST   /api/book             Reserve hours on a day
    DELETE /api/cancel           Release hours on a day
    GET    /api/timetable        Days of a month with bookings
    GET    /api/hours            One day's bookings

ERROR HANDLING:
  Domain errors map onto HTTP status by type:
  - 400: Validation errors, invalid input
  - 401: Missing or expired session
  - 403: Authorization errors (guests booking, foreign cancellations)
  - 404: No bookings on the requested day
  - 409: Conflict (requested hours already taken)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Session resolution
  - server.go: Router setup
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bandroom/studio-scheduler/auth"
	"github.com/bandroom/studio-scheduler/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// ModerationNotifier tells the studio operator about account lifecycle
// events: a newcomer asking for access, an admin approving one.
type ModerationNotifier interface {
	NotifyAccessRequest(ctx context.Context, account schedule.Account) error
	NotifyApproval(ctx context.Context, account schedule.Account) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine     *schedule.Engine
	Accounts   schedule.AccountStore
	Sessions   *auth.Sessions
	Verifier   *auth.Verifier
	Moderation ModerationNotifier
}

// NewHandler creates a handler. moderation may be nil.
func NewHandler(engine *schedule.Engine, accounts schedule.AccountStore, sessions *auth.Sessions, verifier *auth.Verifier, moderation ModerationNotifier) *Handler {
	return &Handler{
		Engine:     engine,
		Accounts:   accounts,
		Sessions:   sessions,
		Verifier:   verifier,
		Moderation: moderation,
	}
}

// =============================================================================
// IDENTITY HANDLERS
// =============================================================================

// Authenticate verifies Telegram init data. A registered identity gets a
// session token; an unknown one gets a guest view with no token so the
// Mini App can offer registration.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	tgUser, ok := h.verifiedUser(w, r)
	if !ok {
		return
	}

	account, err := h.Accounts.GetAccountByTelegramID(r.Context(), tgUser.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up account", err)
		return
	}

	if account == nil {
		writeJSON(w, http.StatusOK, AuthResponse{
			Valid: true,
			Token: nil,
			User: UserDTO{
				TelegramID:   tgUser.ID,
				FirstName:    tgUser.FirstName,
				LastName:     tgUser.LastName,
				Username:     tgUser.Username,
				PhotoURL:     tgUser.PhotoURL,
				Role:         string(schedule.RoleGuest),
				IsRegistered: false,
			},
		})
		return
	}

	// Telegram is authoritative for profile fields; refresh them on
	// every login so display names and avatars stay current.
	if err := h.Accounts.UpdateProfile(r.Context(), account.ID, tgUser.FirstName, tgUser.LastName, tgUser.Username, tgUser.PhotoURL); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh profile", err)
		return
	}
	account.FirstName = tgUser.FirstName
	account.LastName = tgUser.LastName
	account.Username = tgUser.Username
	account.PhotoURL = tgUser.PhotoURL

	session, err := h.Sessions.Issue(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue session", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Valid: true,
		Token: &session.Token,
		User:  toUserDTO(*account, true),
	})
}

// Register creates a guest account for a verified Telegram identity and
// asks the operator to approve it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	tgUser, ok := h.verifiedUser(w, r)
	if !ok {
		return
	}

	existing, err := h.Accounts.GetAccountByTelegramID(r.Context(), tgUser.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up account", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "User already registered", nil)
		return
	}

	now := time.Now().UTC()
	account := schedule.Account{
		ID:         schedule.AccountID(uuid.NewString()),
		TelegramID: tgUser.ID,
		FirstName:  tgUser.FirstName,
		LastName:   tgUser.LastName,
		Username:   tgUser.Username,
		PhotoURL:   tgUser.PhotoURL,
		Role:       schedule.RoleGuest,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Accounts.CreateAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	h.moderate(r, func(m ModerationNotifier) error {
		return m.NotifyAccessRequest(r.Context(), account)
	})

	session, err := h.Sessions.Issue(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue session", err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Valid: true,
		Token: &session.Token,
		User:  toUserDTO(account, true),
	})
}

// ListUsers returns all accounts. Admin only.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	accounts, err := h.Accounts.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]UserDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toUserDTO(a, true)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": dtos})
}

// SetUserRole changes an account's role. Admin only. Promoting a guest
// triggers an approval notification to the affected user.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id := schedule.AccountID(chi.URLParam(r, "id"))
	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	role := schedule.Role(req.Role)
	if !schedule.ValidRole(role) {
		writeError(w, http.StatusBadRequest, "Unknown role", nil)
		return
	}

	target, err := h.Accounts.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up account", err)
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}

	if err := h.Accounts.SetRole(r.Context(), id, role); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update role", err)
		return
	}

	if target.Role == schedule.RoleGuest && role != schedule.RoleGuest {
		approved := *target
		approved.Role = role
		h.moderate(r, func(m ModerationNotifier) error {
			return m.NotifyApproval(r.Context(), approved)
		})
	}

	target.Role = role
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(*target, true)})
}

// DeleteUser removes an account and its sessions. Admin only.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id := schedule.AccountID(chi.URLParam(r, "id"))
	if err := h.Accounts.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "Account not found", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted"})
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

// Book reserves hours for the session's account.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	ledger, err := h.Engine.Book(r.Context(), schedule.BookRequest{
		Date:     req.Date,
		Hours:    toHours(req.Hours),
		Actor:    *accountFrom(r.Context()),
		BandName: req.BandName,
		Kind:     schedule.SessionKind(req.RehearsalType),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"rehearsal": toLedgerDTO(ledger)})
}

// Cancel releases hours for the session's account (or any hours when
// the account is an admin).
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	result, err := h.Engine.Cancel(r.Context(), schedule.CancelRequest{
		Date:  req.Date,
		Hours: toHours(req.Hours),
		Actor: *accountFrom(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := CancelResponse{Message: "Booking canceled"}
	if result.LedgerDeleted {
		resp.LedgerDeleted = true
	} else {
		resp.Rehearsal = toLedgerDTO(result.Ledger)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Timetable returns the days of the given month that have bookings.
// Public: the calendar view must render before login.
func (h *Handler) Timetable(w http.ResponseWriter, r *http.Request) {
	days, err := h.Engine.Summary(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]string, len(days))
	for i, d := range days {
		result[i] = d.String()
	}
	writeJSON(w, http.StatusOK, TimetableResponse{Result: result})
}

// Hours returns one day's bookings in catalog order. Public.
func (h *Handler) Hours(w http.ResponseWriter, r *http.Request) {
	slots, err := h.Engine.HoursForDay(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]SlotDTO, len(slots))
	for i, s := range slots {
		dtos[i] = toSlotDTO(s)
	}
	writeJSON(w, http.StatusOK, HoursResponse{Hours: dtos})
}

// =============================================================================
// HELPERS
// =============================================================================

// verifiedUser parses the auth body and validates the Telegram
// signature. Writes the error response itself on failure.
func (h *Handler) verifiedUser(w http.ResponseWriter, r *http.Request) (auth.TelegramUser, bool) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return auth.TelegramUser{}, false
	}

	initData := req.InitData
	if initData == "" {
		initData = req.User
	}
	if initData == "" {
		writeError(w, http.StatusBadRequest, "Missing init data", nil)
		return auth.TelegramUser{}, false
	}

	tgUser, err := h.Verifier.Verify(initData)
	if err != nil {
		if errors.Is(err, auth.ErrBadSignature) || errors.Is(err, auth.ErrNoUser) {
			writeError(w, http.StatusUnauthorized, "Invalid Telegram data", err)
			return auth.TelegramUser{}, false
		}
		writeError(w, http.StatusBadRequest, "Malformed init data", err)
		return auth.TelegramUser{}, false
	}
	return tgUser, true
}

// requireAdmin enforces the admin role on the context account. Writes
// the 403 itself on failure.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	account := accountFrom(r.Context())
	if account == nil || !account.IsAdmin() {
		writeError(w, http.StatusForbidden, "Admin role required", nil)
		return false
	}
	return true
}

// moderate dispatches a moderation notification, best-effort.
func (h *Handler) moderate(r *http.Request, fn func(ModerationNotifier) error) {
	if h.Moderation == nil {
		return
	}
	if err := fn(h.Moderation); err != nil {
		// Account changes are already committed; do not fail the request.
		log.Printf("api: moderation notification failed: %v", err)
	}
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validation *schedule.ValidationError
		authz      *schedule.AuthorizationError
		conflict   *schedule.ConflictError
		notFound   *schedule.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error(), nil)
	case errors.As(err, &authz):
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:          authz.Error(),
			RequestedHours: fromHours(authz.RequestedHours),
		})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:            "Some of the selected hours are already booked",
			ConflictingHours: fromHours(conflict.ConflictingHours),
		})
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
