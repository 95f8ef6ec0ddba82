/*
middleware.go - Session authentication middleware

PURPOSE:
  Resolves the Authorization bearer token into a live account record and
  attaches it to the request context. Role checks happen downstream: the
  engine enforces booking/cancellation authorization, and admin-only
  handlers check the role themselves.

SEE ALSO:
  - handlers.go: Handlers that read the account from the context
  - auth/session.go: Token resolution semantics
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bandroom/studio-scheduler/auth"
	"github.com/bandroom/studio-scheduler/schedule"
)

type contextKey string

const accountKey contextKey = "account"

// requireSession rejects requests without a valid bearer token and
// stores the resolved account in the request context.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		account, err := h.Sessions.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrSessionExpired) {
				writeError(w, http.StatusUnauthorized, "Invalid or expired session", nil)
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to resolve session", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, account)))
	})
}

// accountFrom returns the account stored by requireSession. Panics are
// impossible on routes behind the middleware; elsewhere it returns nil.
func accountFrom(ctx context.Context) *schedule.Account {
	account, _ := ctx.Value(accountKey).(*schedule.Account)
	return account
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}
