/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the Mini App frontend

ROUTE GROUPS:
  /api/users/*     Identity: auth, registration, moderation
  /api/book        Reserve hours (session required)
  /api/cancel      Release hours (session required)
  /api/timetable   Month summary (public)
  /api/hours       Day detail (public)

AUTHENTICATION:
  /api/timetable and /api/hours are public so the calendar renders
  before login. Everything that mutates state, and the user list, sits
  behind requireSession; admin-only handlers additionally check the
  role themselves.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
// allowedOrigins is the CORS allowlist for the Mini App frontend.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Identity routes
		r.Route("/users", func(r chi.Router) {
			r.Post("/auth", h.Authenticate)
			r.Post("/register", h.Register)

			r.Group(func(r chi.Router) {
				r.Use(h.requireSession)
				r.Get("/", h.ListUsers)
				r.Put("/{id}/role", h.SetUserRole)
				r.Delete("/{id}", h.DeleteUser)
			})
		})

		// Reservation routes
		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Post("/book", h.Book)
			r.Delete("/cancel", h.Cancel)
		})

		// Public calendar routes
		r.Get("/timetable", h.Timetable)
		r.Get("/hours", h.Hours)
	})

	return r
}
