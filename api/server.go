/*
server.go - HTTP router and middleware configuration

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error bodies
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests from the web client

ROUTE GROUPS:
  /auth/*       Register, login, logout (public), me (session)
  /accounts/*   Account management (session)
  /movements/*  Movement management (session)
  /healthz      Liveness

  Paths carry no /api prefix: the web client's dev proxy strips it.

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
// allowedOrigins is the CORS allow list; credentials are always allowed
// so the session cookie travels with cross-origin requests.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.With(h.requireSession).Get("/me", h.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{index:[0-9]+}", h.GetAccount)
		})

		r.Route("/movements", func(r chi.Router) {
			r.Get("/", h.ListMovements)
			r.Post("/", h.CreateMovement)
			r.Get("/{index:[0-9]+}", h.GetMovement)
			r.Delete("/{index:[0-9]+}", h.DeleteMovement)
		})
	})

	return r
}
