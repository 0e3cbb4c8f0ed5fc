package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/campus-events/internal/auth"
)

// NewRouter builds the API router.
func NewRouter(h *EventHandler, verifier *auth.Verifier, limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)                  // structured access log
	r.Use(CORS)

	authenticated := Authenticate(verifier)
	admin := RequireRole(auth.RoleAdmin)
	student := RequireRole(auth.RoleStudent)

	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(authenticated, admin)
			r.Post("/", h.CreateEvent)
			r.Post("/sweep", h.Sweep)
			r.Get("/{id}/registrations", h.ListRegistrations)
			r.Patch("/{id}/status", h.SetStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated, student, limiter.Middleware)
			r.Post("/{id}/join", h.Join)
			r.Delete("/{id}/join", h.Leave)
			r.Post("/{id}/registrations", h.RequestJoin)
		})
	})

	r.Route("/registrations", func(r chi.Router) {
		r.Use(authenticated)
		r.With(admin).Post("/{id}/decision", h.Decide)
		r.Delete("/{id}", h.CancelRegistration)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/{id}/events", h.UserEvents)
	})

	return r
}
