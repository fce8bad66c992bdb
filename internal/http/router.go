package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/movie-ticket-booking/internal/idempotency"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
)

// SetupRouter wires the API. rl, idemp and auth may be nil to disable rate
// limiting, response replay and authentication.
func SetupRouter(h *Handlers, logger observability.Logger, rl Limiter, idemp *idempotency.Idempotency, auth *Authenticator) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(JWTMiddleware(auth))
		r.Use(RateLimitMiddleware(rl))
		r.Use(IdempotencyMiddleware(idemp))

		r.Post("/v1/bookings", h.CreateBooking)
		r.Get("/v1/users/{userID}/bookings", h.ListBookings)
		r.Get("/v1/shows", h.ListShows)
		r.Get("/v1/shows/{showID}/seats", h.SeatMap)
	})

	return r
}
