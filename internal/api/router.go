package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	tallyotel "github.com/davidahmann/tally/internal/otel"
)

// RequestTimeout bounds every /v1 request. It sits above the reasoning
// timeout so a slow provider falls back before the request is cut.
const RequestTimeout = 60 * time.Second

func NewRouter(h *Handler, limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(tallyotel.Middleware())

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(middleware.Timeout(RequestTimeout))
		r.Post("/ask", h.Ask)
		r.Get("/decisions", h.Decisions)
		r.Get("/decisions/{id}", h.Decision)
	})
	return r
}
