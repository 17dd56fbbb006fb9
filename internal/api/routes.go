// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sersery88/flight-ibe/internal/api/middleware"
)

func (s *Server) routes() http.Handler {
	tracing := ""
	if s.cfg.TracingEnabled {
		tracing = s.cfg.ServiceName
	}
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracing,
		EnableLogging:         true,
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIRateLimit(s.cfg.RateLimitRPM, nil))

		r.Post("/flight-search", s.handleFlightSearch)
		r.Post("/flight-price", s.handleFlightPrice)
		r.Post("/upsell", s.handleUpsell)
		r.Post("/price-matrix", s.handlePriceMatrix)

		r.Post("/flight-price-stream", s.handlePriceStream)
		r.Post("/upsell-stream", s.handleUpsellStream)
		r.Post("/price-matrix-stream", s.handleMatrixStream)
	})
	return r
}
