package http

import (
	"compress/flate"
	"net/http"

	"dexanalytics/internal/api/http/handlers"
	"dexanalytics/internal/api/http/mw"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gitlab.com/nevasik7/alerting/logger"
)

// Middlewares are optional, nil ones are skipped
type Middlewares struct {
	CORS      *mw.CORSMiddleware
	RateLimit *mw.RateLimitMiddleware
	JWT       *mw.JWTMiddleware
}

func BuildRouter(log logger.Logger, h *handlers.Handler, metrics http.Handler, mws Middlewares) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logging(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(flate.BestSpeed, "application/json"))
	r.Use(mws.CORS.Handler)

	// tech endpoints, no auth
	r.Get("/healthz", h.Healthz)
	r.Get("/readiness", h.Readiness)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api", func(api chi.Router) {
		// jwt first, the limiter keys on its subject
		if mws.JWT != nil {
			api.Use(mws.JWT.Handler)
		}
		if mws.RateLimit != nil {
			api.Use(mws.RateLimit.Handler)
		}

		api.Get("/bundle", h.Bundle)
		api.Get("/factory", h.Factory)
		api.Get("/protocol/day", h.ProtocolDay)
		api.Route("/tokens/{id}", func(t chi.Router) {
			t.Get("/", h.Token)
			t.Get("/buckets/{interval}", h.TokenBucket)
		})
		api.Route("/pools/{id}", func(p chi.Router) {
			p.Get("/", h.Pool)
			p.Get("/buckets/{interval}", h.PoolBucket)
		})
	})

	return r
}
