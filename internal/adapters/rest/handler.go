// Package rest is the HTTP driving adapter for the discovery service.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewilliams-labs/latent/internal/core/services"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure the router and request defaults.
type Options struct {
	// MinPopularity and MaxPopularity apply when a scan omits them.
	MinPopularity int
	MaxPopularity int
	// AllowedOrigins are the CORS origins; empty disables CORS headers.
	AllowedOrigins []string
	// RequestsPerMinute is the per-IP limit; zero disables it.
	RequestsPerMinute int
	// Ready is pinged by GET /ready. Nil reports ready.
	Ready Pinger
}

// DefaultOptions returns the standard request defaults.
func DefaultOptions() Options {
	return Options{
		MinPopularity:     5,
		MaxPopularity:     60,
		RequestsPerMinute: 60,
	}
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc      *services.Orchestrator
	opts     Options
	validate *validator.Validate
	router   chi.Router
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Orchestrator, opts Options) *Handler {
	validate := validator.New()
	validate.RegisterTagNameFunc(fieldName)

	h := &Handler{
		svc:      svc,
		opts:     opts,
		validate: validate,
		router:   chi.NewRouter(),
	}

	h.middleware()
	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) middleware() {
	h.router.Use(requestID)
	h.router.Use(middleware.RealIP)
	h.router.Use(requestLogger)
	h.router.Use(middleware.Recoverer)

	if len(h.opts.AllowedOrigins) > 0 {
		h.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	if h.opts.RequestsPerMinute > 0 {
		h.router.Use(httprate.Limit(
			h.opts.RequestsPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeErrorWithCode(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			}),
		))
	}
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.router.Get("/health", h.HealthCheck)
	h.router.Get("/ready", h.ReadyCheck)
	h.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.router.Get("/diagnosis", h.Diagnosis)
	h.router.Get("/scan", h.Scan)
	h.router.Get("/shadow", h.ShadowSearch)

	h.router.Route("/feedback", func(r chi.Router) {
		r.Post("/", h.SubmitFeedback)
		r.Get("/stats", h.FeedbackStats)
		r.Get("/history", h.FeedbackHistory)
	})
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyCheck reports whether the feedback store is reachable.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.opts.Ready.Ping(ctx); err != nil {
			writeErrorWithCode(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
