package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/input"
	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
)

type Options struct {
	// ServiceName tags access log lines. Access logging is off when empty.
	ServiceName string
	// Metrics is mounted at /metrics when set.
	Metrics     http.Handler
	// RunTimeout bounds a whole run. Zero means no limit beyond the client.
	RunTimeout  time.Duration
}

func NewRouter(runner input.StepRunner, logger output.LoggerPort, opts Options) http.Handler {
	h := &handler{
		runner:     runner,
		logger:     logger,
		runTimeout: opts.RunTimeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.ServiceName != "" {
		r.Use(httplog.RequestLogger(httplog.NewLogger(opts.ServiceName, httplog.Options{
			JSON:    true,
			Concise: true,
		})))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/healthz", h.health)
	r.Post("/api/chat", h.chat)
	r.Post("/api/chat/stream", h.stream)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	return r
}
