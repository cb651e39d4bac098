// Package server is the HTTP boundary of the registry: static pages on GET,
// identity registration on POST.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Skryldev/identity-registry/assets"
	"github.com/Skryldev/identity-registry/models"
	"github.com/Skryldev/identity-registry/registry"
)

// Registrar is the registration lookup the POST endpoints delegate to.
type Registrar interface {
	RegisterOrConfirm(ctx context.Context, kind models.TokenKind, value string) (registry.Outcome, error)
}

// AssetReader resolves GET paths to files.
type AssetReader interface {
	Read(path string) (assets.Asset, error)
}

// Pinger reports store reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultMaxBodyBytes bounds request bodies when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

type Options struct {
	MaxBodyBytes int64
	Logger       *slog.Logger
	// Metrics is mounted on /metrics when non-nil.
	Metrics http.Handler
	// Health is pinged by /health; nil reports healthy.
	Health Pinger
}

type Server struct {
	registrar Registrar
	assets    AssetReader
	health    Pinger
	metrics   http.Handler
	maxBody   int64
	logger    *slog.Logger
}

func New(registrar Registrar, files AssetReader, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		registrar: registrar,
		assets:    files,
		health:    opts.Health,
		metrics:   opts.Metrics,
		maxBody:   opts.MaxBodyBytes,
		logger:    opts.Logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Post("/authorise", s.handleAuthorise)
	r.Post("/fingerprint", s.handleFingerprint)
	r.Get("/*", s.handleAsset)

	return r
}

// Middleware

type requestIDKey struct{}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(r.Context(), level, "http: request",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// Responses

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// writeStatus writes the standard reason phrase, e.g. "Bad Request".
func writeStatus(w http.ResponseWriter, status int) {
	writeText(w, status, http.StatusText(status))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
