// Package server is the CodeCanvas HTTP transport: request validation, rate
// limiting, CORS, health and metrics endpoints, and the streamed generation
// response.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/randalmurphal/codecanvas/pkg/workflow"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Generator produces the framed output stream for a request.
// *workflow.Workflow implements it.
type Generator interface {
	Generate(ctx context.Context, req workflow.Request) iter.Seq2[string, error]
}

// Server serves the HTTP API.
type Server struct {
	gen              Generator
	limiter          Limiter
	limitText        string
	metrics          *Metrics
	logger           *slog.Logger
	allowedOrigins   []string
	trustedProxies   []netip.Prefix
	apiKeyConfigured bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRateLimit guards /api/generate with l. Rejections report
// "Rate limit exceeded: <limit> per <window>".
func WithRateLimit(l Limiter, limit int, window time.Duration) Option {
	return func(s *Server) {
		s.limiter = l
		s.limitText = describeLimit(limit, window)
	}
}

// WithMetrics records HTTP metrics into m and serves them on /metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAllowedOrigins sets the CORS origins. "*" allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithTrustedProxies lists the proxies whose forwarding headers name the
// client. Requests from any other peer are keyed on the peer address.
func WithTrustedProxies(prefixes ...netip.Prefix) Option {
	return func(s *Server) { s.trustedProxies = prefixes }
}

// WithAPIKeyConfigured sets the credential flag reported by /health.
func WithAPIKeyConfigured(ok bool) Option {
	return func(s *Server) { s.apiKeyConfigured = ok }
}

// New creates a Server around gen.
func New(gen Generator, opts ...Option) *Server {
	s := &Server{
		gen:            gen,
		logger:         slog.Default(),
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.clientIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)
	if s.metrics != nil {
		r.Use(s.instrument)
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Post("/api/generate", s.handleGenerate)
	})
	return r
}

type healthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	APIKeyConfigured bool   `json:"api_key_configured"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, healthResponse{
		Status:           "healthy",
		Version:          Version,
		APIKeyConfigured: s.apiKeyConfigured,
	})
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))

	var body GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		logger.Warn("generate: invalid request body", "error", err)
		writeJSON(w, logger, http.StatusUnprocessableEntity, detailResponse{Detail: "invalid request body"})
		return
	}
	req, err := body.Validate()
	if err != nil {
		var verr *ValidationError
		detail := err.Error()
		if errors.As(err, &verr) {
			detail = verr.Message
		}
		logger.Warn("generate: request rejected", "error", err)
		writeJSON(w, logger, http.StatusUnprocessableEntity, detailResponse{Detail: detail})
		return
	}
	req.ID = middleware.GetReqID(r.Context())

	logger.Info("generate request", "framework", req.Framework, "has_image", len(req.Image) > 0)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	flusher, _ := w.(http.Flusher)

	if s.metrics != nil {
		s.metrics.StreamsActive.Inc()
		defer s.metrics.StreamsActive.Dec()
	}

	outcome := ""
	defer func() {
		if s.metrics != nil && outcome != "" {
			s.metrics.GenerationsTotal.WithLabelValues(outcome).Inc()
		}
	}()

	for chunk, err := range s.gen.Generate(r.Context(), req) {
		if err != nil {
			// The marker is already on the wire. Abort the connection so
			// the client sees a truncated body, not a complete one.
			logger.Error("generate: stream failed after marker", "error", err)
			outcome = OutcomeAborted
			panic(http.ErrAbortHandler)
		}
		if outcome == "" {
			outcome = outcomeOf(chunk)
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			logger.Info("generate: client disconnected", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
