// Package api exposes the chat entry point over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"investment-chat/internal/common/logger"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxRequestBodySize caps POST /api/chat bodies (64KB).
const maxRequestBodySize = 64 << 10

// Answerer runs one chat turn and always returns displayable text.
type Answerer interface {
	AnswerSession(ctx context.Context, session, text string) string
}

// Check reports whether a dependency is usable; used by /ready.
type Check func(ctx context.Context) error

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

type Server struct {
	answerer Answerer
	logger   logger.Logger
	checks   map[string]Check
	gatherer prometheus.Gatherer
}

type Option func(*Server)

// WithCheck adds a named readiness check.
func WithCheck(name string, check Check) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func NewServer(answerer Answerer, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		answerer: answerer,
		logger:   log.With(map[string]interface{}{"component": "api"}),
		checks:   make(map[string]Check),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", s.Health)
	r.Get("/ready", s.Ready)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.Chat)
	})
	return r
}

// Chat handles POST /api/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	session := req.SessionID
	if session == "" {
		session = uuid.NewString()
	}

	reply := s.answerer.AnswerSession(r.Context(), session, req.Message)
	JSON(w, http.StatusOK, ChatResponse{Reply: reply, SessionID: session})
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Ready runs every registered check; any failure answers 503.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", map[string]interface{}{"check": name, "error": err.Error()})
			checks[name] = err.Error()
			status = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	JSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request served", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(started).Milliseconds(),
			"requestId":  chiMiddleware.GetReqID(r.Context()),
		})
	})
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
