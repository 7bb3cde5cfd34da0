package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
	"github.com/JakeFAU/historic-sites-crawler/internal/metrics"
)

// Response bodies for the trigger endpoint.
const (
	BodyCompleted      = "completed"
	BodyFailed         = "failed"
	BodyAlreadyRunning = "already running"
)

// Runner executes one crawl run.
type Runner interface {
	Run(ctx context.Context) (crawler.RunReport, error)
}

// Resumer releases a crawl waiting on the operator.
type Resumer interface {
	Resume()
}

// Server wires HTTP handlers to the crawl runner and the operator gate.
type Server struct {
	baseCtx context.Context
	router  chi.Router
	runner  Runner
	resumer Resumer
	logger  *zap.Logger

	// running serializes runs; a second trigger is rejected, not queued.
	running sync.Mutex
}

// NewServer constructs a Server with middleware and routes. Runs started by
// /scrape live on ctx, so they outlast the triggering request and stop only
// when ctx ends. resumer may be nil, in which case the resume route answers
// 503.
func NewServer(ctx context.Context, runner Runner, resumer Resumer, logger *zap.Logger) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		baseCtx: ctx,
		runner:  runner,
		resumer: resumer,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/scrape", s.scrape)
	r.Post("/operator/resume", s.resume)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	if !s.running.TryLock() {
		writeText(w, http.StatusConflict, BodyAlreadyRunning)
		return
	}
	defer s.running.Unlock()

	logger := s.logger.With(zap.String("request_id", RequestID(r.Context())))
	// A client that disconnects mid-run does not abort the crawl.
	report, err := s.runner.Run(s.baseCtx)
	if report.RunID != "" {
		w.Header().Set("X-Run-ID", report.RunID)
	}
	if err != nil {
		logger.Error("scrape failed", zap.Error(err), zap.String("run_id", report.RunID))
		writeText(w, http.StatusInternalServerError, BodyFailed)
		return
	}
	logger.Info("scrape completed",
		zap.String("run_id", report.RunID),
		zap.Int("persisted", report.Persisted),
		zap.Int("failed", report.Failed),
	)
	writeText(w, http.StatusOK, BodyCompleted)
}

func (s *Server) resume(w http.ResponseWriter, _ *http.Request) {
	if s.resumer == nil {
		writeText(w, http.StatusServiceUnavailable, "operator gate not configured")
		return
	}
	s.resumer.Resume()
	writeText(w, http.StatusAccepted, "resumed")
}

type requestIDKey struct{}

// RequestID returns the ID assigned to the request by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", RequestID(r.Context())),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				writeText(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
