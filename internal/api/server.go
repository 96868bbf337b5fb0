package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/config"
	"github.com/JakeFAU/jobspy-server/internal/metrics"
	"github.com/JakeFAU/jobspy-server/internal/progress"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
	"github.com/JakeFAU/jobspy-server/internal/store"
)

// TaskService is the task lifecycle the handlers drive.
type TaskService interface {
	Submit(ctx context.Context, raw scraper.RawRequest) (string, error)
	Status(ctx context.Context, id string) (scraper.TaskView, error)
	Count(ctx context.Context) (int, error)
}

// Server wires HTTP handlers to the task manager.
type Server struct {
	router       chi.Router
	tasks        TaskService
	progressRepo store.ProgressRepository
	cfg          config.Config
	logger       *zap.Logger
}

// NewServer constructs a Server with middleware and routes. progressRepo may be nil, in
// which case the events route is not mounted.
func NewServer(
	tasks TaskService,
	progressRepo store.ProgressRepository,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tasks:        tasks,
		progressRepo: progressRepo,
		cfg:          cfg,
		logger:       logger,
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/scrape", s.submitScrape)
		r.Post("/scrape/standard", s.submitStandard)
		r.Get("/status/{task_id}", s.getStatus)
		if progressRepo != nil {
			r.Get("/status/{task_id}/events", s.getEvents)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	n, err := s.tasks.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", JobsInMemory: n})
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var raw scraper.RawRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.submit(w, r, raw)
}

func (s *Server) submitStandard(w http.ResponseWriter, r *http.Request) {
	var req standardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "missing request name")
		return
	}
	raw, ok := s.cfg.StandardRequests[req.Name]
	if !ok {
		s.writeError(w, http.StatusNotFound, "standard request template not found")
		return
	}
	s.submit(w, r, raw)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, raw scraper.RawRequest) {
	taskID, err := s.tasks.Submit(r.Context(), raw)
	if err != nil {
		var verr *scraper.ValidationError
		switch {
		case errors.As(err, &verr):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			s.writeError(w, http.StatusServiceUnavailable, "task queue is full")
		default:
			s.logger.Error("submit task failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, submitResponse{
		TaskID:  taskID,
		Status:  scraper.TaskStatusProcessing,
		Message: "Job submitted.",
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	view, err := s.tasks.Status(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, scraper.ErrTaskNotFound) {
			s.writeError(w, http.StatusNotFound, "Task ID not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// A failed task is still a successful status read: 200 with status "failed" and its error.
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if _, err := s.tasks.Status(r.Context(), taskID); err != nil {
		if errors.Is(err, scraper.ErrTaskNotFound) {
			s.writeError(w, http.StatusNotFound, "Task ID not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	events, err := s.progressRepo.TaskEvents(r.Context(), taskID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []progress.Event{}
	}
	s.writeJSON(w, http.StatusOK, eventsResponse{TaskID: taskID, Events: events})
}

type eventsResponse struct {
	TaskID string           `json:"task_id"`
	Events []progress.Event `json:"events"`
}

type standardRequest struct {
	Name string `json:"name"`
}

type submitResponse struct {
	TaskID  string             `json:"task_id"`
	Status  scraper.TaskStatus `json:"status"`
	Message string             `json:"message"`
}

type healthResponse struct {
	Status       string `json:"status"`
	JobsInMemory int    `json:"jobs_in_memory"`
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

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.String("request_id", RequestID(r.Context())),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal server error"}` + "\n"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
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

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
