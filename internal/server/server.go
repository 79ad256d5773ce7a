package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/hazz-dev/pingwatch/internal/storage"
)

// ServerStore defines the archive queries the server needs.
type ServerStore interface {
	Latest(ctx context.Context) (*storage.Entry, error)
	Recent(ctx context.Context, limit, offset int) ([]storage.Entry, int, error)
	Summarize(ctx context.Context, last int) (storage.Summary, error)
}

// RunnerInfo exposes the state of a runner in the same process.
type RunnerInfo interface {
	ID() string
	Iterations() int64
	StateName() string
}

// Server holds the chi router and its dependencies.
type Server struct {
	store     ServerStore
	endpoints []string
	runner    RunnerInfo
	router    chi.Router
	logger    *slog.Logger
}

// New creates a new Server and registers all routes.
func New(store ServerStore, endpoints []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:     store,
		endpoints: endpoints,
		router:    chi.NewRouter(),
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

// SetRunner attaches a runner whose state is reported by /api/health.
func (s *Server) SetRunner(r RunnerInfo) {
	s.runner = r
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/endpoints", s.handleEndpoints)
	r.Get("/api/records", s.handleRecords)
	r.Get("/api/records/latest", s.handleLatest)
	r.Get("/api/summary", s.handleSummary)
}

// --- Response helpers ---

type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

type healthResponse struct {
	Status     string `json:"status"`
	Runner     string `json:"runner,omitempty"`
	State      string `json:"state,omitempty"`
	Iterations int64  `json:"iterations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.runner != nil {
		resp.Runner = s.runner.ID()
		resp.State = s.runner.StateName()
		resp.Iterations = s.runner.Iterations()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints := s.endpoints
	if endpoints == nil {
		endpoints = []string{}
	}
	writeJSON(w, http.StatusOK, endpoints)
}

type recordDetail struct {
	ID         int64     `json:"id"`
	Timestamp  string    `json:"timestamp"`
	Message    string    `json:"message"`
	Success    bool      `json:"success"`
	ArchivedAt time.Time `json:"archived_at"`
}

func toDetail(e storage.Entry) recordDetail {
	return recordDetail{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		Message:    e.Message,
		Success:    e.Success,
		ArchivedAt: e.ArchivedAt,
	}
}

type recordsResponse struct {
	Records []recordDetail `json:"records"`
	Total   int            `json:"total"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	entries, total, err := s.store.Recent(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("Recent", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	records := make([]recordDetail, 0, len(entries))
	for _, e := range entries {
		records = append(records, toDetail(e))
	}
	writeJSON(w, http.StatusOK, recordsResponse{
		Records: records,
		Total:   total,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.Latest(r.Context())
	if err != nil {
		s.logger.Error("Latest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "no records archived yet")
		return
	}
	writeJSON(w, http.StatusOK, toDetail(*latest))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	last := 100
	if v := r.URL.Query().Get("last"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid last parameter")
			return
		}
		last = n
	}

	summary, err := s.store.Summarize(r.Context(), last)
	if err != nil {
		s.logger.Error("Summarize", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
