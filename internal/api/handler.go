// Package api exposes the entry list over HTTP/JSON.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"task-list/internal/auth"
	"task-list/internal/blob"
	"task-list/internal/export"
	"task-list/internal/logging"
	"task-list/internal/model"
	"task-list/internal/service"
	"task-list/internal/view"
)

// Entries is the entry use-case surface.
type Entries interface {
	List(ctx context.Context) ([]model.Entry, error)
	Create(ctx context.Context, in service.CreateInput) (*model.Entry, error)
	Update(ctx context.Context, in service.UpdateInput) (*model.Entry, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// Exports renders downloads and serves stored snapshots.
type Exports interface {
	Render(ctx context.Context, q view.Query, f export.Format) ([]byte, error)
	Snapshots(ctx context.Context) ([]blob.Info, error)
	OpenSnapshot(ctx context.Context, key string) (blob.Info, io.ReadCloser, error)
}

// Gate authenticates the admin and verifies bearer tokens.
type Gate interface {
	Login(email, password string) (auth.Token, error)
	Verify(token string) (string, error)
}

// Options wires a Handler.
type Options struct {
	Entries  Entries
	Exports  Exports
	Gate     Gate
	Types    []string
	PageSize int
	Log      logging.Logger
	// Registry receives the HTTP metrics; nil creates a private one.
	Registry *prometheus.Registry
}

// Handler routes all API requests.
type Handler struct {
	entries  Entries
	exports  Exports
	gate     Gate
	types    []string
	pageSize int
	log      logging.Logger
	metrics  *metrics
	mux      *http.ServeMux
}

func New(opts Options) *Handler {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = view.DefaultPageSize
	}
	types := opts.Types
	if types == nil {
		types = []string{}
	}

	h := &Handler{
		entries:  opts.Entries,
		exports:  opts.Exports,
		gate:     opts.Gate,
		types:    types,
		pageSize: pageSize,
		log:      opts.Log,
		metrics:  newMetrics(reg),
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /login", h.handleLogin)
	h.mux.HandleFunc("GET /types", h.handleTypes)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.Handle("GET /metrics", h.refreshGauges(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	h.mux.Handle("GET /entries", h.requireAuth(h.handleList))
	h.mux.Handle("POST /entries", h.requireAuth(h.handleCreate))
	h.mux.Handle("PUT /entries", h.requireAuth(h.handleUpdate))
	h.mux.Handle("DELETE /entries", h.requireAuth(h.handleDelete))
	h.mux.Handle("GET /entries/view", h.requireAuth(h.handleView))
	h.mux.Handle("GET /entries/export.xlsx", h.requireAuth(h.handleExport(export.FormatXLSX)))
	h.mux.Handle("GET /entries/export.pdf", h.requireAuth(h.handleExport(export.FormatPDF)))

	h.mux.Handle("GET /exports", h.requireAuth(h.handleSnapshots))
	h.mux.Handle("GET /exports/{key...}", h.requireAuth(h.handleSnapshot))

	return h
}

// ServeHTTP records metrics and an access log line around the router.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	_, pattern := h.mux.Handler(r)
	if pattern == "" {
		pattern = "unmatched"
	}

	h.mux.ServeHTTP(rec, r)

	elapsed := time.Since(start)
	h.metrics.observe(pattern, rec.status, elapsed)
	h.log.Info(r.Context(), "http request",
		"method", r.Method,
		"path", r.URL.Path,
		"route", pattern,
		"status", rec.status,
		"duration", elapsed,
		"subject", rec.subject,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	subject     string
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

// refreshGauges reads the stored entry count before each scrape.
func (h *Handler) refreshGauges(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n, err := h.entries.Count(r.Context()); err != nil {
			h.log.Warn(r.Context(), "count entries for metrics", "err", err)
		} else {
			h.metrics.entries.Set(float64(n))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}
