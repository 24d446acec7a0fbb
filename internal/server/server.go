package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mide-olaore/watertrack/internal/common"
	"github.com/mide-olaore/watertrack/internal/ingest"
	"github.com/mide-olaore/watertrack/internal/jobs"
	"github.com/mide-olaore/watertrack/internal/repository"
)

// Server exposes the upload and job lifecycle API over HTTP.
type Server struct {
	ingestSvc      *ingest.Service
	manager        *jobs.Manager
	jobsRepo       repository.JobRepository
	store          *repository.Store
	uploadDir      string
	maxUploadBytes int64
	logger         *slog.Logger
	http           *http.Server
}

// New builds the HTTP server on the given listen address.
func New(
	addr string,
	ingestSvc *ingest.Service,
	manager *jobs.Manager,
	jobsRepo repository.JobRepository,
	store *repository.Store,
	uploadDir string,
	maxUploadBytes int64,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ingestSvc:      ingestSvc,
		manager:        manager,
		jobsRepo:       jobsRepo,
		store:          store,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/queue", s.handleQueue)
		r.Get("/jobs/recent", s.handleRecentJobs)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Post("/jobs/{jobID}/cancel", s.handleCancel)
	})
	return r
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)
	msg := err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		s.writeJSON(w, status, map[string]string{"error": appErr.Message, "code": appErr.Code})
		return
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}
