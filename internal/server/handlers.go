package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mide-olaore/watertrack/internal/common"
	"github.com/mide-olaore/watertrack/internal/repository"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(r.Context(), 2*time.Second); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts one multipart file, stores it under the upload
// directory, and hands it to the ingest service.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.writeError(w, common.NewAppError("UPLOAD_TOO_LARGE", "request body too large or malformed", common.ErrInvalidInput))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, common.NewAppError("MISSING_FILE", "multipart field 'file' is required", common.ErrInvalidInput))
		return
	}
	defer file.Close()

	force, _ := strconv.ParseBool(r.FormValue("force"))

	originalName := filepath.Base(header.Filename)
	dest := filepath.Join(s.uploadDir, uuid.NewString()[:8]+"_"+originalName)
	if err := saveUpload(file, dest); err != nil {
		s.writeError(w, common.NewAppError("UPLOAD_SAVE_FAILED", originalName, err))
		return
	}

	result, err := s.ingestSvc.IngestFile(r.Context(), dest, originalName, force)
	if err != nil {
		os.Remove(dest)
		s.writeError(w, err)
		return
	}

	status := http.StatusAccepted
	if result.Deduplicated {
		// Nothing was queued; the payload carries the prior jobs.
		os.Remove(dest)
		status = http.StatusOK
	}
	s.writeJSON(w, status, result)
}

// handleJobStatus prefers the manager's live snapshot and falls back to
// the persisted record once the job has left memory.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if snap, ok := s.manager.Status(jobID); ok {
		s.writeJSON(w, http.StatusOK, snap)
		return
	}

	rec, err := s.jobsRepo.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if s.manager.Cancel(jobID) {
		s.writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "cancelled"})
		return
	}

	// Not in memory: either unknown or already terminal.
	rec, err := s.jobsRepo.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeError(w, common.NewAppError("JOB_NOT_CANCELLABLE",
		"job is already "+string(rec.Status), common.ErrInvalidInput))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	stats := s.manager.Stats()

	counts, err := s.jobsRepo.CountByStatus(r.Context())
	if err != nil {
		s.logger.Error("failed to count persisted jobs", "error", err)
		counts = nil
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"queue":        stats,
		"totals":       counts,
		"running_jobs": s.manager.Running(),
	})
}

func (s *Server) handleRecentJobs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	recs, err := s.jobsRepo.RecentJobs(r.Context(), limit)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		s.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []repository.JobRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": recs, "count": len(recs)})
}

func saveUpload(src io.Reader, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
