package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mide-olaore/watertrack/constants"
	"github.com/mide-olaore/watertrack/internal/common"
	"github.com/mide-olaore/watertrack/internal/detect"
	"github.com/mide-olaore/watertrack/internal/jobs"
	"github.com/mide-olaore/watertrack/internal/repository"
)

// autoAssignThreshold is the classification confidence above which the
// detected dataset type is attached to the job without user input.
const autoAssignThreshold = 0.7

// Result is the per-file ingest outcome.
type Result struct {
	JobID        string                 `json:"job_id,omitempty"`
	FileHash     string                 `json:"file_hash"`
	Deduplicated bool                   `json:"deduplicated"`
	Detection    detect.Result          `json:"detection"`
	Actions      []string               `json:"required_actions,omitempty"`
	PriorJobs    []repository.JobRecord `json:"prior_jobs,omitempty"`
}

// Service ties fingerprinting, duplicate detection, classification, and
// job creation together.
type Service struct {
	files    repository.UploadFileRepository
	jobsRepo repository.JobRepository
	detector *detect.Detector
	manager  *jobs.Manager
	handler  jobs.Handler
	logger   *slog.Logger
}

// NewService builds the ingest service.
func NewService(
	files repository.UploadFileRepository,
	jobsRepo repository.JobRepository,
	detector *detect.Detector,
	manager *jobs.Manager,
	handler jobs.Handler,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		files:    files,
		jobsRepo: jobsRepo,
		detector: detector,
		manager:  manager,
		handler:  handler,
		logger:   logger,
	}
}

// IngestFile validates, fingerprints, classifies, and enqueues one file.
// A re-upload of a known hash reports the prior jobs instead of
// reprocessing unless force is set.
func (s *Service) IngestFile(ctx context.Context, path, originalName string, force bool) (Result, error) {
	var out Result

	ext := constants.NormalizeExt(filepath.Ext(path))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return out, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported or missing extension: %q", ext), common.ErrInvalidInput)
	}

	hash, err := HashFile(path)
	if err != nil {
		return out, common.NewAppError("HASH_FAILED", path, err)
	}
	out.FileHash = hash
	s.logger.Info("computed file hash", "file", originalName, "hash", hash[:16])

	now := time.Now().UTC()
	_, dedup, err := s.files.UpsertByHash(ctx, hash, originalName, "", now)
	if err != nil {
		// Duplicate bookkeeping is best-effort; ingest proceeds.
		s.logger.Error("duplicate check failed", "hash", hash[:16], "error", err)
	}
	if dedup && !force {
		out.Deduplicated = true
		if prior, perr := s.jobsRepo.RecentJobsForFile(ctx, hash, 5); perr == nil {
			out.PriorJobs = prior
		}
		s.logger.Info("duplicate file detected", "file", originalName, "prior_jobs", len(out.PriorJobs))
		return out, nil
	}

	out.Detection = s.detector.ClassifyFile(path)
	out.Actions = s.detector.Actions(out.Detection)

	datasetType := ""
	if out.Detection.Confidence >= autoAssignThreshold &&
		out.Detection.DatasetType != constants.DatasetUnknown &&
		out.Detection.DatasetType != constants.DatasetError {
		datasetType = out.Detection.DatasetType
	}

	out.JobID = s.manager.Create(path, hash, originalName, datasetType, s.handler)
	return out, nil
}
