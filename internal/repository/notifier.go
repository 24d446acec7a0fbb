package repository

import (
	"context"
	"time"

	"github.com/mide-olaore/watertrack/constants"
	"github.com/mide-olaore/watertrack/internal/jobs"
)

// StatusNotifier adapts the job repository to the manager's Notifier
// contract. The manager treats every call as best-effort.
type StatusNotifier struct {
	repo JobRepository
}

// NewStatusNotifier wraps a JobRepository for the job manager.
func NewStatusNotifier(repo JobRepository) *StatusNotifier {
	return &StatusNotifier{repo: repo}
}

func (n *StatusNotifier) NotifyCreated(ctx context.Context, jc *jobs.Context) error {
	uploadedAt := jc.CreatedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	return n.repo.CreateJob(ctx, jc.JobID, jc.FileHash, jc.OriginalFilename, jc.DatasetType, uploadedAt)
}

func (n *StatusNotifier) NotifyStatus(ctx context.Context, jobID string, status constants.JobStatus, errorMsg string) error {
	return n.repo.UpdateStatus(ctx, jobID, status, errorMsg)
}
