package jobs

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mide-olaore/watertrack/constants"
)

// Context is the unit-of-work record for one processing job. It is
// mutated only by the manager's scheduler; callers see snapshots.
type Context struct {
	JobID            string
	FilePath         string
	FileHash         string
	OriginalFilename string
	DatasetType      string
	RetryCount       int
	LastError        string
	CreatedAt        time.Time
	StartedAt        time.Time
	FinishedAt       time.Time
}

// NewContext builds a job context with a fresh short job id.
func NewContext(filePath, fileHash, originalFilename, datasetType string) *Context {
	return &Context{
		JobID:            uuid.NewString()[:8],
		FilePath:         filePath,
		FileHash:         fileHash,
		OriginalFilename: originalFilename,
		DatasetType:      datasetType,
		CreatedAt:        time.Now().UTC(),
	}
}

// Handler executes the actual work for one job. It returns nil on
// success; any error drives the retry policy. Implementations must
// honor ctx cancellation where they can.
type Handler interface {
	Execute(ctx context.Context, jc *Context) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, jc *Context) error

func (f HandlerFunc) Execute(ctx context.Context, jc *Context) error { return f(ctx, jc) }

// Notifier is the external persistence collaborator. Every call is
// best-effort: the manager logs failures and keeps going.
type Notifier interface {
	NotifyCreated(ctx context.Context, jc *Context) error
	NotifyStatus(ctx context.Context, jobID string, status constants.JobStatus, errorMsg string) error
}

// RetryConfig is the retry/backoff policy shared by all jobs.
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// DefaultRetryConfig mirrors the production defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BaseDelay:         30 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Minute,
	}
}

// DelayFor computes the backoff before re-attempt retryCount (1-based),
// capped at MaxDelay.
func (c RetryConfig) DelayFor(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiplier, float64(retryCount-1)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Snapshot is the externally visible state of a job.
type Snapshot struct {
	JobID            string              `json:"job_id"`
	Status           constants.JobStatus `json:"status"`
	OriginalFilename string              `json:"original_filename,omitempty"`
	DatasetType      string              `json:"dataset_type,omitempty"`
	RetryCount       int                 `json:"retry_count"`
	LastError        string              `json:"last_error,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	StartedAt        *time.Time          `json:"started_at,omitempty"`
	FinishedAt       *time.Time          `json:"finished_at,omitempty"`
}

func snapshotOf(jc *Context, status constants.JobStatus) Snapshot {
	s := Snapshot{
		JobID:            jc.JobID,
		Status:           status,
		OriginalFilename: jc.OriginalFilename,
		DatasetType:      jc.DatasetType,
		RetryCount:       jc.RetryCount,
		LastError:        jc.LastError,
		CreatedAt:        jc.CreatedAt,
	}
	if !jc.StartedAt.IsZero() {
		t := jc.StartedAt
		s.StartedAt = &t
	}
	if !jc.FinishedAt.IsZero() {
		t := jc.FinishedAt
		s.FinishedAt = &t
	}
	return s
}
