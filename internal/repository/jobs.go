package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mide-olaore/watertrack/constants"
	"github.com/mide-olaore/watertrack/internal/common"
)

// JobRecord is the externally persisted state of a job.
type JobRecord struct {
	JobID            string              `json:"job_id"`
	Status           constants.JobStatus `json:"status"`
	FileHash         string              `json:"file_hash"`
	OriginalFilename string              `json:"original_filename"`
	DatasetType      string              `json:"dataset_type,omitempty"`
	ErrorMsg         string              `json:"error_msg,omitempty"`
	UploadedAt       time.Time           `json:"uploaded_at"`
	StartedAt        *time.Time          `json:"started_at,omitempty"`
	FinishedAt       *time.Time          `json:"finished_at,omitempty"`
}

// JobRepository persists job records and their status transitions.
type JobRepository interface {
	CreateJob(ctx context.Context, jobID, fileHash, originalFilename, datasetType string, uploadedAt time.Time) error
	UpdateStatus(ctx context.Context, jobID string, status constants.JobStatus, errorMsg string) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
	ListByStatus(ctx context.Context, status constants.JobStatus, limit int) ([]JobRecord, error)
	RecentJobs(ctx context.Context, limit int) ([]JobRecord, error)
	RecentJobsForFile(ctx context.Context, fileHash string, limit int) ([]JobRecord, error)
	CountByStatus(ctx context.Context) (map[constants.JobStatus]int, error)
}

type jobRepo struct {
	store *Store
}

// NewJobRepository returns the store-backed JobRepository.
func NewJobRepository(store *Store) JobRepository {
	return &jobRepo{store: store}
}

func (r *jobRepo) CreateJob(ctx context.Context, jobID, fileHash, originalFilename, datasetType string, uploadedAt time.Time) error {
	_, err := r.store.db.ExecContext(ctx, r.store.rebind(
		`INSERT INTO jobs (job_id, status, file_hash, original_filename, dataset_type, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		jobID,
		string(constants.JobStatusQueued),
		fileHash,
		originalFilename,
		nullable(datasetType),
		formatTime(uploadedAt),
	)
	if err != nil {
		r.store.logger.Error("failed to create job record", "job_id", jobID, "error", err)
		return common.WrapError(err, "insert job")
	}
	return nil
}

// UpdateStatus appends a status transition keyed by job_id. started_at is
// set once on the running transition, finished_at once on a terminal one.
func (r *jobRepo) UpdateStatus(ctx context.Context, jobID string, status constants.JobStatus, errorMsg string) error {
	now := formatTime(time.Now())

	var query string
	args := []any{string(status), nullable(errorMsg)}
	switch {
	case status == constants.JobStatusRunning:
		query = `UPDATE jobs SET status = ?, error_msg = ?, started_at = COALESCE(started_at, ?) WHERE job_id = ?`
		args = append(args, now, jobID)
	case status.IsTerminal():
		query = `UPDATE jobs SET status = ?, error_msg = ?, finished_at = COALESCE(finished_at, ?) WHERE job_id = ?`
		args = append(args, now, jobID)
	default:
		query = `UPDATE jobs SET status = ?, error_msg = ? WHERE job_id = ?`
		args = append(args, jobID)
	}

	res, err := r.store.db.ExecContext(ctx, r.store.rebind(query), args...)
	if err != nil {
		r.store.logger.Error("failed to update job status", "job_id", jobID, "status", status, "error", err)
		return common.WrapError(err, "update job status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("JOB_NOT_FOUND", jobID, common.ErrNotFound)
	}
	return nil
}

const jobColumns = `job_id, status, file_hash, original_filename, dataset_type, error_msg, uploaded_at, started_at, finished_at`

func (r *jobRepo) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	row := r.store.db.QueryRowContext(ctx, r.store.rebind(
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`), jobID)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("JOB_NOT_FOUND", jobID, common.ErrNotFound)
	}
	if err != nil {
		return nil, common.WrapError(err, "query job")
	}
	return rec, nil
}

func (r *jobRepo) ListByStatus(ctx context.Context, status constants.JobStatus, limit int) ([]JobRecord, error) {
	return r.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY uploaded_at DESC LIMIT ?`,
		string(status), limit)
}

func (r *jobRepo) RecentJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	return r.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY uploaded_at DESC LIMIT ?`, limit)
}

func (r *jobRepo) RecentJobsForFile(ctx context.Context, fileHash string, limit int) ([]JobRecord, error) {
	return r.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE file_hash = ? ORDER BY uploaded_at DESC LIMIT ?`,
		fileHash, limit)
}

func (r *jobRepo) CountByStatus(ctx context.Context) (map[constants.JobStatus]int, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, common.WrapError(err, "count jobs")
	}
	defer rows.Close()

	counts := make(map[constants.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, common.WrapError(err, "scan job count")
		}
		counts[constants.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *jobRepo) queryJobs(ctx context.Context, query string, args ...any) ([]JobRecord, error) {
	rows, err := r.store.db.QueryContext(ctx, r.store.rebind(query), args...)
	if err != nil {
		return nil, common.WrapError(err, "query jobs")
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan job")
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*JobRecord, error) {
	var (
		rec                    JobRecord
		datasetType, errorMsg  sql.NullString
		uploaded               string
		startedAt, finishedAt  sql.NullString
	)
	err := s.Scan(
		&rec.JobID,
		(*string)(&rec.Status),
		&rec.FileHash,
		&rec.OriginalFilename,
		&datasetType,
		&errorMsg,
		&uploaded,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.DatasetType = datasetType.String
	rec.ErrorMsg = errorMsg.String
	if t, terr := time.Parse(timeLayout, uploaded); terr == nil {
		rec.UploadedAt = t
	}
	rec.StartedAt = parseTime(startedAt)
	rec.FinishedAt = parseTime(finishedAt)
	return &rec, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
