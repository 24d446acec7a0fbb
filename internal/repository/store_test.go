package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/mide-olaore/watertrack/constants"
	"github.com/mide-olaore/watertrack/internal/common"
	"github.com/mide-olaore/watertrack/internal/jobs"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), time.Second, logger)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJobLifecyclePersistence(t *testing.T) {
	store := openTestStore(t)
	repo := NewJobRepository(store)
	ctx := context.Background()

	uploaded := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.CreateJob(ctx, "job-1", "hash-1", "data.csv", "sensor_data", uploaded); err != nil {
		t.Fatalf("creating job: %v", err)
	}

	rec, err := repo.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("getting job: %v", err)
	}
	if rec.Status != constants.JobStatusQueued {
		t.Errorf("status: expected queued, got %s", rec.Status)
	}
	if rec.DatasetType != "sensor_data" {
		t.Errorf("dataset type: expected sensor_data, got %q", rec.DatasetType)
	}
	if !rec.UploadedAt.Equal(uploaded) {
		t.Errorf("uploaded at: expected %s, got %s", uploaded, rec.UploadedAt)
	}
	if rec.StartedAt != nil || rec.FinishedAt != nil {
		t.Error("fresh job should have no started/finished timestamps")
	}

	// running sets started_at once.
	if err := repo.UpdateStatus(ctx, "job-1", constants.JobStatusRunning, ""); err != nil {
		t.Fatalf("marking running: %v", err)
	}
	rec, _ = repo.GetJob(ctx, "job-1")
	if rec.StartedAt == nil {
		t.Fatal("running transition should set started_at")
	}
	firstStart := *rec.StartedAt

	if err := repo.UpdateStatus(ctx, "job-1", constants.JobStatusRetrying, "attempt 1 failed"); err != nil {
		t.Fatalf("marking retrying: %v", err)
	}
	if err := repo.UpdateStatus(ctx, "job-1", constants.JobStatusRunning, ""); err != nil {
		t.Fatalf("second running transition: %v", err)
	}
	rec, _ = repo.GetJob(ctx, "job-1")
	if !rec.StartedAt.Equal(firstStart) {
		t.Error("started_at must not move on later running transitions")
	}

	// terminal sets finished_at.
	if err := repo.UpdateStatus(ctx, "job-1", constants.JobStatusDone, ""); err != nil {
		t.Fatalf("marking done: %v", err)
	}
	rec, _ = repo.GetJob(ctx, "job-1")
	if rec.FinishedAt == nil {
		t.Error("terminal transition should set finished_at")
	}
	if rec.Status != constants.JobStatusDone {
		t.Errorf("status: expected done, got %s", rec.Status)
	}
}

func TestUpdateStatusUnknownJob(t *testing.T) {
	store := openTestStore(t)
	repo := NewJobRepository(store)

	err := repo.UpdateStatus(context.Background(), "missing", constants.JobStatusRunning, "")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestGetJobNotFound(t *testing.T) {
	store := openTestStore(t)
	repo := NewJobRepository(store)

	if _, err := repo.GetJob(context.Background(), "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestRecentJobsAndCounts(t *testing.T) {
	store := openTestStore(t)
	repo := NewJobRepository(store)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"j1", "j2", "j3"} {
		if err := repo.CreateJob(ctx, id, "hash-x", "x.csv", "", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("creating %s: %v", id, err)
		}
	}
	if err := repo.UpdateStatus(ctx, "j1", constants.JobStatusFailed, "boom"); err != nil {
		t.Fatal(err)
	}

	recent, err := repo.RecentJobs(ctx, 2)
	if err != nil {
		t.Fatalf("recent jobs: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent jobs, got %d", len(recent))
	}
	if recent[0].JobID != "j3" {
		t.Errorf("expected newest first, got %s", recent[0].JobID)
	}

	forFile, err := repo.RecentJobsForFile(ctx, "hash-x", 10)
	if err != nil {
		t.Fatalf("jobs for file: %v", err)
	}
	if len(forFile) != 3 {
		t.Errorf("expected 3 jobs for hash-x, got %d", len(forFile))
	}

	byStatus, err := repo.ListByStatus(ctx, constants.JobStatusFailed, 10)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].JobID != "j1" {
		t.Errorf("expected [j1] failed, got %v", byStatus)
	}
	if byStatus[0].ErrorMsg != "boom" {
		t.Errorf("error msg: expected boom, got %q", byStatus[0].ErrorMsg)
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count by status: %v", err)
	}
	if counts[constants.JobStatusQueued] != 2 || counts[constants.JobStatusFailed] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestUploadFileDeduplication(t *testing.T) {
	store := openTestStore(t)
	repo := NewUploadFileRepository(store)
	ctx := context.Background()

	first := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	rec, dedup, err := repo.UpsertByHash(ctx, "hash-1", "data.csv", "/uploads/data.csv", first)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if dedup {
		t.Error("first upload must not report deduplication")
	}
	if rec.UploadCount != 1 {
		t.Errorf("upload count: expected 1, got %d", rec.UploadCount)
	}

	rec, dedup, err = repo.UpsertByHash(ctx, "hash-1", "data-renamed.csv", "", first.Add(time.Hour))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !dedup {
		t.Error("re-upload of known hash must report deduplication")
	}
	if rec.OriginalName != "data.csv" {
		t.Errorf("original name should be the first upload's, got %q", rec.OriginalName)
	}

	stored, err := repo.GetByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if stored.UploadCount != 2 {
		t.Errorf("upload count after re-upload: expected 2, got %d", stored.UploadCount)
	}
	if !stored.LastUploadedAt.After(stored.FirstUploadedAt) {
		t.Error("last_uploaded_at should advance on re-upload")
	}

	if _, err := repo.GetByHash(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected not-found for unknown hash, got %v", err)
	}
}

func TestStatusNotifierBridgesManagerToStore(t *testing.T) {
	store := openTestStore(t)
	repo := NewJobRepository(store)
	notifier := NewStatusNotifier(repo)
	ctx := context.Background()

	jc := jobs.NewContext("/uploads/data.csv", "hash-n", "data.csv", "sensor_data")
	if err := notifier.NotifyCreated(ctx, jc); err != nil {
		t.Fatalf("notify created: %v", err)
	}

	rec, err := repo.GetJob(ctx, jc.JobID)
	if err != nil {
		t.Fatalf("job record not created: %v", err)
	}
	if rec.Status != constants.JobStatusQueued {
		t.Errorf("status: expected queued, got %s", rec.Status)
	}

	if err := notifier.NotifyStatus(ctx, jc.JobID, constants.JobStatusRunning, ""); err != nil {
		t.Fatalf("notify status: %v", err)
	}
	rec, _ = repo.GetJob(ctx, jc.JobID)
	if rec.Status != constants.JobStatusRunning {
		t.Errorf("status: expected running, got %s", rec.Status)
	}

	if err := notifier.NotifyStatus(ctx, "missing", constants.JobStatusRunning, ""); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected not-found bridging to repository, got %v", err)
	}
}
