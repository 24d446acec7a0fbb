package jobs

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mide-olaore/watertrack/constants"
)

// job pairs a context with its handler and cancellation bookkeeping.
type job struct {
	ctx     *Context
	handler Handler
	// attemptStarted is the wall-clock start of the current attempt;
	// the watchdog keys off it so a retried job is not judged by its
	// first attempt's start time.
	attemptStarted time.Time
	cancelled      bool
	forceFailed    bool
}

// Manager owns the FIFO queue of job contexts, a single scheduler
// goroutine, the retry delay queue, and the stuck-job watchdog. At most
// one job executes at a time; that is a deliberate safety tradeoff, not
// a throughput design.
type Manager struct {
	retryCfg       RetryConfig
	notifier       Notifier
	logger         *slog.Logger
	tickInterval   time.Duration
	stuckThreshold time.Duration
	now            func() time.Time

	mu      sync.Mutex
	queue   []*job
	running map[string]*job
	retries retryHeap

	stopOnce sync.Once
	stopCh   chan struct{}
	loopDone chan struct{}
	dogDone  chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithTickInterval overrides the scheduler sleep between iterations.
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.tickInterval = d
		}
	}
}

// WithStuckThreshold overrides the stall timeout for running jobs.
func WithStuckThreshold(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.stuckThreshold = d
		}
	}
}

// WithClock overrides the time source. Tests use this to age jobs.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a manager and starts its scheduler and watchdog.
func NewManager(retryCfg RetryConfig, notifier Notifier, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		retryCfg:       retryCfg,
		notifier:       notifier,
		logger:         logger,
		tickInterval:   5 * time.Second,
		stuckThreshold: 2 * time.Hour,
		now:            time.Now,
		running:        make(map[string]*job),
		stopCh:         make(chan struct{}),
		loopDone:       make(chan struct{}),
		dogDone:        make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	go m.schedulerLoop()
	go m.watchdogLoop()
	m.logger.Info("job manager started",
		"max_retries", retryCfg.MaxRetries,
		"base_delay", retryCfg.BaseDelay,
		"stuck_threshold", m.stuckThreshold,
	)
	return m
}

// Create builds a job context, appends it to the queue tail, and returns
// its id without blocking.
func (m *Manager) Create(filePath, fileHash, originalFilename, datasetType string, handler Handler) string {
	jc := NewContext(filePath, fileHash, originalFilename, datasetType)
	j := &job{ctx: jc, handler: handler}

	m.mu.Lock()
	m.queue = append(m.queue, j)
	m.mu.Unlock()

	if m.notifier != nil {
		if err := m.notifier.NotifyCreated(context.Background(), jc); err != nil {
			m.logger.Error("failed to record job creation", "job_id", jc.JobID, "error", err)
		}
	}
	m.logger.Info("job created and queued", "job_id", jc.JobID, "file", originalFilename)
	return jc.JobID
}

// Status returns the in-memory snapshot for a job, or false once the
// job has left memory (terminal jobs live only in the external record).
func (m *Manager) Status(jobID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if j, ok := m.running[jobID]; ok {
		return snapshotOf(j.ctx, constants.JobStatusRunning), true
	}
	for _, j := range m.queue {
		if j.ctx.JobID == jobID {
			return snapshotOf(j.ctx, constants.JobStatusQueued), true
		}
	}
	if i := m.retries.indexOf(jobID); i >= 0 {
		return snapshotOf(m.retries[i].job.ctx, constants.JobStatusRetrying), true
	}
	return Snapshot{}, false
}

// Running returns snapshots of the currently executing jobs.
func (m *Manager) Running() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.running))
	for _, j := range m.running {
		out = append(out, snapshotOf(j.ctx, constants.JobStatusRunning))
	}
	return out
}

// QueueStats is a point-in-time view of the manager.
type QueueStats struct {
	Queued      int         `json:"queued_jobs"`
	Running     int         `json:"running_jobs"`
	Retrying    int         `json:"retrying_jobs"`
	RetryConfig RetryConfig `json:"retry_config"`
}

// Stats returns current queue counters and the retry policy.
func (m *Manager) Stats() QueueStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return QueueStats{
		Queued:      len(m.queue),
		Running:     len(m.running),
		Retrying:    m.retries.Len(),
		RetryConfig: m.retryCfg,
	}
}

// Cancel removes a job from the queue, the retry schedule, or the
// running set. Cancellation is cooperative bookkeeping only: an
// in-flight handler is not interrupted, and its eventual completion is
// discarded. Returns false when the job is not in memory.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	found := false
	for i, j := range m.queue {
		if j.ctx.JobID == jobID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			j.cancelled = true
			found = true
			break
		}
	}
	if !found {
		if i := m.retries.indexOf(jobID); i >= 0 {
			entry := heap.Remove(&m.retries, i).(retryEntry)
			entry.job.cancelled = true
			found = true
		}
	}
	if !found {
		if j, ok := m.running[jobID]; ok {
			j.cancelled = true
			delete(m.running, jobID)
			found = true
		}
	}
	m.mu.Unlock()

	if !found {
		return false
	}
	m.notify(jobID, constants.JobStatusCancelled, "Job cancelled by user")
	m.logger.Info("job cancelled", "job_id", jobID)
	return true
}

// Shutdown stops the scheduler and waits for the current iteration,
// bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) {
	m.stopOnce.Do(func() { close(m.stopCh) })

	done := make(chan struct{})
	go func() {
		<-m.loopDone
		<-m.dogDone
		close(done)
	}()
	select {
	case <-done:
		m.logger.Info("job manager stopped")
	case <-ctx.Done():
		m.logger.Warn("job manager shutdown interrupted by context")
	}
}

// schedulerLoop pops the queue head or a due retry, executes it
// synchronously, and sleeps a short interval.
func (m *Manager) schedulerLoop() {
	defer close(m.loopDone)
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		if j := m.nextRunnable(); j != nil {
			m.execute(j)
			continue
		}

		select {
		case <-m.stopCh:
			return
		case <-time.After(m.tickInterval):
		}
	}
}

// watchdogLoop force-fails stalled running jobs on every tick. It runs
// beside the scheduler so a blocked handler can still be observed.
func (m *Manager) watchdogLoop() {
	defer close(m.dogDone)
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkStuck()
		}
	}
}

// nextRunnable returns a due retry first, then the queue head.
func (m *Manager) nextRunnable() *job {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.retries.Len() > 0 && !m.retries[0].fireAt.After(m.now()) {
		entry := heap.Pop(&m.retries).(retryEntry)
		return entry.job
	}
	if len(m.queue) > 0 {
		j := m.queue[0]
		m.queue = m.queue[1:]
		return j
	}
	return nil
}

// execute runs one attempt of a job and applies the retry policy.
// The mutex is never held across the handler call.
func (m *Manager) execute(j *job) {
	jc := j.ctx
	now := m.now().UTC()

	m.mu.Lock()
	if j.cancelled {
		m.mu.Unlock()
		return
	}
	j.attemptStarted = now
	if jc.StartedAt.IsZero() {
		jc.StartedAt = now
	}
	m.running[jc.JobID] = j
	m.mu.Unlock()

	m.notify(jc.JobID, constants.JobStatusRunning, "")
	m.logger.Info("processing job", "job_id", jc.JobID, "attempt", jc.RetryCount+1)

	err := m.runHandler(j)

	m.mu.Lock()
	discarded := j.cancelled || j.forceFailed
	delete(m.running, jc.JobID)
	m.mu.Unlock()

	if discarded {
		// Cancelled or force-failed while executing: the terminal
		// status has already been written; drop the late completion.
		m.logger.Warn("discarding completion of cancelled job", "job_id", jc.JobID, "error", err)
		return
	}

	if err == nil {
		m.mu.Lock()
		if jc.FinishedAt.IsZero() {
			jc.FinishedAt = m.now().UTC()
		}
		m.mu.Unlock()
		m.notify(jc.JobID, constants.JobStatusDone, "")
		m.logger.Info("job completed successfully", "job_id", jc.JobID)
		return
	}

	m.mu.Lock()
	jc.LastError = err.Error()
	jc.RetryCount++
	retryCount := jc.RetryCount
	m.mu.Unlock()

	m.logger.Error("job attempt failed", "job_id", jc.JobID, "attempt", retryCount, "error", err)

	if retryCount < m.retryCfg.MaxRetries {
		delay := m.retryCfg.DelayFor(retryCount)
		m.notify(jc.JobID, constants.JobStatusRetrying, fmt.Sprintf("Retrying in %s: %v", delay, err))
		m.mu.Lock()
		heap.Push(&m.retries, retryEntry{fireAt: m.now().Add(delay), job: j})
		m.mu.Unlock()
		m.logger.Info("job scheduled for retry", "job_id", jc.JobID, "delay", delay)
		return
	}

	m.mu.Lock()
	if jc.FinishedAt.IsZero() {
		jc.FinishedAt = m.now().UTC()
	}
	m.mu.Unlock()
	m.notify(jc.JobID, constants.JobStatusFailed, fmt.Sprintf("Max retries exceeded: %v", err))
	m.logger.Error("job failed permanently", "job_id", jc.JobID, "attempts", retryCount)
}

// checkStuck force-fails running jobs whose current attempt exceeds the
// stall threshold, regardless of retry budget.
func (m *Manager) checkStuck() {
	now := m.now()

	m.mu.Lock()
	var stuck []*job
	for id, j := range m.running {
		if !j.attemptStarted.IsZero() && now.Sub(j.attemptStarted) > m.stuckThreshold {
			j.forceFailed = true
			if j.ctx.FinishedAt.IsZero() {
				j.ctx.FinishedAt = now.UTC()
			}
			delete(m.running, id)
			stuck = append(stuck, j)
		}
	}
	m.mu.Unlock()

	for _, j := range stuck {
		m.logger.Warn("job appears to be stuck, marking as failed", "job_id", j.ctx.JobID)
		m.notify(j.ctx.JobID, constants.JobStatusFailed, "Job timeout - stuck for too long")
	}
}

// runHandler executes the handler, converting a panic into an error.
func (m *Manager) runHandler(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if j.handler == nil {
		return fmt.Errorf("no handler for job %s", j.ctx.JobID)
	}
	return j.handler.Execute(context.Background(), j.ctx)
}

// notify records a status transition in external persistence. Failures
// are logged and never alter in-memory state.
func (m *Manager) notify(jobID string, status constants.JobStatus, errorMsg string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyStatus(context.Background(), jobID, status, errorMsg); err != nil {
		m.logger.Error("failed to update job status", "job_id", jobID, "status", status, "error", err)
	}
}
