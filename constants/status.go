package constants

// JobStatus is the canonical status for job records.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "queued"    // waiting in the FIFO queue
	JobStatusRunning   JobStatus = "running"   // handler in progress
	JobStatusDone      JobStatus = "done"      // terminal success
	JobStatusFailed    JobStatus = "failed"    // terminal failure (retries exhausted or stuck)
	JobStatusError     JobStatus = "error"     // terminal unexpected failure
	JobStatusRetrying  JobStatus = "retrying"  // delayed re-attempt pending
	JobStatusCancelled JobStatus = "cancelled" // terminal, cancelled by user
)

var terminalStatuses = map[JobStatus]struct{}{
	JobStatusDone:      {},
	JobStatusFailed:    {},
	JobStatusError:     {},
	JobStatusCancelled: {},
}

// IsTerminal reports whether no further transition occurs from s.
func (s JobStatus) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// AllJobStatuses returns the known statuses in lifecycle order.
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusQueued,
		JobStatusRunning,
		JobStatusRetrying,
		JobStatusDone,
		JobStatusFailed,
		JobStatusError,
		JobStatusCancelled,
	}
}
