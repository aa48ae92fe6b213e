package models

/*
Job status constants for use throughout the codebase.
Centralizing these avoids magic strings and improves maintainability.
*/

// JobStatus is the lifecycle state of a translation job.
type JobStatus string

const (
	JobStatusPendingConfirmation JobStatus = "pending_confirmation"
	JobStatusRunning             JobStatus = "running"
	JobStatusCancelling          JobStatus = "cancelling"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusFailed              JobStatus = "failed"
	JobStatusCancelled           JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Transaction type constants for the ledger.
const (
	TxTypeBuy   = "buy"
	TxTypeGift  = "gift"
	TxTypeSpend = "spend"
)
