package models

import "time"

// Job is one user-initiated document translation request.
// PageCount and Cost are computed once at intake and never change.
type Job struct {
	ID          string    `json:"id"`
	RequesterID int64     `json:"requester_id"`
	Filename    string    `json:"filename"`
	SourcePath  string    `json:"-"`
	WorkDir     string    `json:"-"`
	PageCount   int       `json:"page_count"`
	Cost        int64     `json:"cost"`
	Status      JobStatus `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is a ledger account. Balance is denominated in stars.
type User struct {
	RequesterID int64     `json:"requester_id"`
	Username    string    `json:"username"`
	Balance     int64     `json:"balance"`
	Format      string    `json:"format"`
	CreatedAt   time.Time `json:"created_at"`
}

// Transaction is one ledger movement (buy, gift or spend).
type Transaction struct {
	ID          int64     `json:"id"`
	RequesterID int64     `json:"requester_id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Details     string    `json:"details"`
	CreatedAt   time.Time `json:"created_at"`
}

// LedgerStats aggregates ledger activity for the stats surface.
type LedgerStats struct {
	Users        int64 `json:"users"`
	Translations int64 `json:"translations"`
	StarsBought  int64 `json:"stars_bought"`
	StarsSpent   int64 `json:"stars_spent"`
	StarsGifted  int64 `json:"stars_gifted"`
}

// ProgressEvent is one tick of a running job's progress stream. A stream
// carries zero or more non-terminal ticks and ends with exactly one event
// whose Status is terminal.
type ProgressEvent struct {
	JobID      string    `json:"job_id"`
	Status     JobStatus `json:"status"`
	Done       int       `json:"done"`
	Total      int       `json:"total"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
}
