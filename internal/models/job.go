package models

import "time"

// JobStatus represents a job state in the job state machine.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// validJobStatuses maps every recognised JobStatus to true for O(1) lookup.
var validJobStatuses = map[JobStatus]bool{
	JobPending:   true,
	JobRunning:   true,
	JobCompleted: true,
	JobFailed:    true,
}

// IsValid reports whether s is a recognised job status.
func (s JobStatus) IsValid() bool {
	return validJobStatuses[s]
}

// IsTerminal reports whether a job in this status is immutable.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ErrorKind classifies a job failure for health accounting.
type ErrorKind string

const (
	// ErrorKindTransient covers network faults, rate limits, and anything
	// else a plain retry can fix.
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindStructural means the source's page structure no longer
	// matches the extractor; retries will not help.
	ErrorKindStructural ErrorKind = "structural"
	// ErrorKindTimeout is a job that exceeded its running deadline.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindCancelled is an operator cancellation.
	ErrorKindCancelled ErrorKind = "cancelled"
)

// IsValid reports whether k is a recognised error kind.
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrorKindTransient, ErrorKindStructural, ErrorKindTimeout, ErrorKindCancelled:
		return true
	}
	return false
}

// IsStructural reports whether this failure should flag the source for
// scraper regeneration. Timeouts and cancellations are transient.
func (k ErrorKind) IsStructural() bool {
	return k == ErrorKindStructural
}

// Job is one extraction attempt against a source. Terminal jobs are
// immutable and form the source's audit trail.
type Job struct {
	ID            string      `json:"id" db:"id"`
	SourceID      string      `json:"source_id" db:"source_id"`
	Status        JobStatus   `json:"status" db:"status"`
	TriggeredBy   string      `json:"triggered_by" db:"triggered_by"`
	StartedAt     *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	SessionsFound int         `json:"sessions_found" db:"sessions_found"`
	ErrorMessage  string      `json:"error_message,omitempty" db:"error_message"`
	ErrorKind     ErrorKind   `json:"error_kind,omitempty" db:"error_kind"`
	LogLines      StringArray `json:"log_lines,omitempty" db:"log_lines"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}
