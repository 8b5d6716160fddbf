// Package repository implements PostgreSQL persistence for the pipeline
// entities.
package repository

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRunningJobConflict is returned when a trigger races an existing
	// running job on the same source. Callers retry later; the pipeline
	// never queues the duplicate silently.
	ErrRunningJobConflict = errors.New("a job is already running for this source")
)
