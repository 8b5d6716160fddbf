// Package jobs runs the extraction job state machine: one attempt per
// trigger, per-source serialization, terminal outcomes feeding source
// health.
package jobs

import (
	"errors"
	"fmt"

	"github.com/camphubhq/pipeline/internal/models"
)

// ErrInvalidTransition is wrapped by every transition rejection.
var ErrInvalidTransition = errors.New("invalid job transition")

// validTransitions centralizes the legality checks; no call site may move a
// job between statuses on its own.
var validTransitions = map[models.JobStatus][]models.JobStatus{
	models.JobPending: {
		models.JobRunning, // Claimed by the executor
	},
	models.JobRunning: {
		models.JobCompleted, // Extraction returned a record list (possibly empty)
		models.JobFailed,    // Extraction error, timeout, or cancellation
	},
	// Terminal states: completed and failed jobs are immutable.
	models.JobCompleted: {},
	models.JobFailed:    {},
}

// ValidateTransition checks if a job status transition is valid.
// Returns an error if the transition is not allowed.
func ValidateTransition(from, to models.JobStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown job status: %s", from)
	}
	for _, status := range allowed {
		if status == to {
			return nil
		}
	}
	return fmt.Errorf("from %s to %s: %w", from, to, ErrInvalidTransition)
}
