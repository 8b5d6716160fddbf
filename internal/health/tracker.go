// Package health maintains per-source reliability metrics from job outcomes
// and classifies them for display. The threshold constants here are a
// contract: dashboards and alerting consume them verbatim.
package health

import (
	"time"

	"github.com/camphubhq/pipeline/internal/models"
)

// Classification thresholds shared by every consumer. Classification is
// computed on read, never stored.
const (
	// CriticalConsecutiveFailures flags a source Critical.
	CriticalConsecutiveFailures = 5
	// DegradedConsecutiveFailures flags a source Degraded.
	DegradedConsecutiveFailures = 3
	// HealthyMinSuccessRate is the floor for a Healthy classification.
	HealthyMinSuccessRate = 0.9
	// FairMinSuccessRate is the floor for a Fair classification.
	FairMinSuccessRate = 0.7
)

// Class is a display classification of a source's health.
type Class string

const (
	ClassCritical Class = "critical"
	ClassDegraded Class = "degraded"
	ClassHealthy  Class = "healthy"
	ClassFair     Class = "fair"
	ClassUnknown  Class = "unknown"
)

// Classify derives the display class from a health snapshot. Failure streaks
// dominate the success rate: a source with a high historical rate but an
// active streak is still Degraded or Critical.
func Classify(h models.Health) Class {
	switch {
	case h.NeedsRegeneration || h.ConsecutiveFailures >= CriticalConsecutiveFailures:
		return ClassCritical
	case h.ConsecutiveFailures >= DegradedConsecutiveFailures:
		return ClassDegraded
	case h.TotalRuns > 0 && h.SuccessRate >= HealthyMinSuccessRate:
		return ClassHealthy
	case h.TotalRuns > 0 && h.SuccessRate >= FairMinSuccessRate:
		return ClassFair
	default:
		return ClassUnknown
	}
}

// Outcome is the health-relevant summary of one terminal job.
type Outcome struct {
	Success bool
	// Error is the raw collaborator error text, preserved verbatim.
	Error string
	// Structural marks a page-structure break, as opposed to a transient
	// fault. It flags the source for scraper regeneration.
	Structural bool
	At         time.Time
}

// RecordOutcome folds one terminal job outcome into the health snapshot.
// Call exactly once per terminal job. SuccessRate is recomputed from the
// stored counts so incremental update order can never drift it.
// NeedsRegeneration is sticky: success does not clear it, only an explicit
// operator action does.
func RecordOutcome(h *models.Health, o Outcome) {
	h.TotalRuns++
	if o.Success {
		h.SuccessCount++
		h.ConsecutiveFailures = 0
		at := o.At
		h.LastSuccessAt = &at
	} else {
		h.ConsecutiveFailures++
		at := o.At
		h.LastFailureAt = &at
		h.LastError = o.Error
		if o.Structural {
			h.NeedsRegeneration = true
		}
	}
	h.SuccessRate = float64(h.SuccessCount) / float64(h.TotalRuns)
}

// ClearRegeneration is the operator action that resets the sticky
// regeneration flag after the scraper has been rebuilt.
func ClearRegeneration(h *models.Health) {
	h.NeedsRegeneration = false
}
