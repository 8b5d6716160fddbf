// Package discovery manages the review queue that promotes externally-found
// candidate websites into managed sources.
package discovery

import (
	"errors"
	"fmt"

	"github.com/camphubhq/pipeline/internal/models"
)

// ErrInvalidTransition is wrapped by every transition rejection.
var ErrInvalidTransition = errors.New("invalid discovery transition")

// validTransitions centralizes queue legality checks. Any non-terminal
// state may short-circuit to duplicate when a managed source already covers
// the domain.
var validTransitions = map[models.DiscoveryStatus][]models.DiscoveryStatus{
	models.DiscoveryPendingAnalysis: {
		models.DiscoveryPendingReview, // Analysis classified it as a likely camp site
		models.DiscoveryRejected,      // Analysis confidence below threshold, or operator rejection
		models.DiscoveryApproved,      // Operator approval without waiting for analysis
		models.DiscoveryDuplicate,
	},
	models.DiscoveryPendingReview: {
		models.DiscoveryApproved, // Operator-gated; never automatic
		models.DiscoveryRejected,
		models.DiscoveryDuplicate,
	},
	models.DiscoveryApproved: {
		models.DiscoveryScraperGenerated, // Source created, scraper work enqueued
		models.DiscoveryDuplicate,
	},
	// Terminal states: no further processing.
	models.DiscoveryRejected:         {},
	models.DiscoveryScraperGenerated: {},
	models.DiscoveryDuplicate:        {},
}

// ValidateTransition checks if a discovery status transition is valid.
func ValidateTransition(from, to models.DiscoveryStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown discovery status: %s", from)
	}
	for _, status := range allowed {
		if status == to {
			return nil
		}
	}
	return fmt.Errorf("from %s to %s: %w", from, to, ErrInvalidTransition)
}

// Reviewable reports whether an operator decision is legal in this status.
func Reviewable(status models.DiscoveryStatus) bool {
	return status == models.DiscoveryPendingReview || status == models.DiscoveryPendingAnalysis
}
