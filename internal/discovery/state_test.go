package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/camphubhq/pipeline/internal/models"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    models.DiscoveryStatus
		to      models.DiscoveryStatus
		wantErr bool
	}{
		{"analysis to review", models.DiscoveryPendingAnalysis, models.DiscoveryPendingReview, false},
		{"analysis to rejected", models.DiscoveryPendingAnalysis, models.DiscoveryRejected, false},
		{"analysis to duplicate", models.DiscoveryPendingAnalysis, models.DiscoveryDuplicate, false},
		{"review to approved", models.DiscoveryPendingReview, models.DiscoveryApproved, false},
		{"review to rejected", models.DiscoveryPendingReview, models.DiscoveryRejected, false},
		{"approved to scraper generated", models.DiscoveryApproved, models.DiscoveryScraperGenerated, false},
		{"analysis cannot skip to scraper generated", models.DiscoveryPendingAnalysis, models.DiscoveryScraperGenerated, true},
		{"rejected is terminal", models.DiscoveryRejected, models.DiscoveryPendingReview, true},
		{"duplicate is terminal", models.DiscoveryDuplicate, models.DiscoveryApproved, true},
		{"scraper generated is terminal", models.DiscoveryScraperGenerated, models.DiscoveryDuplicate, true},
		{"unknown status", models.DiscoveryStatus("triaged"), models.DiscoveryApproved, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReviewable(t *testing.T) {
	assert.True(t, Reviewable(models.DiscoveryPendingReview))
	assert.True(t, Reviewable(models.DiscoveryPendingAnalysis))
	assert.False(t, Reviewable(models.DiscoveryApproved))
	assert.False(t, Reviewable(models.DiscoveryRejected))
	assert.False(t, Reviewable(models.DiscoveryDuplicate))
	assert.False(t, Reviewable(models.DiscoveryScraperGenerated))
}
