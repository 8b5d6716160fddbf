package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// DiscoveryStatus represents a discovered source's position in the review
// queue.
type DiscoveryStatus string

const (
	DiscoveryPendingAnalysis  DiscoveryStatus = "pending_analysis"
	DiscoveryPendingReview    DiscoveryStatus = "pending_review"
	DiscoveryApproved         DiscoveryStatus = "approved"
	DiscoveryRejected         DiscoveryStatus = "rejected"
	DiscoveryScraperGenerated DiscoveryStatus = "scraper_generated"
	DiscoveryDuplicate        DiscoveryStatus = "duplicate"
)

var validDiscoveryStatuses = map[DiscoveryStatus]bool{
	DiscoveryPendingAnalysis:  true,
	DiscoveryPendingReview:    true,
	DiscoveryApproved:         true,
	DiscoveryRejected:         true,
	DiscoveryScraperGenerated: true,
	DiscoveryDuplicate:        true,
}

// IsValid reports whether s is a recognised discovery status.
func (s DiscoveryStatus) IsValid() bool {
	return validDiscoveryStatuses[s]
}

// IsTerminal reports whether a discovered source in this status is done
// being processed.
func (s DiscoveryStatus) IsTerminal() bool {
	return s == DiscoveryRejected || s == DiscoveryScraperGenerated || s == DiscoveryDuplicate
}

// SiteAnalysis is the AI collaborator's classification of a discovered URL.
type SiteAnalysis struct {
	IsLikelyCampSite  bool     `json:"is_likely_camp_site"`
	Confidence        float64  `json:"confidence"`
	PageType          string   `json:"page_type,omitempty"`
	OrganizationNames []string `json:"organization_names,omitempty"`
	HasScheduleInfo   bool     `json:"has_schedule_info"`
}

// Value implements driver.Valuer for database storage.
func (a SiteAnalysis) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for database retrieval.
func (a *SiteAnalysis) Scan(value any) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// DiscoveredSource is a candidate website awaiting classification and
// operator review before promotion to a managed Source.
type DiscoveredSource struct {
	ID             string          `json:"id" db:"id"`
	URL            string          `json:"url" db:"url"`
	Domain         string          `json:"domain" db:"domain"`
	Title          string          `json:"title,omitempty" db:"title"`
	Snippet        string          `json:"snippet,omitempty" db:"snippet"`
	DiscoveryQuery string          `json:"discovery_query,omitempty" db:"discovery_query"`
	Analysis       *SiteAnalysis   `json:"analysis,omitempty" db:"analysis"`
	Status         DiscoveryStatus `json:"status" db:"status"`
	ReviewedBy     string          `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
