// Package models contains the persistent entities of the camp ingestion
// pipeline: sources, jobs, discovered sources, and the catalog they feed.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Source is a managed ingestion target: a website from which camp sessions
// are extracted.
type Source struct {
	ID             string           `json:"id" db:"id"`
	Name           string           `json:"name" db:"name"`
	URL            string           `json:"url" db:"url"`
	AdditionalURLs AdditionalURLs   `json:"additional_urls,omitempty" db:"additional_urls"`
	OrganizationID *string          `json:"organization_id,omitempty" db:"organization_id"`
	Active         bool             `json:"active" db:"active"`
	ParsingNotes   string           `json:"parsing_notes,omitempty" db:"parsing_notes"`
	NeedsRescan    bool             `json:"needs_rescan" db:"needs_rescan"`
	RescanReason   string           `json:"rescan_reason,omitempty" db:"rescan_reason"`
	RunningJobID   *string          `json:"running_job_id,omitempty" db:"running_job_id"`
	Health         Health           `json:"health"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// AdditionalURL is an extra page crawled for a source, with an optional
// operator-facing label ("summer schedule", "registration").
type AdditionalURL struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// AdditionalURLs is stored as a JSONB column.
type AdditionalURLs []AdditionalURL

// ErrEmptyURLList is returned when trying to value an empty or nil AdditionalURLs.
var ErrEmptyURLList = errors.New("url list is empty or nil")

// Value implements driver.Valuer for database storage.
func (a AdditionalURLs) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, ErrEmptyURLList
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for database retrieval.
func (a *AdditionalURLs) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Health is the per-source reliability snapshot, maintained from job
// outcomes. SuccessRate is recomputed from raw counts so the rate stays
// auditable; it is never decayed incrementally.
type Health struct {
	TotalRuns           int        `json:"total_runs" db:"total_runs"`
	SuccessCount        int        `json:"success_count" db:"success_count"`
	ConsecutiveFailures int        `json:"consecutive_failures" db:"consecutive_failures"`
	SuccessRate         float64    `json:"success_rate" db:"success_rate"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty" db:"last_success_at"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty" db:"last_failure_at"`
	LastError           string     `json:"last_error,omitempty" db:"last_error"`
	NeedsRegeneration   bool       `json:"needs_regeneration" db:"needs_regeneration"`
}

// StringArray is a custom type for JSONB string arrays.
type StringArray []string

// Value implements driver.Valuer for database storage.
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for database retrieval.
func (a *StringArray) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}
