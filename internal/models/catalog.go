package models

import "time"

// Organization is a camp provider. Dedup merges organizations that share a
// normalized website domain.
type Organization struct {
	ID        string      `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Slug      string      `json:"slug" db:"slug"`
	Website   string      `json:"website,omitempty" db:"website"`
	LogoURL   string      `json:"logo_url,omitempty" db:"logo_url"`
	Cities    StringArray `json:"cities,omitempty" db:"cities"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Location is a physical place sessions run at, owned by an organization.
type Location struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID *string   `json:"organization_id,omitempty" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Address        string    `json:"address,omitempty" db:"address"`
	Latitude       *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude      *float64  `json:"longitude,omitempty" db:"longitude"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// CampSession is a catalog row produced by a completed job. Sessions are
// upserted on (source_id, name, start_date) so re-running a job refreshes
// rather than duplicates.
type CampSession struct {
	ID                string      `json:"id" db:"id"`
	SourceID          string      `json:"source_id" db:"source_id"`
	OrganizationID    *string     `json:"organization_id,omitempty" db:"organization_id"`
	LocationID        *string     `json:"location_id,omitempty" db:"location_id"`
	Name              string      `json:"name" db:"name"`
	StartDate         *time.Time  `json:"start_date,omitempty" db:"start_date"`
	EndDate           *time.Time  `json:"end_date,omitempty" db:"end_date"`
	RawDates          string      `json:"raw_dates,omitempty" db:"raw_dates"`
	StartTime         string      `json:"start_time,omitempty" db:"start_time"`
	EndTime           string      `json:"end_time,omitempty" db:"end_time"`
	PriceCents        *int        `json:"price_cents,omitempty" db:"price_cents"`
	AgeMin            *int        `json:"age_min,omitempty" db:"age_min"`
	AgeMax            *int        `json:"age_max,omitempty" db:"age_max"`
	GradeMin          *int        `json:"grade_min,omitempty" db:"grade_min"`
	GradeMax          *int        `json:"grade_max,omitempty" db:"grade_max"`
	LocationText      string      `json:"location_text,omitempty" db:"location_text"`
	RegistrationURL   string      `json:"registration_url,omitempty" db:"registration_url"`
	ImageURLs         StringArray `json:"image_urls,omitempty" db:"image_urls"`
	CompletenessScore int         `json:"completeness_score" db:"completeness_score"`
	IsComplete        bool        `json:"is_complete" db:"is_complete"`
	Active            bool        `json:"active" db:"active"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}
