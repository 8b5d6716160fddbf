package models

// ExtractedRecord is the raw per-session output of an extraction run,
// before validation. Field values are kept as extracted text so parse
// failures can be diagnosed against the original page content.
type ExtractedRecord struct {
	Name            string   `json:"name"`
	Dates           string   `json:"dates,omitempty"`
	Times           string   `json:"times,omitempty"`
	Price           string   `json:"price,omitempty"`
	AgeRange        string   `json:"age_range,omitempty"`
	GradeRange      string   `json:"grade_range,omitempty"`
	LocationText    string   `json:"location_text,omitempty"`
	RegistrationURL string   `json:"registration_url,omitempty"`
	ImageURLs       []string `json:"image_urls,omitempty"`
}

// FieldError preserves the raw value that failed to parse for a required
// field, for operator diagnosis.
type FieldError struct {
	Field    string `json:"field"`
	RawValue string `json:"raw_value"`
	Message  string `json:"message"`
}

// Validation is the completeness result for one extracted record.
// Invariant: Score == 100 iff MissingFields is empty iff IsComplete.
type Validation struct {
	IsComplete    bool         `json:"is_complete"`
	Score         int          `json:"completeness_score"`
	MissingFields []string     `json:"missing_fields,omitempty"`
	FieldErrors   []FieldError `json:"field_errors,omitempty"`
}
