// Package validation scores extracted session records for completeness.
// Everything here is pure: no I/O, no clock, no side effects.
package validation

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/camphubhq/pipeline/internal/models"
)

// Required field names, in the order they appear in MissingFields.
const (
	FieldName            = "name"
	FieldStartDate       = "startDate"
	FieldTimeWindow      = "timeWindow"
	FieldPrice           = "price"
	FieldAgeOrGrade      = "ageOrGrade"
	FieldRegistrationURL = "registrationURL"
)

// requiredFieldCount is the denominator of the completeness score.
const requiredFieldCount = 6

// Parsed holds the typed values recovered from an extracted record.
// Fields that failed to parse are left nil/zero.
type Parsed struct {
	StartDate       *time.Time
	EndDate         *time.Time
	StartTime       string // "15:04"
	EndTime         string
	PriceCents      *int
	AgeMin          *int
	AgeMax          *int
	GradeMin        *int
	GradeMax        *int
	RegistrationURL string
}

// Validate scores a single extracted record. A record is complete when all
// six required fields parse: name, start date, time-of-day window, price,
// an age or grade requirement, and a registration URL.
func Validate(rec models.ExtractedRecord) models.Validation {
	_, v := ParseRecord(rec)
	return v
}

// ParseRecord performs the typed parses behind Validate and returns both the
// parsed values (for catalog upserts) and the completeness result.
func ParseRecord(rec models.ExtractedRecord) (Parsed, models.Validation) {
	var p Parsed
	var v models.Validation
	parsed := 0

	miss := func(field, raw, msg string) {
		v.MissingFields = append(v.MissingFields, field)
		v.FieldErrors = append(v.FieldErrors, models.FieldError{
			Field:    field,
			RawValue: raw,
			Message:  msg,
		})
	}

	if strings.TrimSpace(rec.Name) != "" {
		parsed++
	} else {
		miss(FieldName, rec.Name, "name is empty")
	}

	if start, end, ok := ParseDateRange(rec.Dates); ok {
		p.StartDate = start
		p.EndDate = end
		parsed++
	} else {
		miss(FieldStartDate, rec.Dates, "could not resolve a start date")
	}

	if startT, endT, ok := ParseTimeWindow(rec.Times); ok {
		p.StartTime = startT
		p.EndTime = endT
		parsed++
	} else {
		miss(FieldTimeWindow, rec.Times, "could not resolve a time-of-day window")
	}

	if cents, ok := ParsePriceCents(rec.Price); ok {
		p.PriceCents = &cents
		parsed++
	} else {
		miss(FieldPrice, rec.Price, "could not parse price")
	}

	ageMin, ageMax, ageOK := ParseIntRange(rec.AgeRange)
	gradeMin, gradeMax, gradeOK := ParseGradeRange(rec.GradeRange)
	if ageOK {
		p.AgeMin, p.AgeMax = ageMin, ageMax
	}
	if gradeOK {
		p.GradeMin, p.GradeMax = gradeMin, gradeMax
	}
	if ageOK || gradeOK {
		parsed++
	} else {
		raw := rec.AgeRange
		if raw == "" {
			raw = rec.GradeRange
		}
		miss(FieldAgeOrGrade, raw, "neither an age range nor a grade range is present")
	}

	if u, err := url.Parse(strings.TrimSpace(rec.RegistrationURL)); err == nil &&
		(u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		p.RegistrationURL = u.String()
		parsed++
	} else {
		miss(FieldRegistrationURL, rec.RegistrationURL, "not a valid http(s) URL")
	}

	// Round to nearest integer percentage.
	v.Score = (parsed*100 + requiredFieldCount/2) / requiredFieldCount
	v.IsComplete = len(v.MissingFields) == 0
	return p, v
}

// dateLayouts are tried in order against each side of a date range.
var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"1/2/2006",
	"01/02/2006",
}

var rangeSeparators = regexp.MustCompile(`\s*(?:–|—|\bto\b|\bthrough\b|-)\s*`)

// spacedSeparators only matches separators padded with whitespace, so dashes
// inside ISO dates ("2025-06-09 - 2025-06-13") don't split a date in half.
var spacedSeparators = regexp.MustCompile(`\s+(?:–|—|to|through|-)\s+`)

var trailingYearRe = regexp.MustCompile(`(\d{4})\s*$`)

// ParseDateRange resolves raw date text like "June 9 - 13, 2025",
// "June 9 - July 13, 2025", or "2025-06-09" into calendar dates. A single
// date yields start only. Returns ok=false when no start date resolves.
func ParseDateRange(text string) (start, end *time.Time, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, nil, false
	}

	// Whole string first: many sources publish a single date.
	if t, parsed := parseDate(s); parsed {
		return &t, nil, true
	}

	parts := spacedSeparators.Split(s, 2)
	if len(parts) != 2 {
		parts = rangeSeparators.Split(s, 2)
	}
	if len(parts) != 2 {
		return nil, nil, false
	}
	left, right := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	startT, startOK := parseDate(left)
	endT, endOK := parseDate(right)

	if !startOK {
		// "June 9 - 13, 2025" and "June 9 - July 13, 2025": the left side
		// inherits the year written on the right.
		if m := trailingYearRe.FindStringSubmatch(right); m != nil {
			if t, parsed := parseDate(left + ", " + m[1]); parsed {
				startT, startOK = t, true
			}
		}
	}
	if startOK && !endOK {
		// "13, 2025" or bare "13": the right side inherits the start's
		// month, and its year when missing.
		candidates := []string{
			startT.Month().String() + " " + right,
			startT.Month().String() + " " + right + ", " + strconv.Itoa(startT.Year()),
		}
		for _, candidate := range candidates {
			if t, parsed := parseDate(candidate); parsed {
				endT, endOK = t, true
				break
			}
		}
	}

	if !startOK {
		return nil, nil, false
	}
	if endOK {
		return &startT, &endT, true
	}
	return &startT, nil, true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var clockRe = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// ParseTimeWindow resolves raw time text like "9:00 AM - 3:00 PM" or
// "9am-3pm" into 24-hour clock strings. A side without a meridiem inherits
// the other side's ("9 - 3pm" reads as 9am-3pm).
func ParseTimeWindow(text string) (startT, endT string, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", "", false
	}
	parts := rangeSeparators.Split(s, 2)
	if len(parts) != 2 {
		return "", "", false
	}

	lh, lm, lmer, lok := parseClock(parts[0])
	rh, rm, rmer, rok := parseClock(parts[1])
	if !lok || !rok {
		return "", "", false
	}
	if lmer == "" {
		lmer = rmer
	}
	if rmer == "" {
		rmer = lmer
	}

	return formatClock(lh, lm, lmer), formatClock(rh, rm, rmer), true
}

func parseClock(s string) (hour, minute int, meridiem string, ok bool) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, "", false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem = strings.ToLower(m[3])
	if hour > 23 || minute > 59 {
		return 0, 0, "", false
	}
	if meridiem != "" && (hour < 1 || hour > 12) {
		return 0, 0, "", false
	}
	return hour, minute, meridiem, true
}

func formatClock(hour, minute int, meridiem string) string {
	switch meridiem {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	const clockFmt = "15:04"
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format(clockFmt)
}

var priceRe = regexp.MustCompile(`([0-9][0-9,]*)(?:\.([0-9]{1,2}))?`)

// ParsePriceCents converts price text ("$350", "350.00", "Free") to integer
// cents.
func ParsePriceCents(text string) (int, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	if strings.EqualFold(s, "free") {
		return 0, true
	}
	m := priceRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	dollars, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	cents := dollars * 100
	if m[2] != "" {
		frac := m[2]
		if len(frac) == 1 {
			frac += "0"
		}
		c, convErr := strconv.Atoi(frac)
		if convErr != nil {
			return 0, false
		}
		cents += c
	}
	return cents, true
}

var intRangeRe = regexp.MustCompile(`(\d+)\s*(?:–|—|\bto\b|-)\s*(\d+)`)
var singleIntRe = regexp.MustCompile(`(\d+)\s*\+?`)

// ParseIntRange reads age text like "7-12", "ages 7 to 12", or "13+".
// A single bound yields min only.
func ParseIntRange(text string) (minV, maxV *int, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, nil, false
	}
	if m := intRangeRe.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		return &lo, &hi, true
	}
	if m := singleIntRe.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		return &lo, nil, true
	}
	return nil, nil, false
}

var gradeRangeRe = regexp.MustCompile(`(?i)(K|\d+)(?:st|nd|rd|th)?\s*(?:–|—|\bto\b|-)\s*(K|\d+)(?:st|nd|rd|th)?`)
var singleGradeRe = regexp.MustCompile(`(?i)(K|\d+)(?:st|nd|rd|th)?`)

// ParseGradeRange reads grade text like "K-5", "1st-5th", or "grades 3-8".
// Kindergarten maps to grade 0.
func ParseGradeRange(text string) (minV, maxV *int, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, nil, false
	}
	if m := gradeRangeRe.FindStringSubmatch(s); m != nil {
		lo := gradeValue(m[1])
		hi := gradeValue(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		return &lo, &hi, true
	}
	if m := singleGradeRe.FindStringSubmatch(s); m != nil {
		lo := gradeValue(m[1])
		return &lo, nil, true
	}
	return nil, nil, false
}

func gradeValue(s string) int {
	if strings.EqualFold(s, "k") {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
