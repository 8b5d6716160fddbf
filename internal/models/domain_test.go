package models_test

import (
	"testing"

	"github.com/camphubhq/pipeline/internal/models"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full url", "https://www.campwild.example.com/programs", "campwild.example.com"},
		{"no www", "https://ymca.example.org/camps", "ymca.example.org"},
		{"bare host without scheme", "CampWild.example.com", "campwild.example.com"},
		{"upper case host", "HTTPS://WWW.YMCA.EXAMPLE.ORG", "ymca.example.org"},
		{"host with port", "https://campwild.example.com:8443/signup", "campwild.example.com"},
		{"empty", "", "unknown"},
		{"whitespace only", "   ", "unknown"},
		{"unparseable", "https://%zz", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := models.NormalizeDomain(tt.rawURL); got != tt.want {
				t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.rawURL, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lower cases", "Camp Wild", "camp wild"},
		{"collapses interior whitespace", "OMSI   Summer\tCamps", "omsi summer camps"},
		{"trims edges", "  YMCA Camps  ", "ymca camps"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := models.NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple name", "Camp Wild", "camp-wild"},
		{"punctuation collapses", "YMCA of Greater Seattle!", "ymca-of-greater-seattle"},
		{"leading and trailing symbols trimmed", "--OMSI Camps--", "omsi-camps"},
		{"digits kept", "Camp 4H 2026", "camp-4h-2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := models.Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
