package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/camphubhq/pipeline/internal/models"
)

// Column indices for the source import spreadsheet (0-based).
const (
	colName           = 0 // Column A
	colURL            = 1 // Column B
	colOrganizationID = 2 // Column C
	colActive         = 3 // Column D
	colAdditionalURLs = 4 // Column E
	colParsingNotes   = 5 // Column F

	headerRowIndex = 1 // Excel rows are 1-based, header is row 1
)

// SheetName is the worksheet the importer reads from.
const SheetName = "Sources"

// SourceRow represents a parsed row from the import spreadsheet.
type SourceRow struct {
	Row            int // Excel row number (for error reporting)
	Name           string
	URL            string
	OrganizationID string
	Active         bool
	AdditionalURLs string // Raw JSON string
	ParsingNotes   string
}

// ImportError represents a validation error for a specific row.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ParseExcelFile reads the Sources sheet and returns valid rows plus
// per-row errors. A bad row never aborts the parse; it is reported and
// skipped.
func ParseExcelFile(r io.Reader) ([]SourceRow, []ImportError) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, []ImportError{{Row: 0, Error: fmt.Sprintf("open spreadsheet: %v", err)}}
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, []ImportError{{Row: 0, Error: fmt.Sprintf("sheet %q: %v", SheetName, err)}}
	}

	var (
		parsed    []SourceRow
		importErr []ImportError
	)
	for i, cells := range rows {
		rowNum := i + 1
		if rowNum == headerRowIndex {
			continue
		}
		if isEmptyRow(cells) {
			continue
		}

		row := SourceRow{
			Row:            rowNum,
			Name:           cellAt(cells, colName),
			URL:            cellAt(cells, colURL),
			OrganizationID: cellAt(cells, colOrganizationID),
			AdditionalURLs: cellAt(cells, colAdditionalURLs),
			ParsingNotes:   cellAt(cells, colParsingNotes),
		}

		active, parseErr := parseBool(cellAt(cells, colActive))
		if parseErr != nil {
			importErr = append(importErr, ImportError{Row: rowNum, Error: parseErr.Error()})
			continue
		}
		row.Active = active

		if msg := ValidateRow(row); msg != "" {
			importErr = append(importErr, ImportError{Row: rowNum, Error: msg})
			continue
		}

		parsed = append(parsed, row)
	}

	return parsed, importErr
}

// ValidateRow validates a single row and returns an error message or empty string.
func ValidateRow(row SourceRow) string {
	if strings.TrimSpace(row.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(row.URL) == "" {
		return "url is required"
	}

	if !strings.HasPrefix(row.URL, "http://") && !strings.HasPrefix(row.URL, "https://") {
		return "url must start with http:// or https://"
	}

	if row.AdditionalURLs != "" {
		var urls []string
		if err := json.Unmarshal([]byte(row.AdditionalURLs), &urls); err != nil {
			return "additional_urls must be a valid JSON array of strings"
		}
	}

	return ""
}

// ToSource converts a validated row into a source ready for creation.
func ToSource(row SourceRow) (*models.Source, error) {
	source := &models.Source{
		Name:         strings.TrimSpace(row.Name),
		URL:          strings.TrimSpace(row.URL),
		Active:       row.Active,
		ParsingNotes: strings.TrimSpace(row.ParsingNotes),
	}

	if orgID := strings.TrimSpace(row.OrganizationID); orgID != "" {
		source.OrganizationID = &orgID
	}

	if row.AdditionalURLs != "" {
		var urls []string
		if err := json.Unmarshal([]byte(row.AdditionalURLs), &urls); err != nil {
			return nil, fmt.Errorf("row %d: additional_urls: %w", row.Row, err)
		}
		for _, u := range urls {
			source.AdditionalURLs = append(source.AdditionalURLs, models.AdditionalURL{URL: u})
		}
	}

	return source, nil
}

func cellAt(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "", "false", "0", "no":
		return false, nil
	case "true", "1", "yes":
		return true, nil
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v, nil
	}
	return false, fmt.Errorf("active must be true/false/1/0/yes/no, got %q", raw)
}
