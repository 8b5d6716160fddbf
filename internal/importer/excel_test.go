package importer_test

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/camphubhq/pipeline/internal/importer"
)

func TestValidateRow(t *testing.T) {
	t.Helper()

	tests := []struct {
		name    string
		row     importer.SourceRow
		wantErr string
	}{
		{
			name: "valid row",
			row: importer.SourceRow{
				Row:            2,
				Name:           "YMCA Summer Camps",
				URL:            "https://ymca.example.org/camps",
				Active:         true,
				AdditionalURLs: `["https://ymca.example.org/camps/archive"]`,
			},
			wantErr: "",
		},
		{
			name: "missing name",
			row: importer.SourceRow{
				Row: 2,
				URL: "https://ymca.example.org/camps",
			},
			wantErr: "name is required",
		},
		{
			name: "missing url",
			row: importer.SourceRow{
				Row:  2,
				Name: "YMCA Summer Camps",
			},
			wantErr: "url is required",
		},
		{
			name: "invalid url scheme",
			row: importer.SourceRow{
				Row:  2,
				Name: "YMCA Summer Camps",
				URL:  "ftp://ymca.example.org/camps",
			},
			wantErr: "url must start with http:// or https://",
		},
		{
			name: "invalid additional_urls json",
			row: importer.SourceRow{
				Row:            2,
				Name:           "YMCA Summer Camps",
				URL:            "https://ymca.example.org/camps",
				AdditionalURLs: `not valid json`,
			},
			wantErr: "additional_urls must be a valid JSON array of strings",
		},
		{
			name: "additional_urls not an array",
			row: importer.SourceRow{
				Row:            2,
				Name:           "YMCA Summer Camps",
				URL:            "https://ymca.example.org/camps",
				AdditionalURLs: `{"url": "https://example.com"}`,
			},
			wantErr: "additional_urls must be a valid JSON array of strings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := importer.ValidateRow(tt.row)
			if got != tt.wantErr {
				t.Errorf("ValidateRow() = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

// createTestExcel creates an in-memory import workbook for testing.
func createTestExcel(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", importer.SheetName); err != nil {
		t.Fatalf("failed to rename sheet: %v", err)
	}

	headers := []string{"name", "url", "organization_id", "active", "additional_urls", "parsing_notes"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(importer.SheetName, cell, h); err != nil {
			t.Fatalf("failed to set header cell: %v", err)
		}
	}

	for rowIdx, row := range rows {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(importer.SheetName, cell, val); err != nil {
				t.Fatalf("failed to set cell: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to write Excel file: %v", err)
	}

	return bytes.NewReader(buf.Bytes())
}

func TestParseExcelFile(t *testing.T) {
	t.Helper()

	tests := []struct {
		name           string
		rows           [][]string
		wantRowCount   int
		wantErrorCount int
		wantErrorMsg   string
	}{
		{
			name: "valid file with two sources",
			rows: [][]string{
				{"YMCA Summer Camps", "https://ymca.example.org/camps", "", "true", `["https://ymca.example.org/day-camps"]`, "Prices are per week"},
				{"Camp Wild", "https://campwild.example.com", "org-7", "false", "", ""},
			},
			wantRowCount:   2,
			wantErrorCount: 0,
		},
		{
			name: "missing name reported per-row",
			rows: [][]string{
				{"", "https://ymca.example.org/camps", "", "true", "", ""},
			},
			wantRowCount:   0,
			wantErrorCount: 1,
			wantErrorMsg:   "name is required",
		},
		{
			name: "bad active flag reported per-row",
			rows: [][]string{
				{"Camp Wild", "https://campwild.example.com", "", "maybe", "", ""},
			},
			wantRowCount:   0,
			wantErrorCount: 1,
			wantErrorMsg:   `active must be true/false/1/0/yes/no, got "maybe"`,
		},
		{
			name: "bad row does not abort the rest",
			rows: [][]string{
				{"Camp Wild", "not-a-url", "", "true", "", ""},
				{"YMCA Summer Camps", "https://ymca.example.org/camps", "", "true", "", ""},
			},
			wantRowCount:   1,
			wantErrorCount: 1,
			wantErrorMsg:   "url must start with http:// or https://",
		},
		{
			name: "empty rows skipped",
			rows: [][]string{
				{"", "", "", "", "", ""},
				{"YMCA Summer Camps", "https://ymca.example.org/camps", "", "yes", "", ""},
			},
			wantRowCount:   1,
			wantErrorCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := createTestExcel(t, tt.rows)

			parsed, importErrs := importer.ParseExcelFile(reader)
			if len(parsed) != tt.wantRowCount {
				t.Errorf("ParseExcelFile() rows = %d, want %d", len(parsed), tt.wantRowCount)
			}
			if len(importErrs) != tt.wantErrorCount {
				t.Fatalf("ParseExcelFile() errors = %d, want %d", len(importErrs), tt.wantErrorCount)
			}
			if tt.wantErrorMsg != "" && importErrs[0].Error != tt.wantErrorMsg {
				t.Errorf("ParseExcelFile() error = %q, want %q", importErrs[0].Error, tt.wantErrorMsg)
			}
		})
	}
}

func TestToSource(t *testing.T) {
	t.Helper()

	row := importer.SourceRow{
		Row:            2,
		Name:           "  YMCA Summer Camps  ",
		URL:            "https://ymca.example.org/camps",
		OrganizationID: "org-7",
		Active:         true,
		AdditionalURLs: `["https://ymca.example.org/day-camps", "https://ymca.example.org/overnight"]`,
		ParsingNotes:   "Prices are per week",
	}

	source, err := importer.ToSource(row)
	if err != nil {
		t.Fatalf("ToSource() error = %v", err)
	}

	if source.Name != "YMCA Summer Camps" {
		t.Errorf("Name = %q, want trimmed name", source.Name)
	}
	if source.OrganizationID == nil || *source.OrganizationID != "org-7" {
		t.Errorf("OrganizationID = %v, want org-7", source.OrganizationID)
	}
	if !source.Active {
		t.Error("Active = false, want true")
	}
	if len(source.AdditionalURLs) != 2 {
		t.Fatalf("AdditionalURLs = %d entries, want 2", len(source.AdditionalURLs))
	}
	if source.AdditionalURLs[0].URL != "https://ymca.example.org/day-camps" {
		t.Errorf("AdditionalURLs[0] = %q", source.AdditionalURLs[0].URL)
	}
	if source.ParsingNotes != "Prices are per week" {
		t.Errorf("ParsingNotes = %q", source.ParsingNotes)
	}
}

func TestToSource_NoOrganization(t *testing.T) {
	t.Helper()

	source, err := importer.ToSource(importer.SourceRow{
		Row:  2,
		Name: "Camp Wild",
		URL:  "https://campwild.example.com",
	})
	if err != nil {
		t.Fatalf("ToSource() error = %v", err)
	}
	if source.OrganizationID != nil {
		t.Errorf("OrganizationID = %v, want nil", source.OrganizationID)
	}
	if len(source.AdditionalURLs) != 0 {
		t.Errorf("AdditionalURLs = %d entries, want none", len(source.AdditionalURLs))
	}
}
