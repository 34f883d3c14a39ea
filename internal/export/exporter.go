package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"shortvid-saver/pkg/models"
)

// ExportFormat represents supported export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

// ExportConfig holds configuration for history export
type ExportConfig struct {
	Format     ExportFormat
	FilePath   string
	Columns    []string
	DateFormat string
	Delimiter  rune
}

// Exporter writes history records to disk in a chosen format
type Exporter struct {
	config ExportConfig
}

// NewExporter creates a new history exporter
func NewExporter(config ExportConfig) *Exporter {
	if config.DateFormat == "" {
		config.DateFormat = "2006-01-02 15:04:05"
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	if len(config.Columns) == 0 {
		config.Columns = defaultColumns()
	}

	return &Exporter{config: config}
}

// ExportRecords exports history records to the configured format
func (e *Exporter) ExportRecords(records []*models.HistoryRecord) error {
	if err := os.MkdirAll(filepath.Dir(e.config.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	switch e.config.Format {
	case FormatCSV:
		return e.exportToCSV(records)
	case FormatXLSX:
		return e.exportToXLSX(records)
	case FormatJSON:
		return e.exportToJSON(records)
	default:
		return fmt.Errorf("unsupported export format: %s", e.config.Format)
	}
}

func (e *Exporter) exportToCSV(records []*models.HistoryRecord) error {
	file, err := os.Create(e.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = e.config.Delimiter
	defer writer.Flush()

	if err := writer.Write(e.config.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, record := range records {
		if err := writer.Write(e.recordToRow(record)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}

func (e *Exporter) exportToXLSX(records []*models.HistoryRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "History"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, column := range e.config.Columns {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, column)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	columnWidths := map[string]float64{
		"A": 24, // Record ID
		"B": 20, // Video ID
		"C": 12, // Platform
		"D": 40, // Title
		"E": 24, // Author
		"F": 60, // URL
		"G": 30, // Filename
		"H": 14, // Status
		"I": 14, // Size
		"J": 20, // Created At
	}
	for col, width := range columnWidths {
		f.SetColWidth(sheetName, col, col, width)
	}

	for i, record := range records {
		row := e.recordToRow(record)
		for j, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+j, i+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	endRange := fmt.Sprintf("%c%d", 'A'+len(e.config.Columns)-1, len(records)+1)
	f.AutoFilter(sheetName, "A1:"+endRange, []excelize.AutoFilterOptions{})

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze: true,
		Split:  false,
		XSplit: 0,
		YSplit: 1,
	})

	if err := f.SaveAs(e.config.FilePath); err != nil {
		return fmt.Errorf("failed to save XLSX file: %w", err)
	}

	return nil
}

func (e *Exporter) exportToJSON(records []*models.HistoryRecord) error {
	exportData := struct {
		ExportedAt time.Time               `json:"exported_at"`
		Count      int                     `json:"count"`
		Records    []*models.HistoryRecord `json:"records"`
	}{
		ExportedAt: time.Now(),
		Count:      len(records),
		Records:    records,
	}

	data, err := json.MarshalIndent(exportData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(e.config.FilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	return nil
}

// recordToRow converts a HistoryRecord to a row of strings
func (e *Exporter) recordToRow(record *models.HistoryRecord) []string {
	row := make([]string, len(e.config.Columns))

	for i, column := range e.config.Columns {
		switch strings.ToLower(column) {
		case "record id", "record_id":
			row[i] = record.RecordID
		case "video id", "video_id":
			row[i] = record.VideoID
		case "platform":
			row[i] = string(record.Platform)
		case "title":
			row[i] = record.Title
		case "author":
			row[i] = record.Author
		case "url":
			row[i] = record.URL
		case "page url", "page_url":
			row[i] = record.PageURL
		case "filename":
			row[i] = record.Filename
		case "status":
			row[i] = string(record.Status)
		case "method":
			row[i] = record.Method
		case "size", "total bytes", "total_bytes":
			if record.TotalBytes > 0 {
				row[i] = fmt.Sprintf("%d", record.TotalBytes)
			}
		case "percent":
			row[i] = fmt.Sprintf("%d", record.Percent)
		case "error", "last_error":
			row[i] = record.LastError
		case "created at", "created_at":
			row[i] = record.CreatedAt.Format(e.config.DateFormat)
		case "updated at", "updated_at":
			row[i] = record.UpdatedAt.Format(e.config.DateFormat)
		default:
			row[i] = ""
		}
	}

	return row
}

func defaultColumns() []string {
	return []string{
		"Record ID",
		"Video ID",
		"Platform",
		"Title",
		"Author",
		"URL",
		"Filename",
		"Status",
		"Size",
		"Created At",
	}
}

// GetSupportedFormats returns the supported export formats
func GetSupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV, FormatXLSX, FormatJSON}
}

// ValidateConfig validates export configuration
func ValidateConfig(config ExportConfig) error {
	if config.FilePath == "" {
		return fmt.Errorf("file path is required")
	}

	for _, format := range GetSupportedFormats() {
		if config.Format == format {
			return nil
		}
	}

	return fmt.Errorf("unsupported format: %s", config.Format)
}
