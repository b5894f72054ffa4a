// =============================================================================
// DWG Batch Duplicator - CSV Parser Module
// =============================================================================
//
// This module reads a drawing list saved as CSV (for example "Save As > CSV"
// from Excel) into the same types.Table the XLSX parser produces.
//
// FEATURES:
//   - Configurable delimiter (comma, semicolon, tab, pipe)
//   - Configurable header row, for exports with a title line above the header
//   - UTF-8 byte order mark stripped from the first header
//   - Blank rows skipped
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/config"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/types"
)

const utf8BOM = "\uFEFF"

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns its header and data rows as a table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings from the configuration.
//
// RETURNS:
//   - The parsed table.
//   - An error if the file cannot be read or has no header row.
func Parse(filePath string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return parse(file, filePath, settings)
}

// parse does the work of Parse on an already opened reader.
func parse(r io.Reader, filePath string, settings config.CSVSettings) (*types.Table, error) {
	csvReader := csv.NewReader(bufio.NewReader(r))
	configureReader(csvReader, settings)

	headerRow := settings.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}

	table := &types.Table{SourceFile: filePath}
	haveHeader := false

	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		line, _ := csvReader.FieldPos(0)

		if !haveHeader {
			if line < headerRow {
				continue
			}
			table.Headers = cleanHeaders(record)
			haveHeader = true
			continue
		}

		if isRowEmpty(record) {
			continue
		}

		table.Records = append(table.Records, types.Record{
			SheetRow: line,
			Cells:    record,
		})
	}

	if !haveHeader {
		return nil, fmt.Errorf("CSV file has no header row (expected on line %d)", headerRow)
	}

	return table, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	if comma, err := settings.Comma(); err == nil {
		reader.Comma = comma
	}

	if settings.Comment != "" {
		reader.Comment = []rune(settings.Comment)[0]
	}

	// Spreadsheet exports pad short rows inconsistently.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// cleanHeaders trims header values and strips a leading byte order mark.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, utf8BOM)
		}
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
