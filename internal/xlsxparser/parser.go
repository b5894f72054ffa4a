// =============================================================================
// DWG Batch Duplicator - XLSX Parser
// =============================================================================
//
// This module reads the drawing list workbook into a types.Table. It knows
// nothing about which columns matter; the loader package maps the table onto
// rows by header name.
//
// EXPECTED LAYOUT (first sheet unless configured otherwise):
//
//   | Source                      | Drawing Number | (any other columns) |
//   |-----------------------------|----------------|---------------------|
//   | C:\Projects\A\A-100.dwg     | B-100          |                     |
//   | C:\Projects\A\A-101.dwg     | B-101          |                     |
//
// The first non-blank row is the header row. Blank rows below it are skipped.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/types"
	"github.com/xuri/excelize/v2"
)

// Options controls which worksheet is read.
type Options struct {
	// Sheet is the worksheet name. Empty selects the first sheet.
	Sheet string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads an XLSX workbook and returns the selected sheet as a table.
//
// PARAMETERS:
//   - path: The path to the workbook (.xlsx or .xlsm).
//   - opts: Sheet selection.
//
// RETURNS:
//   - The table holding the header row and the non-blank data rows.
//   - An error if the workbook cannot be opened, the sheet does not exist,
//     or the sheet has no header row.
func Parse(path string, opts Options) (*types.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName, err := resolveSheet(f, opts.Sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %q: %w", sheetName, err)
	}

	return buildTable(path, rows)
}

// resolveSheet returns the sheet to read, checking that a named sheet exists.
func resolveSheet(f *excelize.File, name string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	if name == "" {
		return sheets[0], nil
	}

	for _, sheet := range sheets {
		if strings.EqualFold(sheet, name) {
			return sheet, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (available: %s)", name, strings.Join(sheets, ", "))
}

// buildTable splits raw rows into header and records.
func buildTable(path string, rows [][]string) (*types.Table, error) {
	table := &types.Table{SourceFile: path}

	headerIndex := -1
	for i, row := range rows {
		if !isRowEmpty(row) {
			headerIndex = i
			break
		}
	}
	if headerIndex < 0 {
		return nil, fmt.Errorf("sheet is empty: no header row")
	}

	for _, cell := range rows[headerIndex] {
		table.Headers = append(table.Headers, strings.TrimSpace(cell))
	}

	for i := headerIndex + 1; i < len(rows); i++ {
		if isRowEmpty(rows[i]) {
			continue
		}
		table.Records = append(table.Records, types.Record{
			SheetRow: i + 1,
			Cells:    rows[i],
		})
	}

	return table, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
