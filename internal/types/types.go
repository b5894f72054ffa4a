// =============================================================================
// DWG Batch Duplicator - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - xlsxparser / csvparser (produce rows)
//   - validation             (checks rows)
//   - duplicator             (consumes rows, produces results)
//   - report                 (prints results)
//
// =============================================================================

package types

import (
	"strings"
	"time"
)

// =============================================================================
// ROW
// =============================================================================

// Row is one line of the input spreadsheet: a source drawing and the number
// it is duplicated under. Rows are created once by the loader and never
// modified afterwards.
type Row struct {
	// Index is the 1-based position of the row among the data rows.
	// It is what the console output calls "row N".
	Index int

	// SheetRow is the row number in the spreadsheet, header
	// included. Useful for pointing the user at the offending cell.
	SheetRow int

	// SourcePath is the drawing to duplicate, exactly as typed in the sheet.
	SourcePath string

	// DrawingNumber is the new drawing number; it becomes the file name.
	DrawingNumber string

	// TargetPath is the derived output path: <output dir>/<number>.<ext>.
	TargetPath string
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the outcome of duplicating a single row.
type Result struct {
	// Row is the row that was processed.
	Row Row

	// Success reports whether the drawing was duplicated.
	Success bool

	// Attempts is the number of open attempts made, 0 when the row failed
	// before the application was touched.
	Attempts int

	// Err is the reason the row failed. Nil on success.
	Err error

	// Duration is the wall time spent on the row.
	Duration time.Duration
}

// =============================================================================
// TABLE
// =============================================================================

// Table is a spreadsheet read into memory: the header row and the non-blank
// data rows below it. Both the XLSX and the CSV parser produce a Table so the
// column mapping only has to be written once.
type Table struct {
	// SourceFile is the path the table was read from.
	SourceFile string

	// Headers contains the trimmed header cells, in column order.
	Headers []string

	// Records contains the data rows in sheet order.
	Records []Record
}

// Record is one data row of a Table.
type Record struct {
	// SheetRow is the 1-based row number in the source file.
	SheetRow int

	// Cells holds the raw cell values. It may be shorter than Headers when
	// trailing cells are empty.
	Cells []string
}

// Cell returns the trimmed value of column index, or "" when the record is
// shorter than that.
func (r Record) Cell(index int) string {
	if index < 0 || index >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[index])
}
