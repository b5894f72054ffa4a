// =============================================================================
// DWG Batch Duplicator - Spreadsheet Loader
// =============================================================================
//
// This module turns the input spreadsheet into the ordered list of rows the
// duplicator works through. It picks the parser by file extension, finds the
// source and drawing-number columns by header name, and derives each row's
// target path.
//
// FAILURES:
//   Any error returned from Load is fatal for the run: no drawing is touched
//   when the list cannot be read. Problems with individual rows (an empty
//   cell, a drawing number that is not a valid file name) are not load
//   errors; they surface per row in validation and in the duplicator.
//
// =============================================================================

package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/config"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/csvparser"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/types"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/xlsxparser"
	"github.com/ginjaninja78/dwg-batch-duplicator/pkg/utils"
)

var (
	// ErrMissingColumn is returned when a required header is not present.
	ErrMissingColumn = errors.New("required column not found")

	// ErrNoRows is returned when the sheet has a header but no data rows.
	ErrNoRows = errors.New("spreadsheet has no data rows")

	// ErrUnsupportedFormat is returned for extensions no parser handles.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls how the spreadsheet is read and mapped onto rows.
type Options struct {
	// Sheet is the worksheet to read from a workbook. Empty means first.
	Sheet string

	// SourceColumn is the header of the source drawing path column.
	SourceColumn string

	// DrawingNumberColumn is the header of the new drawing number column.
	DrawingNumberColumn string

	// CSV holds the settings used when the input is a CSV file.
	CSV config.CSVSettings

	// Files derives target paths. Required.
	Files *utils.FileManager
}

// OptionsFromConfig builds loader options from the run configuration.
func OptionsFromConfig(cfg *config.MainConfig) Options {
	return Options{
		Sheet:               cfg.Sheet,
		SourceColumn:        cfg.SourceColumn,
		DrawingNumberColumn: cfg.DrawingNumberColumn,
		CSV:                 cfg.CSV,
		Files:               utils.NewFileManager(cfg.OutputDir, cfg.DrawingExtension),
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the spreadsheet at path and returns its rows in sheet order.
func Load(path string, opts Options) ([]types.Row, error) {
	if path == "" {
		return nil, fmt.Errorf("no input file configured")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot open input file: %w", err)
	}

	table, err := parse(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	return BuildRows(table, opts)
}

// parse picks the parser for the file extension.
func parse(path string, opts Options) (*types.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return xlsxparser.Parse(path, xlsxparser.Options{Sheet: opts.Sheet})
	case ".csv", ".txt":
		return csvparser.Parse(path, opts.CSV)
	default:
		return nil, fmt.Errorf("%w: %q (use .xlsx, .xlsm or .csv)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// BuildRows maps a parsed table onto rows using the configured headers.
func BuildRows(table *types.Table, opts Options) ([]types.Row, error) {
	sourceIndex, err := findColumn(table.Headers, opts.SourceColumn)
	if err != nil {
		return nil, err
	}
	numberIndex, err := findColumn(table.Headers, opts.DrawingNumberColumn)
	if err != nil {
		return nil, err
	}

	if len(table.Records) == 0 {
		return nil, ErrNoRows
	}

	rows := make([]types.Row, 0, len(table.Records))
	for i, record := range table.Records {
		row := types.Row{
			Index:         i + 1,
			SheetRow:      record.SheetRow,
			SourcePath:    record.Cell(sourceIndex),
			DrawingNumber: record.Cell(numberIndex),
		}

		// An unusable drawing number leaves TargetPath empty; the row then
		// fails on its own without stopping the batch.
		if opts.Files != nil {
			if target, err := opts.Files.TargetPath(row.DrawingNumber); err == nil {
				row.TargetPath = target
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// findColumn returns the index of the header matching name, ignoring case and
// surrounding whitespace.
func findColumn(headers []string, name string) (int, error) {
	want := strings.TrimSpace(name)
	for i, header := range headers {
		if strings.EqualFold(strings.TrimSpace(header), want) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q (headers: %s)", ErrMissingColumn, name, strings.Join(headers, ", "))
}
