// =============================================================================
// DWG Batch Duplicator - Validation Engine
// =============================================================================
//
// This module checks the loaded rows before any drawing is opened. It finds
// the problems that would make a row fail (or silently do the wrong thing)
// so they can be shown up front, including:
//   - Empty source or drawing number cells
//   - Drawing numbers that cannot be used as file names
//   - Source drawings that do not exist
//   - Two rows writing the same target file
//   - Targets that already exist and will be overwritten
//
// VALIDATION STRATEGY:
//   Validation is performed at two levels:
//   1. Row-level: each row is checked on its own
//   2. Batch-level: rows are checked against each other (duplicate targets)
//
// ERROR HANDLING:
//   - Errors are collected, not returned one at a time
//   - Each error carries the row, the sheet row, the field and the value
//   - Severity "error" means the row will fail when processed
//   - Severity "warning" means the row will run but deserves a look
//
//   Validation never stops a run by itself. The process command prints the
//   result and carries on; the validate command exits non-zero on errors.
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/types"
	"github.com/ginjaninja78/dwg-batch-duplicator/pkg/utils"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Field names used in errors. They match the default column headers.
const (
	FieldSource        = "Source"
	FieldDrawingNumber = "Drawing Number"
)

// Rule names.
const (
	RuleRequired  = "required"
	RuleFileName  = "file-name"
	RuleExists    = "exists"
	RuleExtension = "extension"
	RuleSameFile  = "same-file"
	RuleUnique    = "unique"
	RuleOverwrite = "overwrite"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation error.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Field is the column the problem was found in.
	Field string

	// Value is the offending cell value.
	Value string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string

	// RowNumber is the 1-based data row.
	RowNumber int

	// SheetRow is the row number in the spreadsheet, for finding the cell.
	SheetRow int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Row %d (sheet row %d), Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.RowNumber,
		e.SheetRow,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no errors (warnings allowed).
	IsValid bool

	// Errors contains all validation errors, including warnings, in row order.
	Errors []*ValidationError

	// ErrorCount is the number of errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// RowsValidated is the number of rows checked.
	RowsValidated int

	// FailingRows is the number of distinct rows with at least one error.
	FailingRows int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// CheckSourceExists reports rows whose source file is missing.
	// Default: true
	CheckSourceExists bool

	// CheckOverwrite warns about targets that already exist.
	// Default: true
	CheckOverwrite bool

	// SourceExtension is the expected source extension, without the dot.
	// A different extension is a warning. Empty disables the check.
	SourceExtension string

	// TreatWarningsAsErrors makes IsValid false when there are warnings.
	TreatWarningsAsErrors bool
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		CheckSourceExists: true,
		CheckOverwrite:    true,
		SourceExtension:   "dwg",
	}
}

// Validator checks rows before processing.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with the default options.
func NewValidator() *Validator {
	return &Validator{options: DefaultValidationOptions()}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	options.SourceExtension = strings.TrimPrefix(options.SourceExtension, ".")
	return &Validator{options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate checks rows with the default options and returns every problem.
func Validate(rows []types.Row) []*ValidationError {
	return NewValidator().ValidateAll(rows).Errors
}

// ValidateAll checks every row and then the batch as a whole.
func (v *Validator) ValidateAll(rows []types.Row) *ValidationResult {
	result := &ValidationResult{
		IsValid:       true,
		Errors:        make([]*ValidationError, 0),
		RowsValidated: len(rows),
	}

	perRow := make(map[int][]*ValidationError, len(rows))
	for _, row := range rows {
		perRow[row.Index] = v.ValidateRow(row)
	}
	for _, err := range v.validateBatch(rows) {
		perRow[err.RowNumber] = append(perRow[err.RowNumber], err)
	}

	for _, row := range rows {
		failing := false
		for _, err := range perRow[row.Index] {
			result.Errors = append(result.Errors, err)
			if err.Severity == SeverityError {
				result.ErrorCount++
				result.IsValid = false
				failing = true
			} else {
				result.WarningCount++
				if v.options.TreatWarningsAsErrors {
					result.IsValid = false
				}
			}
		}
		if failing {
			result.FailingRows++
		}
	}

	return result
}

// ValidateRow checks a single row on its own.
func (v *Validator) ValidateRow(row types.Row) []*ValidationError {
	var errors []*ValidationError

	add := func(severity, field, value, rule, message string) {
		errors = append(errors, &ValidationError{
			Severity:  severity,
			Field:     field,
			Value:     value,
			Rule:      rule,
			Message:   message,
			RowNumber: row.Index,
			SheetRow:  row.SheetRow,
		})
	}

	// Source
	switch {
	case strings.TrimSpace(row.SourcePath) == "":
		add(SeverityError, FieldSource, row.SourcePath, RuleRequired, "source path is empty")
	case v.options.CheckSourceExists && !utils.FileExists(row.SourcePath):
		add(SeverityError, FieldSource, row.SourcePath, RuleExists, "source file not found")
	}
	if ext := v.options.SourceExtension; ext != "" && strings.TrimSpace(row.SourcePath) != "" {
		got := strings.TrimPrefix(filepath.Ext(row.SourcePath), ".")
		if !strings.EqualFold(got, ext) {
			add(SeverityWarning, FieldSource, row.SourcePath, RuleExtension,
				fmt.Sprintf("source does not have a .%s extension", ext))
		}
	}

	// Drawing number
	if strings.TrimSpace(row.DrawingNumber) == "" {
		add(SeverityError, FieldDrawingNumber, row.DrawingNumber, RuleRequired, "drawing number is empty")
		return errors
	}
	if err := utils.CheckDrawingNumber(row.DrawingNumber); err != nil {
		add(SeverityError, FieldDrawingNumber, row.DrawingNumber, RuleFileName, err.Error())
		return errors
	}
	if row.TargetPath == "" {
		add(SeverityError, FieldDrawingNumber, row.DrawingNumber, RuleFileName, "no target path could be derived")
		return errors
	}

	if utils.SamePath(row.SourcePath, row.TargetPath) {
		add(SeverityError, FieldDrawingNumber, row.DrawingNumber, RuleSameFile,
			"target is the source file itself")
		return errors
	}
	if v.options.CheckOverwrite && utils.FileExists(row.TargetPath) {
		add(SeverityWarning, FieldDrawingNumber, row.DrawingNumber, RuleOverwrite,
			fmt.Sprintf("%s already exists and will be overwritten", row.TargetPath))
	}

	return errors
}

// validateBatch reports rows that write the same target as an earlier row.
func (v *Validator) validateBatch(rows []types.Row) []*ValidationError {
	var errors []*ValidationError

	first := make(map[string]types.Row, len(rows))
	for _, row := range rows {
		if row.TargetPath == "" {
			continue
		}
		key := utils.PathKey(row.TargetPath)
		prev, seen := first[key]
		if !seen {
			first[key] = row
			continue
		}
		errors = append(errors, &ValidationError{
			Severity:  SeverityWarning,
			Field:     FieldDrawingNumber,
			Value:     row.DrawingNumber,
			Rule:      RuleUnique,
			Message:   fmt.Sprintf("same target as row %d; this row overwrites it", prev.Index),
			RowNumber: row.Index,
			SheetRow:  row.SheetRow,
		})
	}

	return errors
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
//
// PARAMETERS:
//   - errors: The validation errors to format.
//
// RETURNS:
//   - A formatted string containing all errors.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d problem(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation errors to a log file.
//
// PARAMETERS:
//   - errors: The validation errors to write.
//   - filePath: The path to the output file.
//
// RETURNS:
//   - An error if writing fails.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create validation log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "DWG Batch Duplicator - Validation Log\nGenerated: %s\n\n",
		time.Now().Format("2006-01-02 15:04:05"))
	writer.WriteString(FormatErrors(errors))

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush validation log: %w", err)
	}
	return nil
}
