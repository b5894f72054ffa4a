// =============================================================================
// DWG Batch Duplicator - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the duplicator:
//   - Output directory management
//   - Target path derivation from drawing numbers
//   - Read-only attribute clearing on saved drawings
//   - Summary and error log generation
//   - Report file naming
//
// PATH SAFETY:
//   Every target path is <output dir>/<drawing number>.<extension>. A drawing
//   number that would place the file anywhere else (path separators, "..",
//   characters Windows does not allow in file names, reserved device names)
//   is rejected with ErrUnsafeDrawingNumber.
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnsafeDrawingNumber is returned when a drawing number cannot be used as
// a file name inside the output directory.
var ErrUnsafeDrawingNumber = errors.New("drawing number is not a valid file name")

// invalidNameChars are the characters Windows rejects in file names.
const invalidNameChars = `<>:"/\|?*`

// reservedNames are Windows device names that cannot be used as file names,
// whatever the extension.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the duplicator.
type FileManager struct {
	// OutputDir is the directory where duplicated drawings are placed.
	OutputDir string

	// Extension is the drawing file extension, without the dot.
	Extension string
}

// NewFileManager creates a new FileManager for the given output directory.
func NewFileManager(outputDir, extension string) *FileManager {
	return &FileManager{
		OutputDir: outputDir,
		Extension: strings.TrimPrefix(extension, "."),
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureOutputDir creates the output directory if it doesn't exist.
func (fm *FileManager) EnsureOutputDir() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// =============================================================================
// TARGET PATHS
// =============================================================================

// TargetPath returns <OutputDir>/<drawingNumber>.<Extension>.
//
// RETURNS:
//   - The target path.
//   - ErrUnsafeDrawingNumber (wrapped) if the number cannot be a file name.
func (fm *FileManager) TargetPath(drawingNumber string) (string, error) {
	if err := CheckDrawingNumber(drawingNumber); err != nil {
		return "", err
	}

	name := strings.TrimSpace(drawingNumber)
	if fm.Extension != "" {
		name += "." + fm.Extension
	}
	target := filepath.Join(fm.OutputDir, name)

	if !fm.Contains(target) {
		return "", fmt.Errorf("%w: %q resolves outside %s", ErrUnsafeDrawingNumber, drawingNumber, fm.OutputDir)
	}
	return target, nil
}

// Contains reports whether path is a direct or nested child of OutputDir.
func (fm *FileManager) Contains(path string) bool {
	return IsInside(fm.OutputDir, path)
}

// CheckDrawingNumber validates a drawing number for use as a file name.
func CheckDrawingNumber(drawingNumber string) error {
	name := strings.TrimSpace(drawingNumber)

	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrUnsafeDrawingNumber)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrUnsafeDrawingNumber, drawingNumber)
	case strings.ContainsAny(name, invalidNameChars):
		return fmt.Errorf("%w: %q contains one of %s", ErrUnsafeDrawingNumber, drawingNumber, invalidNameChars)
	case strings.HasSuffix(name, "."):
		return fmt.Errorf("%w: %q ends with a dot", ErrUnsafeDrawingNumber, drawingNumber)
	}

	for _, r := range name {
		if r < 0x20 {
			return fmt.Errorf("%w: %q contains control characters", ErrUnsafeDrawingNumber, drawingNumber)
		}
	}

	base := strings.ToUpper(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if reservedNames[base] {
		return fmt.Errorf("%w: %q is a reserved device name", ErrUnsafeDrawingNumber, drawingNumber)
	}

	return nil
}

// IsInside reports whether path lies inside dir once both are cleaned and
// made absolute.
func IsInside(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || filepath.IsAbs(rel) {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// PathKey normalises a path for comparison: absolute, cleaned and lower
// case. Drawings are written on Windows, where file names are case
// insensitive.
func PathKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return strings.ToLower(filepath.Clean(path))
}

// SamePath reports whether a and b name the same file. Blank paths never
// match.
func SamePath(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return PathKey(a) == PathKey(b)
}

// =============================================================================
// FILE ATTRIBUTES
// =============================================================================

// ClearReadOnly makes a file writable by its owner. On Windows this clears
// the read-only attribute, which the CAD application sets on drawings copied
// from locked sources.
func ClearReadOnly(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	mode := info.Mode()
	if mode.Perm()&0200 != 0 {
		return nil
	}

	if err := os.Chmod(path, mode.Perm()|0200); err != nil {
		return fmt.Errorf("failed to clear read-only on %s: %w", path, err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// =============================================================================
// REPORT FILE NAMING
// =============================================================================

// NewRunID returns a fresh identifier for a batch run.
func NewRunID() string {
	return uuid.New().String()
}

// GenerateReportFileName generates a report file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {run}       - The run ID (params["run"])
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//   - params: Additional placeholder values.
//
// EXAMPLE:
//   format: "summary_{timestamp}_{run}.txt"
//   output: "summary_20240115_143022_a1b2c3d4-e5f6-7890-abcd-ef1234567890.txt"
func GenerateReportFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".txt") {
		result += ".txt"
	}
	return result
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single failed row.
type ErrorLogEntry struct {
	Timestamp     time.Time
	RowNumber     int
	SheetRow      int
	SourcePath    string
	DrawingNumber string
	Stage         string
	ErrorMessage  string
}

// WriteErrorLog writes error entries to a log file in outputDir.
//
// RETURNS:
//   - The path to the error log file, or "" when there were no entries.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir, runID string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(outputDir, GenerateReportFileName("error_log_{timestamp}_{run}", map[string]string{"run": runID}))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "DWG Batch Duplicator - Error Log\n"+
		"Run ID: %s\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		runID,
		time.Now().Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Timestamp:      %s\n"+
			"  Row:            %d\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.RowNumber)

		if entry.SheetRow > 0 {
			fmt.Fprintf(writer, "  Sheet Row:      %d\n", entry.SheetRow)
		}
		if entry.SourcePath != "" {
			fmt.Fprintf(writer, "  Source:         %s\n", entry.SourcePath)
		}
		if entry.DrawingNumber != "" {
			fmt.Fprintf(writer, "  Drawing Number: %s\n", entry.DrawingNumber)
		}
		if entry.Stage != "" {
			fmt.Fprintf(writer, "  Stage:          %s\n", entry.Stage)
		}
		fmt.Fprintf(writer, "  Message:        %s\n\n", entry.ErrorMessage)
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a batch run.
type ProcessingSummary struct {
	RunID          string
	InputFile      string
	StartTime      time.Time
	EndTime        time.Time
	TotalRows      int
	Successful     int
	Failed         int
	Retries        int
	DuplicatedList []DuplicatedInfo
}

// DuplicatedInfo describes one drawing that was duplicated.
type DuplicatedInfo struct {
	SourcePath  string
	TargetPath  string
	Attempts    int
	ProcessTime time.Duration
}

// WriteSummaryLog writes a processing summary to a file in outputDir.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir, GenerateReportFileName("processing_summary_{timestamp}_{run}", map[string]string{"run": summary.RunID}))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "DWG Batch Duplicator - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Input File:     %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Rows:     %d\n"+
		"  Successful:     %d\n"+
		"  Failed:         %d\n"+
		"  Busy Retries:   %d\n\n",
		summary.RunID,
		summary.InputFile,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.Round(time.Millisecond).String(),
		summary.TotalRows,
		summary.Successful,
		summary.Failed,
		summary.Retries)

	if len(summary.DuplicatedList) > 0 {
		writer.WriteString("Duplicated Drawings:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, d := range summary.DuplicatedList {
			fmt.Fprintf(writer, "  Source:       %s\n", d.SourcePath)
			fmt.Fprintf(writer, "  Target:       %s\n", d.TargetPath)
			fmt.Fprintf(writer, "  Attempts:     %d\n", d.Attempts)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", d.ProcessTime.Round(time.Millisecond).String())
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}
