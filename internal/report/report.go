// =============================================================================
// DWG Batch Duplicator - Run Reporter
// =============================================================================
//
// This module prints per-row progress while the batch runs, keeps the
// success and failure counts, and writes the summary and error log files at
// the end of the run.
//
// CONSOLE OUTPUT:
//   Processing row 2:
//   Source: C:\Drawings\A-100.dwg
//   New DWG: C:\Output\B-200.dwg
//   Attempt 1: Opening DWG: C:\Drawings\A-100.dwg
//   Attempt 1 failed: Application busy, retrying in 2s
//   Attempt 2: Opening DWG: C:\Drawings\A-100.dwg
//   Success: Drawing duplicated.
//
//   Process complete. Successfully duplicated 2 of 3 drawings.
//
// =============================================================================

package report

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/duplicator"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/types"
	"github.com/ginjaninja78/dwg-batch-duplicator/pkg/utils"
)

// Summary is the outcome of a run.
type Summary struct {
	Total      int
	Successful int
	Failed     int

	// Retries is the number of busy rejections backed off from, over all
	// rows.
	Retries int

	StartTime time.Time
	EndTime   time.Time
}

// Reporter prints progress to a writer. It implements duplicator.Observer.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer

	total   int
	summary Summary
	results []types.Result
}

var _ duplicator.Observer = (*Reporter)(nil)

// New creates a Reporter that writes to w.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w, summary: Summary{StartTime: time.Now()}}
}

// Start records the number of rows in the batch. Rows never reached (after
// cancellation) still count towards the total.
func (r *Reporter) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = total
	r.summary.StartTime = time.Now()
}

// =============================================================================
// PROGRESS
// =============================================================================

// RowStarted prints the row header.
func (r *Reporter) RowStarted(row types.Row) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := row.TargetPath
	if target == "" {
		target = fmt.Sprintf("(no valid path for %q)", row.DrawingNumber)
	}
	fmt.Fprintf(r.w, "\nProcessing row %d:\n", row.Index)
	fmt.Fprintf(r.w, "Source: %s\n", row.SourcePath)
	fmt.Fprintf(r.w, "New DWG: %s\n", target)
}

// AttemptStarted prints the open attempt.
func (r *Reporter) AttemptStarted(row types.Row, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "Attempt %d: Opening DWG: %s\n", attempt, row.SourcePath)
}

// Backoff prints the busy rejection and the wait before the next attempt.
func (r *Reporter) Backoff(row types.Row, attempt int, delay time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summary.Retries++
	fmt.Fprintf(r.w, "Attempt %d failed: Application busy, retrying in %s\n", attempt, delay)
}

// RowFinished prints the outcome of a row and counts it.
func (r *Reporter) RowFinished(result types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results = append(r.results, result)

	if result.Success {
		r.summary.Successful++
		fmt.Fprintln(r.w, "Success: Drawing duplicated.")
		return
	}

	r.summary.Failed++
	if errors.Is(result.Err, duplicator.ErrRetriesExhausted) {
		fmt.Fprintln(r.w, "Failed to duplicate drawing after retries.")
	}
	fmt.Fprintf(r.w, "Error on row %d: %v\n", result.Row.Index, result.Err)
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary returns the counts so far.
func (r *Reporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Reporter) snapshot() Summary {
	s := r.summary
	s.Total = r.total
	if seen := s.Successful + s.Failed; seen > s.Total {
		s.Total = seen
	}
	if s.EndTime.IsZero() {
		s.EndTime = time.Now()
	}
	return s
}

// Results returns the row results in the order they finished.
func (r *Reporter) Results() []types.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Result(nil), r.results...)
}

// PrintSummary prints the final count line.
func (r *Reporter) PrintSummary() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summary.EndTime = time.Now()
	s := r.snapshot()
	fmt.Fprintf(r.w, "\nProcess complete. Successfully duplicated %d of %d drawings.\n", s.Successful, s.Total)
}

// =============================================================================
// REPORT FILES
// =============================================================================

// WriteLogs writes the processing summary and, when rows failed, the error
// log into dir.
//
// RETURNS:
//   - The summary path.
//   - The error log path, or "" when nothing failed.
//   - An error if a file could not be written.
func (r *Reporter) WriteLogs(dir, runID, inputFile string) (string, string, error) {
	r.mu.Lock()
	s := r.snapshot()
	results := append([]types.Result(nil), r.results...)
	r.mu.Unlock()

	summary := utils.ProcessingSummary{
		RunID:      runID,
		InputFile:  inputFile,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		TotalRows:  s.Total,
		Successful: s.Successful,
		Failed:     s.Failed,
		Retries:    s.Retries,
	}

	var entries []utils.ErrorLogEntry
	for _, result := range results {
		if result.Success {
			summary.DuplicatedList = append(summary.DuplicatedList, utils.DuplicatedInfo{
				SourcePath:  result.Row.SourcePath,
				TargetPath:  result.Row.TargetPath,
				Attempts:    result.Attempts,
				ProcessTime: result.Duration,
			})
			continue
		}

		entry := utils.ErrorLogEntry{
			Timestamp:     s.EndTime,
			RowNumber:     result.Row.Index,
			SheetRow:      result.Row.SheetRow,
			SourcePath:    result.Row.SourcePath,
			DrawingNumber: result.Row.DrawingNumber,
			Stage:         string(duplicator.StageOf(result.Err)),
		}
		if result.Err != nil {
			entry.ErrorMessage = result.Err.Error()
		}
		entries = append(entries, entry)
	}

	summaryPath, err := utils.WriteSummaryLog(summary, dir)
	if err != nil {
		return "", "", err
	}
	errorPath, err := utils.WriteErrorLog(entries, dir, runID)
	if err != nil {
		return summaryPath, "", err
	}
	return summaryPath, errorPath, nil
}
