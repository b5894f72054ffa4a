package report_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/automation/automationtest"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/duplicator"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/report"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestReporter_ThreeRowsWithMissingSource(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	var rows []types.Row
	for i := 1; i <= 3; i++ {
		src := filepath.Join(dir, fmt.Sprintf("A-%d00.dwg", i))
		if i != 2 {
			require.NoError(t, os.WriteFile(src, []byte("drawing"), 0644))
		}
		number := fmt.Sprintf("B-%d00", i)
		rows = append(rows, types.Row{
			Index:         i,
			SheetRow:      i + 1,
			SourcePath:    src,
			DrawingNumber: number,
			TargetPath:    filepath.Join(out, number+".dwg"),
		})
	}

	fake := automationtest.NewFake()
	app, err := fake.Connect(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	reporter := report.New(&buf)
	reporter.Start(len(rows))

	d := duplicator.New(app, duplicator.Options{
		OutputDir:  out,
		Command:    "Updatetitleblock",
		MaxRetries: 3,
		Sleep:      noSleep,
	}, reporter)

	_, err = d.Run(context.Background(), rows)
	require.NoError(t, err)
	reporter.PrintSummary()

	summary := reporter.Summary()
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	output := buf.String()
	assert.Contains(t, output, "Process complete. Successfully duplicated 2 of 3 drawings.")
	assert.Equal(t, 1, strings.Count(output, "source file not found"))
	assert.Contains(t, output, "Error on row 2: check: source file not found: "+rows[1].SourcePath)
	assert.NotContains(t, output, "Error on row 1")
	assert.NotContains(t, output, "Error on row 3")
	assert.Equal(t, 2, strings.Count(output, "Success: Drawing duplicated."))
}

func TestReporter_ProgressLines(t *testing.T) {
	var buf bytes.Buffer
	r := report.New(&buf)

	row := types.Row{Index: 4, SourcePath: "a.dwg", DrawingNumber: "B-1", TargetPath: "out/B-1.dwg"}
	r.RowStarted(row)
	r.AttemptStarted(row, 1)
	r.Backoff(row, 1, 2*time.Second, automationtest.RetryLater)
	r.AttemptStarted(row, 2)
	r.RowFinished(types.Result{Row: row, Success: true, Attempts: 2})

	assert.Equal(t, "\nProcessing row 4:\n"+
		"Source: a.dwg\n"+
		"New DWG: out/B-1.dwg\n"+
		"Attempt 1: Opening DWG: a.dwg\n"+
		"Attempt 1 failed: Application busy, retrying in 2s\n"+
		"Attempt 2: Opening DWG: a.dwg\n"+
		"Success: Drawing duplicated.\n", buf.String())
	assert.Equal(t, 1, r.Summary().Retries)
}

func TestReporter_RetriesExhausted(t *testing.T) {
	var buf bytes.Buffer
	r := report.New(&buf)

	row := types.Row{Index: 1, SourcePath: "a.dwg", DrawingNumber: "B-1"}
	r.RowStarted(row)
	for attempt := 1; attempt <= 3; attempt++ {
		r.AttemptStarted(row, attempt)
		r.Backoff(row, attempt, time.Duration(attempt)*time.Second, automationtest.RetryLater)
	}
	err := fmt.Errorf("%w after 3 attempts", duplicator.ErrRetriesExhausted)
	r.RowFinished(types.Result{Row: row, Attempts: 3, Err: err})

	assert.Contains(t, buf.String(), `New DWG: (no valid path for "B-1")`)
	assert.Contains(t, buf.String(), "Failed to duplicate drawing after retries.\n")
	assert.Contains(t, buf.String(), "Error on row 1: application still busy after 3 attempts\n")
	assert.Equal(t, 3, r.Summary().Retries)
}

func TestReporter_TotalCoversUnreachedRows(t *testing.T) {
	var buf bytes.Buffer
	r := report.New(&buf)
	r.Start(5)
	r.RowFinished(types.Result{Row: types.Row{Index: 1}, Success: true, Attempts: 1})
	r.PrintSummary()

	assert.Contains(t, buf.String(), "Successfully duplicated 1 of 5 drawings.")
}

func TestReporter_WriteLogs(t *testing.T) {
	dir := t.TempDir()
	r := report.New(&bytes.Buffer{})
	r.Start(2)

	r.RowFinished(types.Result{
		Row:      types.Row{Index: 1, SourcePath: "a.dwg", TargetPath: "out/B-1.dwg"},
		Success:  true,
		Attempts: 1,
		Duration: 1500 * time.Millisecond,
	})
	r.RowFinished(types.Result{
		Row:      types.Row{Index: 2, SheetRow: 3, SourcePath: "b.dwg", DrawingNumber: "B-2"},
		Attempts: 1,
		Err:      &duplicator.RowError{Stage: duplicator.StageSaveAs, Err: errors.New("disk full")},
	})

	summaryPath, errorPath, err := r.WriteLogs(dir, "run-1", "list.xlsx")
	require.NoError(t, err)
	require.NotEmpty(t, errorPath)

	summary, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Run ID:         run-1")
	assert.Contains(t, string(summary), "Input File:     list.xlsx")
	assert.Contains(t, string(summary), "Successful:     1")
	assert.Contains(t, string(summary), "Target:       out/B-1.dwg")

	errLog, err := os.ReadFile(errorPath)
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "Stage:          save-as")
	assert.Contains(t, string(errLog), "Message:        save-as: disk full")
	assert.Contains(t, string(errLog), "Sheet Row:      3")
}

func TestReporter_WriteLogsWithoutFailures(t *testing.T) {
	dir := t.TempDir()
	r := report.New(&bytes.Buffer{})
	r.RowFinished(types.Result{Row: types.Row{Index: 1}, Success: true, Attempts: 1})

	summaryPath, errorPath, err := r.WriteLogs(dir, "run-2", "list.csv")
	require.NoError(t, err)
	assert.FileExists(t, summaryPath)
	assert.Empty(t, errorPath)
}
