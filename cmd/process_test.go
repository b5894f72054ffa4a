package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/automation"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/automation/automationtest"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testRun struct {
	dir  string
	out  string
	list string
	fake *automationtest.Fake
}

// setupRun writes a config file and, when rows is not nil, the drawing
// list. It resets the command flags (with --no-pause set) and points the
// connector at a fake application.
func setupRun(t *testing.T, extraConfig string, rows [][]interface{}) *testRun {
	t.Helper()

	dir := t.TempDir()
	run := &testRun{
		dir:  dir,
		out:  filepath.Join(dir, "out"),
		list: filepath.Join(dir, "drawings.xlsx"),
		fake: automationtest.NewFake(),
	}

	if rows != nil {
		writeList(t, run.list, rows)
	}

	body := fmt.Sprintf(`input_file: '%s'
output_dir: '%s'
log_file: '%s'
max_retries: 2
initial_retry_delay: 1ms
inter_row_delay: 1ms
post_success_delay: 1ms
settle_delay: 1ms
%s`, run.list, run.out, filepath.Join(dir, "logs", "dwgdup.log"), extraConfig)
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))

	prevConnector := newConnector
	t.Cleanup(func() {
		newConnector = prevConnector
		cfgFile, inputFile, outputDir, validationLog = "config.yaml", "", "", ""
		verbose, dryRun, noPause = false, false, false
	})

	cfgFile = configPath
	inputFile, outputDir, validationLog = "", "", ""
	verbose, dryRun, noPause = false, false, true
	newConnector = func(*config.MainConfig, *slog.Logger) automation.Connector { return run.fake }

	return run
}

func (r *testRun) source(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(r.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("drawing"), 0644))
	return path
}

func TestRunProcess_ReportsSuccessesOutOfTotal(t *testing.T) {
	run := setupRun(t, "", nil)
	writeList(t, run.list, [][]interface{}{
		{"Source", "Drawing Number"},
		{run.source(t, "A-1.dwg"), "B-1"},
		{filepath.Join(run.dir, "missing.dwg"), "B-2"},
		{run.source(t, "A-3.dwg"), "B-3"},
	})

	var out, stderr bytes.Buffer
	err := runProcess(context.Background(), nil, &out, &stderr, strings.NewReader(""))
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "Found 3 row(s) to process")
	assert.Contains(t, output, "Process complete. Successfully duplicated 2 of 3 drawings.")
	assert.Contains(t, output, "Error on row 2: check: source file not found")
	assert.NotContains(t, output, "Error on row 1")
	assert.NotContains(t, output, "Error on row 3")
	assert.Contains(t, output, "Summary written to")
	assert.Contains(t, output, "Errors have been logged to")
	assert.NotContains(t, output, "Press Enter")

	assert.FileExists(t, filepath.Join(run.out, "B-1.dwg"))
	assert.NoFileExists(t, filepath.Join(run.out, "B-2.dwg"))
	assert.FileExists(t, filepath.Join(run.out, "B-3.dwg"))

	assert.Equal(t, 1, run.fake.Connects())
	assert.Equal(t, 1, run.fake.Releases())
	assert.Zero(t, run.fake.Quits())
	assert.Zero(t, run.fake.OpenDocuments())
	assert.FileExists(t, filepath.Join(run.dir, "logs", "dwgdup.log"))
}

func TestRunProcess_ReleasesSessionOnceWhenEveryRowFails(t *testing.T) {
	run := setupRun(t, "", nil)
	busy := run.source(t, "A-2.dwg")
	run.fake.OpenErrFor[busy] = automationtest.RetryLater
	writeList(t, run.list, [][]interface{}{
		{"Source", "Drawing Number"},
		{filepath.Join(run.dir, "missing.dwg"), "B-1"},
		{busy, "B-2"},
	})

	var out bytes.Buffer
	require.NoError(t, runProcess(context.Background(), nil, &out, &bytes.Buffer{}, strings.NewReader("")))

	output := out.String()
	assert.Contains(t, output, "Error on row 1: check: source file not found")
	assert.Contains(t, output, "Failed to duplicate drawing after retries.")
	assert.Contains(t, output, "Process complete. Successfully duplicated 0 of 2 drawings.")

	assert.Equal(t, 1, run.fake.Connects())
	assert.Equal(t, 1, run.fake.Releases())
	assert.Zero(t, run.fake.OpenDocuments())
	assert.NoFileExists(t, filepath.Join(run.out, "B-1.dwg"))
	assert.NoFileExists(t, filepath.Join(run.out, "B-2.dwg"))
}

func TestRunProcess_SkipsRowWhoseTargetIsItsSource(t *testing.T) {
	run := setupRun(t, "", nil)
	require.NoError(t, os.MkdirAll(run.out, 0755))
	source := filepath.Join(run.out, "B-1.dwg")
	require.NoError(t, os.WriteFile(source, []byte("original"), 0644))
	writeList(t, run.list, [][]interface{}{
		{"Source", "Drawing Number"},
		{source, "B-1"},
	})

	var out bytes.Buffer
	require.NoError(t, runProcess(context.Background(), nil, &out, &bytes.Buffer{}, strings.NewReader("")))

	output := out.String()
	assert.Contains(t, output, "1 row(s) will fail and be skipped.")
	assert.Contains(t, output, "target is the source file itself")
	assert.NotContains(t, output, "Success: Drawing duplicated.")
	assert.Contains(t, output, "Process complete. Successfully duplicated 0 of 1 drawings.")
	assert.Equal(t, []string{"connect", "visible true", "release app"}, run.fake.Calls())

	data, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestRunProcess_QuitsApplicationWhenConfigured(t *testing.T) {
	run := setupRun(t, "close_app_when_done: true\n", nil)
	writeList(t, run.list, [][]interface{}{
		{"Source", "Drawing Number"},
		{run.source(t, "A-1.dwg"), "B-1"},
	})

	var out bytes.Buffer
	require.NoError(t, runProcess(context.Background(), nil, &out, &bytes.Buffer{}, strings.NewReader("")))

	assert.Equal(t, 1, run.fake.Quits())
	assert.Equal(t, 1, run.fake.Releases())
}

func TestRunProcess_DryRunNeverConnects(t *testing.T) {
	run := setupRun(t, "", nil)
	writeList(t, run.list, [][]interface{}{
		{"Source", "Drawing Number"},
		{run.source(t, "A-1.dwg"), "B-1"},
		{run.source(t, "A-2.dwg"), "bad/number"},
	})
	dryRun = true

	var out bytes.Buffer
	require.NoError(t, runProcess(context.Background(), nil, &out, &bytes.Buffer{}, strings.NewReader("")))

	assert.Zero(t, run.fake.Connects())
	assert.Contains(t, out.String(), "Row 1: "+filepath.Join(run.dir, "A-1.dwg")+" -> "+filepath.Join(run.out, "B-1.dwg"))
	assert.Contains(t, out.String(), "Row 2: "+filepath.Join(run.dir, "A-2.dwg")+" -> (invalid drawing number)")
	assert.Contains(t, out.String(), "1 row(s) will fail and be skipped.")
	assert.NoDirExists(t, run.out)
}

func TestRunProcess_LoadFailureIsFatal(t *testing.T) {
	run := setupRun(t, "", [][]interface{}{
		{"Path", "Number"},
		{"a.dwg", "B-1"},
	})

	err := runProcess(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{}, strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required column not found")
	assert.Zero(t, run.fake.Connects())
}

func TestRunProcess_ConnectFailureIsFatal(t *testing.T) {
	run := setupRun(t, "", nil)
	writeList(t, run.list, [][]interface{}{
		{"Source", "Drawing Number"},
		{run.source(t, "A-1.dwg"), "B-1"},
	})
	run.fake.ConnectErr = automationtest.AccessDenied

	err := runProcess(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{}, strings.NewReader(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, automationtest.AccessDenied)
}

func TestRunProcess_InputArgumentOverridesConfig(t *testing.T) {
	run := setupRun(t, "", nil)
	other := filepath.Join(run.dir, "other.xlsx")
	writeList(t, other, [][]interface{}{
		{"Source", "Drawing Number"},
		{run.source(t, "A-9.dwg"), "B-9"},
	})

	var out bytes.Buffer
	require.NoError(t, runProcess(context.Background(), []string{other}, &out, &bytes.Buffer{}, strings.NewReader("")))

	assert.Contains(t, out.String(), "Drawing list: "+other)
	assert.FileExists(t, filepath.Join(run.out, "B-9.dwg"))
}

func TestRunProcess_WaitsForEnter(t *testing.T) {
	run := setupRun(t, "", nil)
	noPause = false
	writeList(t, run.list, [][]interface{}{
		{"Source", "Drawing Number"},
		{run.source(t, "A-1.dwg"), "B-1"},
	})

	var out bytes.Buffer
	require.NoError(t, runProcess(context.Background(), nil, &out, &bytes.Buffer{}, strings.NewReader("\n")))
	assert.True(t, strings.HasSuffix(out.String(), "Press Enter to exit.\n"))
}

func TestRunValidate(t *testing.T) {
	run := setupRun(t, "", nil)
	writeList(t, run.list, [][]interface{}{
		{"Source", "Drawing Number"},
		{run.source(t, "A-1.dwg"), "B-1"},
		{filepath.Join(run.dir, "missing.dwg"), "B-2"},
	})
	validationLog = filepath.Join(run.dir, "validation.txt")

	var out bytes.Buffer
	err := runValidate(nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 row(s) have errors")
	assert.Contains(t, out.String(), "Checked 2 row(s)")
	assert.Contains(t, out.String(), "source file not found")
	assert.Contains(t, out.String(), "Errors: 1  Warnings: 0")
	assert.FileExists(t, validationLog)
	assert.Zero(t, run.fake.Connects())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "DWG Batch Duplicator")
	assert.Contains(t, out.String(), "Version:    "+Version)
}

// writeList overwrites a drawing list workbook.
func writeList(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}
