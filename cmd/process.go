// =============================================================================
// DWG Batch Duplicator - Process Command
// =============================================================================
//
// This file defines the 'process' command, which is the main command for
// duplicating drawings. It orchestrates the whole run.
//
// COMMAND USAGE:
//   dwgdup process [input-file] [flags]
//
// FLAGS:
//   --input       : Drawing list to process (overrides input_file)
//   --output      : Output folder (overrides output_dir)
//   --dry-run     : Load and validate the list, print the plan, open nothing
//   --no-pause    : Do not wait for Enter before exiting
//
// PROCESSING PIPELINE:
//   1. Load configuration and set up logging
//   2. Load the drawing list (any failure here ends the run)
//   3. Validate the rows and print any problems
//   4. Connect to AutoCAD (once for the whole run)
//   5. For each row, in order: duplicate the drawing, print progress
//   6. Release AutoCAD, print the summary, write the report files
//
// =============================================================================

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/automation"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/config"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/ctxlog"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/duplicator"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/loader"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/report"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/types"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/validation"
	"github.com/ginjaninja78/dwg-batch-duplicator/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// outputDir overrides output_dir from the configuration.
var outputDir string

// dryRun prints the plan without opening AutoCAD.
var dryRun bool

// noPause skips the "Press Enter to exit" prompt.
var noPause bool

// newConnector returns the connector used to reach AutoCAD. Tests replace it.
var newConnector = func(cfg *config.MainConfig, logger *slog.Logger) automation.Connector {
	return automation.NewOLEConnector(cfg.ProgID, logger)
}

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process [input-file]",
	Short: "Duplicate every drawing in the drawing list",
	Long: `The process command reads the drawing list and, for each row, opens the
source drawing in AutoCAD, saves it as <drawing number>.dwg in the output
folder, runs the title block update command and saves the copy again.

Rows are processed one at a time, in sheet order. A row that fails is
reported and skipped; the run always continues with the next row and ends
with a count of successful duplications.

On completion:
  - A processing summary is written to the output folder
  - An error log is written when any row failed
  - The window waits for Enter unless --no-pause is given`,

	Args: cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return runProcess(ctx, args, cmd.OutOrStdout(), cmd.ErrOrStderr(), cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&inputFile, "input", "", "Drawing list to process (.xlsx, .xlsm or .csv)")
	processCmd.Flags().StringVar(&outputDir, "output", "", "Folder for the duplicated drawings")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without opening AutoCAD")
	processCmd.Flags().BoolVar(&noPause, "no-pause", false, "Exit without waiting for Enter")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess runs a whole batch. Only configuration, list loading and
// connection failures are returned as errors; row failures are reported and
// counted.
func runProcess(ctx context.Context, args []string, out, stderr io.Writer, in io.Reader) error {
	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}

	if !noPause && cfg.ShouldPauseOnExit() {
		defer waitForEnter(out, in)
	}

	logger, closer, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	runID := utils.NewRunID()
	logger = logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	fmt.Fprintln(out, "=== DWG Batch Duplicator ===")
	fmt.Fprintf(out, "Drawing list: %s\n", cfg.InputFile)
	fmt.Fprintf(out, "Output folder: %s\n", cfg.OutputDir)

	// =========================================================================
	// STEP 2: LOAD THE DRAWING LIST
	// =========================================================================

	rows, err := loader.Load(cfg.InputFile, loader.OptionsFromConfig(cfg))
	if err != nil {
		logger.Error("failed to load drawing list", "input", cfg.InputFile, "error", err)
		return fmt.Errorf("error reading drawing list: %w", err)
	}
	logger.Info("drawing list loaded", "input", cfg.InputFile, "rows", len(rows))
	fmt.Fprintf(out, "Found %d row(s) to process\n", len(rows))

	// =========================================================================
	// STEP 3: VALIDATE
	// =========================================================================

	validationResult := validation.NewValidator().ValidateAll(rows)
	if len(validationResult.Errors) > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, validation.FormatErrors(validationResult.Errors))
		if validationResult.FailingRows > 0 {
			fmt.Fprintf(out, "%d row(s) will fail and be skipped.\n", validationResult.FailingRows)
		}
	}

	if dryRun {
		printPlan(out, rows)
		return nil
	}

	// =========================================================================
	// STEP 4: CONNECT TO AUTOCAD
	// =========================================================================

	if err := utils.NewFileManager(cfg.OutputDir, cfg.DrawingExtension).EnsureOutputDir(); err != nil {
		return err
	}

	fmt.Fprintln(out, "Connecting to AutoCAD...")
	session, err := automation.OpenSession(ctx, newConnector(cfg, logger), automation.SessionOptions{
		QuitOnClose: cfg.CloseAppWhenDone,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("could not reach AutoCAD", "error", err)
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("error while releasing AutoCAD", "error", err)
		}
	}()

	// =========================================================================
	// STEP 5: DUPLICATE
	// =========================================================================

	reporter := report.New(out)
	reporter.Start(len(rows))

	dup := duplicator.New(session.App(), duplicator.OptionsFromConfig(cfg), reporter)
	_, runErr := dup.Run(ctx, rows)

	// =========================================================================
	// STEP 6: SUMMARY AND REPORTS
	// =========================================================================

	reporter.PrintSummary()
	summary := reporter.Summary()
	logger.Info("run complete",
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"busy_retries", summary.Retries)

	if cfg.ReportsEnabled() {
		summaryPath, errorPath, err := reporter.WriteLogs(cfg.OutputDir, runID, cfg.InputFile)
		if err != nil {
			logger.Warn("failed to write report files", "error", err)
			fmt.Fprintf(out, "Could not write report files: %v\n", err)
		} else {
			fmt.Fprintf(out, "Summary written to %s\n", summaryPath)
			if errorPath != "" {
				fmt.Fprintf(out, "Errors have been logged to %s\n", errorPath)
			}
		}
	}

	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(out, "Run interrupted.")
		return fmt.Errorf("run interrupted after %d of %d rows", summary.Successful+summary.Failed, summary.Total)
	}
	return runErr
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// printPlan lists what a real run would do.
func printPlan(out io.Writer, rows []types.Row) {
	fmt.Fprintln(out, "\nDry run, nothing will be opened or written:")
	for _, row := range rows {
		target := row.TargetPath
		if target == "" {
			target = "(invalid drawing number)"
		}
		fmt.Fprintf(out, "  Row %d: %s -> %s\n", row.Index, row.SourcePath, target)
	}
}

// waitForEnter keeps a console window opened from Explorer on screen.
func waitForEnter(out io.Writer, in io.Reader) {
	fmt.Fprintln(out, "Press Enter to exit.")
	bufio.NewReader(in).ReadString('\n')
}
