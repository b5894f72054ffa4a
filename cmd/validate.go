// =============================================================================
// DWG Batch Duplicator - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It loads the drawing list and
// checks every row without starting AutoCAD, so a list can be fixed before
// a long run.
//
// COMMAND USAGE:
//   dwgdup validate [input-file] [--input FILE] [--log FILE]
//
// EXIT STATUS:
//   Non-zero when the list cannot be loaded or any row has an error.
//   Warnings alone do not fail validation.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/loader"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/validation"
	"github.com/spf13/cobra"
)

// validationLog is where validate writes its findings (--log).
var validationLog string

var validateCmd = &cobra.Command{
	Use:   "validate [input-file]",
	Short: "Check the drawing list without opening AutoCAD",
	Long: `The validate command loads the drawing list with the current configuration
and reports rows that would fail: missing source drawings, empty cells,
drawing numbers that are not valid file names, and rows that would write the
same target file.`,

	Args: cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&inputFile, "input", "", "Drawing list to check (.xlsx, .xlsm or .csv)")
	validateCmd.Flags().StringVar(&validationLog, "log", "", "Also write the findings to this file")
}

func runValidate(args []string, out io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	rows, err := loader.Load(cfg.InputFile, loader.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("error reading drawing list: %w", err)
	}

	result := validation.NewValidator().ValidateAll(rows)

	fmt.Fprintf(out, "Checked %d row(s) in %s\n", result.RowsValidated, cfg.InputFile)
	fmt.Fprint(out, validation.FormatErrors(result.Errors))
	if len(result.Errors) == 0 {
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Errors: %d  Warnings: %d\n", result.ErrorCount, result.WarningCount)

	if validationLog != "" {
		if err := validation.WriteErrorLog(result.Errors, validationLog); err != nil {
			return err
		}
		fmt.Fprintf(out, "Findings written to %s\n", validationLog)
	}

	if !result.IsValid {
		return fmt.Errorf("validation failed: %d row(s) have errors", result.FailingRows)
	}
	return nil
}
