// =============================================================================
// DWG Batch Duplicator - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'process', 'validate') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (dwgdup)
//   ├── processCmd (dwgdup process)
//   ├── validateCmd (dwgdup validate)
//   └── versionCmd (dwgdup version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration and applying flag overrides
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/config"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/logging"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging to stderr when set to true.
var verbose bool

// inputFile overrides input_file from the configuration (--input).
var inputFile string

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "dwgdup",

	Short: "DWG Batch Duplicator - Copy drawings under new numbers through AutoCAD",

	Long: `DWG Batch Duplicator reads a spreadsheet that maps source drawings to new
drawing numbers. For every row it opens the source drawing in AutoCAD, saves it
as <drawing number>.dwg in the output folder, runs the title block update
command on the copy and saves it again.

Key Features:
  - Excel (.xlsx, .xlsm) and CSV drawing lists
  - Attaches to a running AutoCAD or starts one
  - Retries with backoff while AutoCAD is busy
  - Per-row progress, a final summary and error logs

Example Usage:
  dwgdup process                        # Process the list named in config.yaml
  dwgdup process --input list.xlsx      # Process a specific list
  dwgdup process --dry-run              # Show what would be done
  dwgdup validate --input list.xlsx     # Check the list without opening AutoCAD`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// --config flag: Allows the user to specify a custom configuration file.
	// A missing file is not an error; defaults are used.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	// --verbose flag: Enables debug logging, mirrored to stderr.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig loads the configuration file and applies command-line overrides.
func loadConfig(args []string) (*config.MainConfig, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}

	switch {
	case len(args) > 0:
		cfg.InputFile = args[0]
	case inputFile != "":
		cfg.InputFile = inputFile
	}

	if cfg.InputFile == "" {
		return nil, fmt.Errorf("no drawing list given: set input_file in %s or pass --input", cfgFile)
	}
	return cfg, nil
}

// newLogger builds the run logger from the configuration.
func newLogger(cfg *config.MainConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Options{
		File:    cfg.LogFile,
		Level:   cfg.LogLevel,
		Verbose: verbose,
		Stderr:  stderr,
	})
	if err != nil {
		return nil, closer, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, closer, nil
}
