// =============================================================================
// DWG Batch Duplicator - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the run configuration.
// The spreadsheet path, output folder, column names, and the retry and delay
// settings all live here and can be overridden from config.yaml or from
// command-line flags.
//
// CONFIGURATION FILE (config.yaml):
//
//   input_file: ./drawings.xlsx
//   output_dir: ./output
//   source_column: Source
//   drawing_number_column: Drawing Number
//   max_retries: 3
//   initial_retry_delay: 2s
//   settle_delay: 3s
//
// A missing configuration file is not an error: defaults are used.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// DURATION TYPE
// =============================================================================

// Duration is a time.Duration that reads from YAML as a Go duration string
// ("500ms", "2s"). Bare integers are taken as milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the application configuration.
type MainConfig struct {
	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// InputFile is the spreadsheet mapping source drawings to new numbers.
	// Supported formats: .xlsx, .xlsm, .csv
	InputFile string `yaml:"input_file"`

	// Sheet is the worksheet to read. Empty means the first sheet.
	Sheet string `yaml:"sheet"`

	// SourceColumn is the header of the column holding source drawing paths.
	// Default: "Source"
	SourceColumn string `yaml:"source_column"`

	// DrawingNumberColumn is the header of the column holding the new
	// drawing numbers.
	// Default: "Drawing Number"
	DrawingNumberColumn string `yaml:"drawing_number_column"`

	// CSV holds parsing settings used when InputFile is a CSV file.
	CSV CSVSettings `yaml:"csv"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is the folder that receives the duplicated drawings.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// DrawingExtension is the extension given to duplicated drawings.
	// Default: "dwg"
	DrawingExtension string `yaml:"drawing_extension"`

	// WriteReports enables the summary and error log files in OutputDir.
	// Default: true
	WriteReports *bool `yaml:"write_reports"`

	// =========================================================================
	// AUTOMATION SETTINGS
	// =========================================================================

	// ProgID is the COM programmatic identifier of the CAD application.
	// Default: "AutoCAD.Application"
	ProgID string `yaml:"prog_id"`

	// Command is the command issued on each duplicated drawing after
	// save-as. A trailing space is appended when sending it, which is how
	// the CAD command line terminates input.
	// Default: "Updatetitleblock"
	Command string `yaml:"command"`

	// CloseAppWhenDone quits the CAD application after the run.
	// Default: false
	CloseAppWhenDone bool `yaml:"close_app_when_done"`

	// =========================================================================
	// RETRY AND PACING SETTINGS
	// =========================================================================

	// MaxRetries bounds the number of open attempts per drawing when the
	// application reports it is busy.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// InitialRetryDelay is multiplied by the attempt number to get the
	// backoff before the next attempt.
	// Default: 2s
	InitialRetryDelay Duration `yaml:"initial_retry_delay"`

	// InterRowDelay is the pause between consecutive rows.
	// Default: 500ms
	InterRowDelay Duration `yaml:"inter_row_delay"`

	// PostSuccessDelay is the pause after a drawing was duplicated.
	// Default: 1s
	PostSuccessDelay Duration `yaml:"post_success_delay"`

	// SettleDelay is how long to wait after sending Command before the
	// drawing is saved again. The command's completion cannot be observed.
	// Default: 3s
	SettleDelay Duration `yaml:"settle_delay"`

	// =========================================================================
	// LOGGING AND CONSOLE SETTINGS
	// =========================================================================

	// LogFile is the path to the application log file.
	// Default: "./logs/dwgdup.log"
	LogFile string `yaml:"log_file"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// PauseOnExit waits for Enter before the process exits, so the console
	// window stays open when the tool is started from Explorer.
	// Default: true
	PauseOnExit *bool `yaml:"pause_on_exit"`
}

// CSVSettings contains settings for parsing CSV input files.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRow is the 1-based row holding the column headers.
	// Default: 1
	HeaderRow int `yaml:"header_row"`

	// Comment is the comment character. Lines starting with it are skipped.
	Comment string `yaml:"comment"`
}

// Comma returns the field separator rune for Delimiter, accepting the names
// "tab", "pipe" and "semicolon" as well as a single character.
func (s CSVSettings) Comma() (rune, error) {
	switch strings.ToLower(s.Delimiter) {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	case "pipe":
		return '|', nil
	case "semicolon":
		return ';', nil
	}
	r := []rune(s.Delimiter)
	if len(r) != 1 {
		return 0, fmt.Errorf("csv.delimiter must be a single character, got %q", s.Delimiter)
	}
	return r[0], nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ReportsEnabled reports whether summary and error log files are written.
func (c *MainConfig) ReportsEnabled() bool {
	return c.WriteReports == nil || *c.WriteReports
}

// ShouldPauseOnExit reports whether the process waits for Enter before exit.
func (c *MainConfig) ShouldPauseOnExit() bool {
	return c.PauseOnExit == nil || *c.PauseOnExit
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct with defaults applied.
//   - An error if the file exists but cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	config := newMainConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No file: run on defaults.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyMainConfigDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	config := newMainConfig()
	applyMainConfigDefaults(&config)
	return &config
}

// newMainConfig returns a configuration holding the default delays. The file
// is decoded over it, so a delay is only replaced when its key is present and
// an explicit 0 turns the wait off.
func newMainConfig() MainConfig {
	return MainConfig{
		InitialRetryDelay: Duration(2 * time.Second),
		InterRowDelay:     Duration(500 * time.Millisecond),
		PostSuccessDelay:  Duration(time.Second),
		SettleDelay:       Duration(3 * time.Second),
	}
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.SourceColumn == "" {
		config.SourceColumn = "Source"
	}
	if config.DrawingNumberColumn == "" {
		config.DrawingNumberColumn = "Drawing Number"
	}
	if config.DrawingExtension == "" {
		config.DrawingExtension = "dwg"
	}
	config.DrawingExtension = strings.TrimPrefix(config.DrawingExtension, ".")
	if config.ProgID == "" {
		config.ProgID = "AutoCAD.Application"
	}
	if config.Command == "" {
		config.Command = "Updatetitleblock"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.LogFile == "" {
		config.LogFile = "./logs/dwgdup.log"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	// CSV settings defaults.
	if config.CSV.Delimiter == "" {
		config.CSV.Delimiter = ","
	}
	if config.CSV.HeaderRow == 0 {
		config.CSV.HeaderRow = 1
	}
}

// Validate checks the configuration for values that cannot work. It does not
// touch the file system; the input file is checked when it is loaded.
func (c *MainConfig) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	for name, d := range map[string]Duration{
		"initial_retry_delay": c.InitialRetryDelay,
		"inter_row_delay":     c.InterRowDelay,
		"post_success_delay":  c.PostSuccessDelay,
		"settle_delay":        c.SettleDelay,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if strings.EqualFold(strings.TrimSpace(c.SourceColumn), strings.TrimSpace(c.DrawingNumberColumn)) {
		return fmt.Errorf("source_column and drawing_number_column must differ")
	}
	if strings.ContainsAny(c.DrawingExtension, `/\`) {
		return fmt.Errorf("drawing_extension %q must not contain path separators", c.DrawingExtension)
	}
	if _, err := c.CSV.Comma(); err != nil {
		return err
	}
	if len([]rune(c.CSV.Comment)) > 1 {
		return fmt.Errorf("csv.comment must be a single character, got %q", c.CSV.Comment)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}
