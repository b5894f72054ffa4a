// =============================================================================
// DWG Batch Duplicator - Duplicator Module
// =============================================================================
//
// This module contains the core duplication logic. For each row it drives
// the CAD application through one fixed sequence:
//
//   OPEN         open the source drawing for writing
//   SAVE_AS      save it as <output dir>/<drawing number>.dwg, clear read-only
//   POSTPROCESS  activate it, send the post-processing command, wait for the
//                settle delay, save again
//   CLOSE        close without saving, release the handle
//
// RETRIES:
//   The CAD application rejects calls while it is busy (typically still
//   finishing the previous drawing). A busy rejection of OPEN is retried up
//   to MaxRetries attempts, sleeping InitialRetryDelay * attempt before each
//   new attempt. Any other failure, in any stage, fails the row at once.
//
// HANDLES:
//   A document handle lives for one attempt. Whatever the outcome, it is
//   closed (discarding changes) if still open and then released before the
//   attempt returns. Errors during that cleanup are logged and dropped.
//
// =============================================================================

package duplicator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/automation"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/config"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/ctxlog"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/types"
	"github.com/ginjaninja78/dwg-batch-duplicator/pkg/utils"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSourceNotFound is returned when the source drawing does not exist.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrInvalidTarget is returned when the row has no usable target path.
	ErrInvalidTarget = errors.New("invalid target path")

	// ErrTargetIsSource is returned when the target path names the source
	// drawing itself.
	ErrTargetIsSource = errors.New("target is the source file itself")

	// ErrRetriesExhausted is returned when every open attempt was rejected
	// as busy.
	ErrRetriesExhausted = errors.New("application still busy")
)

// Stage names the step of the duplication sequence a row failed in.
type Stage string

const (
	StageCheck       Stage = "check"
	StageOpen        Stage = "open"
	StageSaveAs      Stage = "save-as"
	StagePostProcess Stage = "post-process"
	StageSave        Stage = "save"
	StageClose       Stage = "close"
)

// RowError is the failure of one row, with the stage it happened in.
type RowError struct {
	Stage Stage
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	return &RowError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded in err, or "" if err is not a RowError.
func StageOf(err error) Stage {
	var re *RowError
	if errors.As(err, &re) {
		return re.Stage
	}
	return ""
}

// =============================================================================
// OPTIONS
// =============================================================================

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Options controls the duplication sequence and its pacing.
type Options struct {
	// OutputDir, when set, is checked to contain every target path.
	OutputDir string

	// Command is sent to each drawing after save-as.
	Command string

	// MaxRetries is the number of open attempts per row.
	MaxRetries int

	// InitialRetryDelay is multiplied by the attempt number for the backoff.
	InitialRetryDelay time.Duration

	// SettleDelay is the wait between sending Command and saving.
	SettleDelay time.Duration

	// PostSuccessDelay is the wait after a row succeeded.
	PostSuccessDelay time.Duration

	// InterRowDelay is the wait between consecutive rows in Run.
	InterRowDelay time.Duration

	// Sleep is used for every wait. Nil means Sleep.
	Sleep Sleeper
}

// OptionsFromConfig builds duplicator options from the run configuration.
func OptionsFromConfig(cfg *config.MainConfig) Options {
	return Options{
		OutputDir:         cfg.OutputDir,
		Command:           cfg.Command,
		MaxRetries:        cfg.MaxRetries,
		InitialRetryDelay: cfg.InitialRetryDelay.Std(),
		SettleDelay:       cfg.SettleDelay.Std(),
		PostSuccessDelay:  cfg.PostSuccessDelay.Std(),
		InterRowDelay:     cfg.InterRowDelay.Std(),
	}
}

// Sleep waits for d, returning early with ctx.Err() if ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// =============================================================================
// OBSERVER
// =============================================================================

// Observer is told about progress. The report package implements it to print
// the console lines; a nil Observer is allowed.
type Observer interface {
	RowStarted(row types.Row)
	AttemptStarted(row types.Row, attempt int)
	Backoff(row types.Row, attempt int, delay time.Duration, err error)
	RowFinished(result types.Result)
}

type nopObserver struct{}

func (nopObserver) RowStarted(types.Row) {}
func (nopObserver) AttemptStarted(types.Row, int) {}
func (nopObserver) Backoff(types.Row, int, time.Duration, error) {}
func (nopObserver) RowFinished(types.Result) {}

// =============================================================================
// DUPLICATOR
// =============================================================================

// Duplicator duplicates drawings through one application handle. It is not
// safe for concurrent use: the application accepts one call at a time.
type Duplicator struct {
	app      automation.Application
	opts     Options
	observer Observer
}

// New creates a Duplicator.
func New(app automation.Application, opts Options, observer Observer) *Duplicator {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Duplicator{app: app, opts: opts, observer: observer}
}

// Run duplicates rows in order, pausing InterRowDelay between rows. It stops
// early only when ctx is cancelled, returning the results gathered so far
// together with ctx.Err().
func (d *Duplicator) Run(ctx context.Context, rows []types.Row) ([]types.Result, error) {
	results := make([]types.Result, 0, len(rows))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		results = append(results, d.Duplicate(ctx, row))

		if i < len(rows)-1 {
			if err := d.opts.Sleep(ctx, d.opts.InterRowDelay); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

// Duplicate runs the full sequence for one row.
func (d *Duplicator) Duplicate(ctx context.Context, row types.Row) (result types.Result) {
	logger := ctxlog.FromContext(ctx).With("row", row.Index, "source", row.SourcePath)
	start := time.Now()
	result.Row = row

	d.observer.RowStarted(row)
	defer func() {
		result.Duration = time.Since(start)
		if result.Err != nil {
			logger.Warn("row failed", "attempts", result.Attempts, "error", result.Err)
		} else {
			logger.Info("row duplicated", "target", row.TargetPath, "attempts", result.Attempts)
		}
		d.observer.RowFinished(result)
	}()

	if err := d.check(row); err != nil {
		result.Err = err
		return result
	}

	var lastBusy error
	for attempt := 1; attempt <= d.opts.MaxRetries; attempt++ {
		result.Attempts = attempt
		d.observer.AttemptStarted(row, attempt)

		err := d.attempt(ctx, row)
		if err == nil {
			result.Success = true
			// The row is done; a cancelled pause does not undo it.
			_ = d.opts.Sleep(ctx, d.opts.PostSuccessDelay)
			return result
		}

		if StageOf(err) != StageOpen || !automation.IsBusy(err) {
			result.Err = err
			return result
		}

		lastBusy = err
		delay := d.opts.InitialRetryDelay * time.Duration(attempt)
		logger.Debug("application busy, backing off", "attempt", attempt, "delay", delay)
		d.observer.Backoff(row, attempt, delay, err)

		if serr := d.opts.Sleep(ctx, delay); serr != nil {
			result.Err = stageError(StageOpen, serr)
			return result
		}
	}

	result.Err = stageError(StageOpen,
		fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, d.opts.MaxRetries, errors.Unwrap(lastBusy)))
	return result
}

// check verifies the row before the application is touched.
func (d *Duplicator) check(row types.Row) error {
	if !utils.FileExists(row.SourcePath) {
		return stageError(StageCheck, fmt.Errorf("%w: %s", ErrSourceNotFound, row.SourcePath))
	}

	if row.TargetPath == "" {
		reason := utils.CheckDrawingNumber(row.DrawingNumber)
		if reason == nil {
			reason = errors.New("no target path derived")
		}
		return stageError(StageCheck, fmt.Errorf("%w: %w", ErrInvalidTarget, reason))
	}
	if utils.SamePath(row.SourcePath, row.TargetPath) {
		return stageError(StageCheck, fmt.Errorf("%w: %w: %s", ErrInvalidTarget, ErrTargetIsSource, row.TargetPath))
	}
	if d.opts.OutputDir != "" && !utils.IsInside(d.opts.OutputDir, row.TargetPath) {
		return stageError(StageCheck, fmt.Errorf("%w: %s is outside %s", ErrInvalidTarget, row.TargetPath, d.opts.OutputDir))
	}

	if err := os.MkdirAll(filepath.Dir(row.TargetPath), 0755); err != nil {
		return stageError(StageCheck, fmt.Errorf("failed to create output directory: %w", err))
	}
	return nil
}

// attempt performs one OPEN..CLOSE pass. The document opened here never
// outlives the call.
func (d *Duplicator) attempt(ctx context.Context, row types.Row) error {
	doc, err := d.app.Open(row.SourcePath, false)
	if err != nil {
		return stageError(StageOpen, err)
	}

	open := true
	defer func() {
		if open {
			d.discard(ctx, doc)
		}
		doc.Release()
	}()

	if err := doc.SaveAs(row.TargetPath); err != nil {
		return stageError(StageSaveAs, err)
	}
	if err := utils.ClearReadOnly(row.TargetPath); err != nil {
		return stageError(StageSaveAs, err)
	}

	if err := d.postProcess(ctx, doc); err != nil {
		return err
	}

	if err := doc.Close(false); err != nil {
		return stageError(StageClose, err)
	}
	open = false
	return nil
}

// postProcess sends the command, waits for it to settle and saves.
//
// The command's completion cannot be observed through automation, so success
// means the application accepted the text and the save after the settle
// delay went through.
func (d *Duplicator) postProcess(ctx context.Context, doc automation.Document) error {
	if err := d.app.Activate(doc); err != nil {
		return stageError(StagePostProcess, fmt.Errorf("failed to activate document: %w", err))
	}
	if err := doc.SendCommand(d.opts.Command + " "); err != nil {
		return stageError(StagePostProcess, fmt.Errorf("failed to send %s: %w", d.opts.Command, err))
	}
	if err := d.opts.Sleep(ctx, d.opts.SettleDelay); err != nil {
		return stageError(StagePostProcess, err)
	}
	if err := doc.Save(); err != nil {
		return stageError(StageSave, err)
	}
	return nil
}

// discard closes doc without saving, swallowing any error.
func (d *Duplicator) discard(ctx context.Context, doc automation.Document) {
	if err := doc.Close(false); err != nil {
		ctxlog.FromContext(ctx).Debug("ignoring error while closing document", "error", err)
	}
}
