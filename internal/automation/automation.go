// =============================================================================
// DWG Batch Duplicator - Automation Boundary
// =============================================================================
//
// This package hides the CAD application behind two small interfaces so the
// duplicator can be driven by the real application over COM or by an
// in-memory fake in tests.
//
//   Connector    - attaches to (or starts) the application
//   Application  - the running application: open drawings, quit, release
//   Document     - one open drawing: save-as, command, save, close, release
//
// LIFECYCLE:
//   Session wraps the Application for the whole run. It is opened once
//   before the first row and closed once after the last, whatever happened
//   in between. Documents are owned by the row that opened them.
//
// =============================================================================

package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// =============================================================================
// CAPABILITY INTERFACES
// =============================================================================

// Connector obtains a handle to the CAD application.
type Connector interface {
	// Connect attaches to a running instance or starts a new one.
	Connect(ctx context.Context) (Application, error)
}

// Application is a handle to the running CAD application.
type Application interface {
	// Open opens a drawing. readOnly=false opens it for writing.
	Open(path string, readOnly bool) (Document, error)

	// Activate makes doc the active document, so commands sent to it run
	// against it.
	Activate(doc Document) error

	// SetVisible shows or hides the application window.
	SetVisible(visible bool) error

	// Quit asks the application to exit.
	Quit() error

	// Release drops the handle. The application keeps running unless Quit
	// was called.
	Release()
}

// Document is a handle to one open drawing.
type Document interface {
	// SaveAs writes the drawing to path; the document then refers to path.
	SaveAs(path string) error

	// SendCommand queues text on the application command line. It returns
	// once the text was accepted, not when the command finished.
	SendCommand(text string) error

	// Save writes the document to its current path.
	Save() error

	// Close closes the drawing. saveChanges=false discards edits without
	// prompting.
	Close(saveChanges bool) error

	// Release drops the handle.
	Release()
}

// =============================================================================
// SESSION
// =============================================================================

// SessionOptions controls how the session is set up and torn down.
type SessionOptions struct {
	// QuitOnClose quits the application when the session closes.
	QuitOnClose bool

	// Logger receives lifecycle messages. Nil uses slog.Default().
	Logger *slog.Logger
}

// Session is the single application handle used for a run.
type Session struct {
	app    Application
	opts   SessionOptions
	logger *slog.Logger

	closeOnce sync.Once
}

// OpenSession connects to the application and makes it visible.
func OpenSession(ctx context.Context, connector Connector, opts SessionOptions) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app, err := connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CAD application: %w", err)
	}

	if err := app.SetVisible(true); err != nil {
		// A hidden window does not stop automation from working.
		logger.Warn("could not make CAD application visible", "error", err)
	}

	logger.Debug("automation session opened")
	return &Session{app: app, opts: opts, logger: logger}, nil
}

// App returns the application handle.
func (s *Session) App() Application {
	return s.app
}

// Close quits the application if configured to, then releases the handle.
// Only the first call has an effect.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.opts.QuitOnClose {
			if qerr := s.app.Quit(); qerr != nil {
				err = fmt.Errorf("failed to quit CAD application: %w", qerr)
			}
		}
		s.app.Release()
		s.logger.Debug("automation session closed", "quit", s.opts.QuitOnClose)
	})
	return err
}

// =============================================================================
// TRANSIENT FAILURES
// =============================================================================

// ErrBusy means the application could not take the call right now. The same
// call may succeed if retried later.
var ErrBusy = errors.New("application busy")

// HRESULTs returned by COM when the server is busy with another call.
const (
	hrCallRejected         = 0x80010001 // RPC_E_CALL_REJECTED
	hrServerCallRetryLater = 0x8001010A // RPC_E_SERVERCALL_RETRYLATER
)

// hresultError is implemented by COM errors that carry an HRESULT.
type hresultError interface {
	error
	Code() uintptr
}

// IsBusy reports whether err is the application's transient "busy" failure.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBusy) {
		return true
	}

	var hr hresultError
	if errors.As(err, &hr) {
		switch uint32(hr.Code()) {
		case hrCallRejected, hrServerCallRetryLater:
			return true
		}
	}
	return false
}
