// Package automationtest provides an in-memory CAD application for tests.
//
// The fake records every call in order, tracks which documents are open, and
// can be scripted to fail specific calls. SaveAs writes a small read-only
// file at the target path so callers that touch the saved file work.
package automationtest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/automation"
)

// Fake is an automation.Connector backed by a FakeApp.
type Fake struct {
	mu sync.Mutex

	// ConnectErr is returned by Connect when set.
	ConnectErr error

	// OpenErrs are returned by successive Open calls; once exhausted, Open
	// succeeds. A nil entry also means success.
	OpenErrs []error

	// Per-path failures, keyed by source path (Open) or target path.
	OpenErrFor        map[string]error
	SaveAsErrFor      map[string]error
	SendCommandErrFor map[string]error
	SaveErrFor        map[string]error
	CloseErrFor       map[string]error

	// SkipFiles stops SaveAs from writing the target file.
	SkipFiles bool

	app *FakeApp

	connects int
	releases int
	quits    int
	calls    []string

	open    map[*FakeDocument]bool
	maxOpen int
}

// NewFake returns a fake with no scripted failures.
func NewFake() *Fake {
	return &Fake{
		OpenErrFor:        map[string]error{},
		SaveAsErrFor:      map[string]error{},
		SendCommandErrFor: map[string]error{},
		SaveErrFor:        map[string]error{},
		CloseErrFor:       map[string]error{},
		open:              map[*FakeDocument]bool{},
	}
}

// Connect implements automation.Connector.
func (f *Fake) Connect(ctx context.Context) (automation.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connects++
	f.calls = append(f.calls, "connect")
	if f.ConnectErr != nil {
		return nil, f.ConnectErr
	}
	f.app = &FakeApp{fake: f}
	return f.app, nil
}

// Connects returns how many times Connect was called.
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Releases returns how many times the application handle was released.
func (f *Fake) Releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

// Quits returns how many times Quit was called.
func (f *Fake) Quits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quits
}

// Calls returns the recorded calls, e.g. "open a.dwg", "saveas B-1.dwg".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// OpenDocuments returns the number of documents not yet released.
func (f *Fake) OpenDocuments() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

// MaxOpenDocuments returns the highest number of documents held at once.
func (f *Fake) MaxOpenDocuments() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxOpen
}

func (f *Fake) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// =============================================================================
// APPLICATION
// =============================================================================

// FakeApp is the automation.Application handed out by Fake.
type FakeApp struct {
	fake    *Fake
	visible bool
	active  *FakeDocument
}

// Open implements automation.Application.
func (a *FakeApp) Open(path string, readOnly bool) (automation.Document, error) {
	f := a.fake
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("open %s", path)

	if len(f.OpenErrs) > 0 {
		err := f.OpenErrs[0]
		f.OpenErrs = f.OpenErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if err := f.OpenErrFor[path]; err != nil {
		return nil, err
	}

	doc := &FakeDocument{fake: f, path: path, readOnly: readOnly}
	f.open[doc] = true
	if len(f.open) > f.maxOpen {
		f.maxOpen = len(f.open)
	}
	return doc, nil
}

// Activate implements automation.Application.
func (a *FakeApp) Activate(doc automation.Document) error {
	f := a.fake
	f.mu.Lock()
	defer f.mu.Unlock()

	fd, ok := doc.(*FakeDocument)
	if !ok {
		return fmt.Errorf("not a fake document: %T", doc)
	}
	f.record("activate %s", fd.path)
	a.active = fd
	return nil
}

// SetVisible implements automation.Application.
func (a *FakeApp) SetVisible(visible bool) error {
	a.fake.mu.Lock()
	defer a.fake.mu.Unlock()

	a.fake.record("visible %t", visible)
	a.visible = visible
	return nil
}

// Visible reports the last value passed to SetVisible.
func (a *FakeApp) Visible() bool {
	a.fake.mu.Lock()
	defer a.fake.mu.Unlock()
	return a.visible
}

// Quit implements automation.Application.
func (a *FakeApp) Quit() error {
	a.fake.mu.Lock()
	defer a.fake.mu.Unlock()

	a.fake.quits++
	a.fake.record("quit")
	return nil
}

// Release implements automation.Application.
func (a *FakeApp) Release() {
	a.fake.mu.Lock()
	defer a.fake.mu.Unlock()

	a.fake.releases++
	a.fake.record("release app")
}

// =============================================================================
// DOCUMENT
// =============================================================================

// FakeDocument is the automation.Document handed out by FakeApp.
type FakeDocument struct {
	fake     *Fake
	path     string
	readOnly bool
	closed   bool
	released bool
}

// SaveAs implements automation.Document.
func (d *FakeDocument) SaveAs(path string) error {
	f := d.fake
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("saveas %s", path)
	if err := f.SaveAsErrFor[path]; err != nil {
		return err
	}
	if !f.SkipFiles {
		if err := os.WriteFile(path, []byte("fake drawing"), 0444); err != nil {
			return err
		}
	}
	d.path = path
	return nil
}

// SendCommand implements automation.Document.
func (d *FakeDocument) SendCommand(text string) error {
	f := d.fake
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("command %s", text)
	return f.SendCommandErrFor[d.path]
}

// Save implements automation.Document.
func (d *FakeDocument) Save() error {
	f := d.fake
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("save %s", d.path)
	return f.SaveErrFor[d.path]
}

// Close implements automation.Document.
func (d *FakeDocument) Close(saveChanges bool) error {
	f := d.fake
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("close %s save=%t", d.path, saveChanges)
	if err := f.CloseErrFor[d.path]; err != nil {
		return err
	}
	d.closed = true
	return nil
}

// Release implements automation.Document.
func (d *FakeDocument) Release() {
	f := d.fake
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("release %s", d.path)
	d.released = true
	delete(f.open, d)
}

// =============================================================================
// COM-STYLE ERRORS
// =============================================================================

// HRESULTError is an error carrying a COM HRESULT, shaped like the errors the
// COM connector returns.
type HRESULTError uint32

func (e HRESULTError) Error() string { return fmt.Sprintf("COM error 0x%08X", uint32(e)) }

// Code returns the HRESULT.
func (e HRESULTError) Code() uintptr { return uintptr(e) }

const (
	// RetryLater is RPC_E_SERVERCALL_RETRYLATER: the application is busy.
	RetryLater HRESULTError = 0x8001010A

	// AccessDenied is E_ACCESSDENIED, a permanent failure.
	AccessDenied HRESULTError = 0x80070005
)
