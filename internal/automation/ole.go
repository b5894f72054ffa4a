// =============================================================================
// DWG Batch Duplicator - COM Automation
// =============================================================================
//
// OLEConnector drives the real CAD application through go-ole. Every COM
// call is made from one OS thread, locked for the life of the session.
//
// ERRORS:
//   COM failures keep their HRESULT so IsBusy can recognise the
//   "call was rejected" and "application is busy" codes.
//
// =============================================================================

package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// sFalse is returned by CoInitializeEx when COM was already initialized on
// the thread. It is a success code.
const sFalse = 0x00000001

// OLEConnector connects to the CAD application through COM automation.
// On platforms without COM every call fails with E_NOTIMPL.
type OLEConnector struct {
	// ProgID is the programmatic identifier, e.g. "AutoCAD.Application".
	ProgID string

	Logger *slog.Logger
}

// NewOLEConnector returns a connector for progID.
func NewOLEConnector(progID string, logger *slog.Logger) *OLEConnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &OLEConnector{ProgID: progID, Logger: logger}
}

// Connect attaches to a running instance of ProgID, or starts one.
//
// COM objects are bound to the thread that created them, so the calling
// goroutine is locked to its OS thread until the returned Application is
// released. All calls on the Application and its Documents must come from
// that goroutine.
func (c *OLEConnector) Connect(ctx context.Context) (Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runtime.LockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil && !isHRESULT(err, sFalse) {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("CoInitializeEx: %w", err)
	}

	unknown, err := oleutil.GetActiveObject(c.ProgID)
	if err != nil {
		c.Logger.Info("no running CAD instance, starting one", "prog_id", c.ProgID)
		unknown, err = oleutil.CreateObject(c.ProgID)
		if err != nil {
			ole.CoUninitialize()
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("failed to start %s: %w", c.ProgID, err)
		}
	} else {
		c.Logger.Info("attached to running CAD instance", "prog_id", c.ProgID)
	}
	defer unknown.Release()

	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("%s does not support IDispatch: %w", c.ProgID, err)
	}

	return &oleApplication{disp: disp}, nil
}

// isHRESULT reports whether err is a COM error with the given code.
func isHRESULT(err error, code uint32) bool {
	var hr hresultError
	return errors.As(err, &hr) && uint32(hr.Code()) == code
}

// invoke calls a method and frees a non-object result.
func invoke(disp *ole.IDispatch, method string, params ...interface{}) error {
	result, err := oleutil.CallMethod(disp, method, params...)
	if err != nil {
		return err
	}
	result.Clear()
	return nil
}

// =============================================================================
// APPLICATION
// =============================================================================

type oleApplication struct {
	disp *ole.IDispatch
}

func (a *oleApplication) Open(path string, readOnly bool) (Document, error) {
	docsVar, err := oleutil.GetProperty(a.disp, "Documents")
	if err != nil {
		return nil, fmt.Errorf("get Documents: %w", err)
	}
	docs := docsVar.ToIDispatch()
	defer docs.Release()

	docVar, err := oleutil.CallMethod(docs, "Open", path, readOnly)
	if err != nil {
		return nil, err
	}
	doc := docVar.ToIDispatch()
	if doc == nil {
		return nil, fmt.Errorf("Documents.Open returned no document for %s", path)
	}
	return &oleDocument{disp: doc}, nil
}

func (a *oleApplication) Activate(doc Document) error {
	od, ok := doc.(*oleDocument)
	if !ok {
		return fmt.Errorf("cannot activate %T on a COM application", doc)
	}
	result, err := oleutil.PutProperty(a.disp, "ActiveDocument", od.disp)
	if err != nil {
		return err
	}
	result.Clear()
	return nil
}

func (a *oleApplication) SetVisible(visible bool) error {
	result, err := oleutil.PutProperty(a.disp, "Visible", visible)
	if err != nil {
		return err
	}
	result.Clear()
	return nil
}

func (a *oleApplication) Quit() error {
	return invoke(a.disp, "Quit")
}

func (a *oleApplication) Release() {
	if a.disp != nil {
		a.disp.Release()
		a.disp = nil
		ole.CoUninitialize()
		runtime.UnlockOSThread()
	}
}

// =============================================================================
// DOCUMENT
// =============================================================================

type oleDocument struct {
	disp *ole.IDispatch
}

func (d *oleDocument) SaveAs(path string) error {
	return invoke(d.disp, "SaveAs", path)
}

func (d *oleDocument) SendCommand(text string) error {
	return invoke(d.disp, "SendCommand", text)
}

func (d *oleDocument) Save() error {
	return invoke(d.disp, "Save")
}

func (d *oleDocument) Close(saveChanges bool) error {
	return invoke(d.disp, "Close", saveChanges)
}

func (d *oleDocument) Release() {
	if d.disp != nil {
		d.disp.Release()
		d.disp = nil
	}
}
