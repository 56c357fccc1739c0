// Package sim provides an in-memory device driver. Each enable delivers the
// configured pages as one batch and then disables the source.
package sim

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mastercactapus/scanbridge/device"
)

// ErrNoSource is returned by OpenSource when the identity does not match.
var ErrNoSource = errors.New("no such source")

// Options configure a Driver.
type Options struct {
	// Name is the source identity. An empty identity on open always matches.
	Name string

	Pages          []device.Page
	UIControllable bool

	// Errors maps an operation name (load, unload, open, close, enable,
	// forcestepdown, supports) to the error it should return.
	Errors map[string]error

	// TransferErrors maps a page index to a native error raised in place of
	// that page.
	TransferErrors map[int]error
}

// Driver is a simulated acquisition device.
type Driver struct {
	mx    sync.Mutex
	opt   Options
	state device.State
	calls []string

	h device.Handler
	d device.Dispatcher
}

var _ device.Driver = &Driver{}

func New(opt Options) *Driver {
	return &Driver{opt: opt}
}

// LoadPages reads every file matching pattern, in lexical order, as an
// in-memory page.
func LoadPages(pattern string) ([]device.Page, error) {
	names, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	pages := make([]device.Page, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		pages = append(pages, device.Page{
			Data: data,
			Info: map[string]string{"Camera": filepath.Base(name)},
		})
	}
	return pages, nil
}

// SetPages replaces the pages delivered by the next batch.
func (drv *Driver) SetPages(p []device.Page) {
	drv.mx.Lock()
	drv.opt.Pages = p
	drv.mx.Unlock()
}

// Calls returns the driver operations invoked so far.
func (drv *Driver) Calls() []string {
	drv.mx.Lock()
	defer drv.mx.Unlock()
	return append([]string(nil), drv.calls...)
}

func (drv *Driver) Bind(h device.Handler, d device.Dispatcher) {
	drv.h = h
	drv.d = d
}

func (drv *Driver) State() device.State {
	drv.mx.Lock()
	defer drv.mx.Unlock()
	return drv.state
}

func (drv *Driver) call(op string) error {
	drv.mx.Lock()
	defer drv.mx.Unlock()
	drv.calls = append(drv.calls, op)
	return drv.opt.Errors[op]
}

func (drv *Driver) setState(s device.State) {
	drv.mx.Lock()
	changed := drv.state != s
	drv.state = s
	drv.mx.Unlock()
	if changed && drv.h != nil {
		drv.h.StateChanged(s)
	}
}

func (drv *Driver) step(op string, from, to device.State) error {
	if err := drv.call(op); err != nil {
		return err
	}
	if cur := drv.State(); cur != from {
		return errors.New("sim: " + op + " from " + cur.String())
	}
	drv.setState(to)
	return nil
}

func (drv *Driver) LoadManager() error   { return drv.step("load", device.Closed, device.Loaded) }
func (drv *Driver) UnloadManager() error { return drv.step("unload", device.Loaded, device.Closed) }
func (drv *Driver) CloseSource() error   { return drv.step("close", device.Opened, device.Loaded) }

func (drv *Driver) OpenSource(id device.Identity) error {
	if id.Name != "" && id.Name != drv.opt.Name {
		drv.call("open")
		return ErrNoSource
	}
	return drv.step("open", device.Loaded, device.Opened)
}

func (drv *Driver) Supports(c device.Capability) (bool, error) {
	if err := drv.call("supports"); err != nil {
		return false, err
	}
	return c == device.UIControllable && drv.opt.UIControllable, nil
}

func (drv *Driver) Enable(mode device.Mode, showUI bool) error {
	if err := drv.step("enable", device.Opened, device.Enabled); err != nil {
		return err
	}
	drv.d.Post(drv.runBatch)
	return nil
}

func (drv *Driver) ForceStepDown(to device.State) error {
	err := drv.call("forcestepdown")
	if drv.State() > to {
		drv.setState(to)
	}
	return err
}

func (drv *Driver) runBatch() {
	drv.mx.Lock()
	pages := drv.opt.Pages
	xferErrs := drv.opt.TransferErrors
	drv.mx.Unlock()

	for i, p := range pages {
		if s := drv.State(); s != device.Enabled && s != device.Transferring {
			// torn down mid batch
			return
		}
		if drv.h.TransferReady() == device.CancelAll {
			break
		}
		drv.setState(device.Transferring)
		if err := xferErrs[i]; err != nil {
			drv.h.TransferError(err)
			continue
		}
		drv.h.DataTransferred(p)
	}

	drv.setState(device.Opened)
	drv.h.SourceDisabled()
}
