// Package folder binds a scan-to-folder device: the scanner writes one file
// per page into a directory, and a batch ends once no new file has appeared
// for the idle interval. Pages are delivered as file paths.
package folder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mastercactapus/scanbridge/device"
)

// DefaultExtensions are the page file extensions picked up when Options
// leaves Extensions empty.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff"}

var errNotDir = errors.New("not a directory")

type Options struct {
	Dir        string
	Idle       time.Duration
	Extensions []string
	Logger     *slog.Logger
}

type Driver struct {
	opt Options
	log *slog.Logger

	h device.Handler
	d device.Dispatcher

	mx      sync.Mutex
	state   device.State
	watcher *fsnotify.Watcher
	armed   bool
	seen    map[string]bool
	pending []string
	idle    *time.Timer
}

var _ device.Driver = &Driver{}

func New(opt Options) *Driver {
	if opt.Idle <= 0 {
		opt.Idle = 3 * time.Second
	}
	if len(opt.Extensions) == 0 {
		opt.Extensions = DefaultExtensions
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Driver{opt: opt, log: opt.Logger.With("driver", "folder")}
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

func (drv *Driver) setState(s device.State) {
	drv.mx.Lock()
	changed := drv.state != s
	drv.state = s
	drv.mx.Unlock()
	if changed {
		drv.h.StateChanged(s)
	}
}

func (drv *Driver) LoadManager() error {
	fi, err := os.Stat(drv.opt.Dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s: %w", drv.opt.Dir, errNotDir)
	}
	drv.setState(device.Loaded)
	return nil
}

func (drv *Driver) UnloadManager() error {
	drv.setState(device.Closed)
	return nil
}

func (drv *Driver) OpenSource(device.Identity) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err = w.Add(drv.opt.Dir); err != nil {
		w.Close()
		return err
	}
	drv.mx.Lock()
	drv.watcher = w
	drv.mx.Unlock()

	go drv.watch(w)
	drv.setState(device.Opened)
	return nil
}

func (drv *Driver) CloseSource() error {
	drv.disarm()
	drv.mx.Lock()
	w := drv.watcher
	drv.watcher = nil
	drv.mx.Unlock()
	if w == nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return err
	}
	drv.setState(device.Loaded)
	return nil
}

// Supports reports UIControllable: a folder device has no UI of its own.
func (drv *Driver) Supports(c device.Capability) (bool, error) {
	return c == device.UIControllable, nil
}

func (drv *Driver) Enable(device.Mode, bool) error {
	drv.mx.Lock()
	if drv.watcher == nil {
		drv.mx.Unlock()
		return errors.New("source not open")
	}
	drv.armed = true
	drv.seen = make(map[string]bool)
	drv.pending = nil
	drv.idle = time.AfterFunc(drv.opt.Idle, drv.expire)
	drv.mx.Unlock()

	drv.setState(device.Enabled)
	return nil
}

func (drv *Driver) ForceStepDown(to device.State) error {
	var err error
	if to < device.Opened {
		err = drv.CloseSource()
	} else {
		drv.disarm()
	}
	if drv.State() > to {
		drv.setState(to)
	}
	return err
}

func (drv *Driver) disarm() {
	drv.mx.Lock()
	drv.armed = false
	if drv.idle != nil {
		drv.idle.Stop()
		drv.idle = nil
	}
	drv.mx.Unlock()
}

func (drv *Driver) wanted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range drv.opt.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (drv *Driver) watch(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !drv.wanted(ev.Name) {
				continue
			}
			drv.mx.Lock()
			if drv.armed {
				if !drv.seen[ev.Name] {
					drv.seen[ev.Name] = true
					drv.pending = append(drv.pending, ev.Name)
				}
				drv.idle.Reset(drv.opt.Idle)
			}
			drv.mx.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			drv.d.Post(func() { drv.h.TransferError(err) })
		}
	}
}

func (drv *Driver) expire() {
	drv.mx.Lock()
	if !drv.armed {
		drv.mx.Unlock()
		return
	}
	drv.armed = false
	drv.idle = nil
	pages := drv.pending
	drv.pending = nil
	drv.mx.Unlock()

	drv.d.Post(func() { drv.deliver(pages) })
}

// deliver runs on the device loop.
func (drv *Driver) deliver(paths []string) {
	if drv.State() < device.Enabled {
		return
	}
	drv.log.Debug("batch complete", "files", len(paths))
	for _, p := range paths {
		if drv.h.TransferReady() == device.CancelAll {
			break
		}
		drv.setState(device.Transferring)
		drv.h.DataTransferred(device.Page{Path: p})
	}
	drv.setState(device.Opened)
	drv.h.SourceDisabled()
}
