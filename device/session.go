package device

import (
	"fmt"
	"log/slog"
	"sync"
)

// Status is a point-in-time view of a session.
type Status struct {
	State    State `json:"state"`
	Reported State `json:"reported"`
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Driver     Driver
	Dispatcher Dispatcher
	Sink       Sink

	// Shell is minimized after a successful enable. Defaults to NopShell.
	Shell Shell

	// Watch, if set, is called on the device loop after every state change
	// or native state report.
	Watch func(Status)

	Logger *slog.Logger
}

// Session is the state machine for one device handle. Apart from Status,
// its methods must be called from the device loop.
type Session struct {
	drv   Driver
	sink  Sink
	shell Shell
	watch func(Status)
	log   *slog.Logger

	mx       sync.RWMutex
	state    State
	reported State
}

var _ Handler = &Session{}

// NewSession creates a Closed session and binds it to the driver.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		drv:   cfg.Driver,
		sink:  cfg.Sink,
		shell: cfg.Shell,
		watch: cfg.Watch,
		log:   cfg.Logger,
	}
	if s.shell == nil {
		s.shell = NopShell{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.drv.Bind(s, cfg.Dispatcher)
	return s
}

// Status may be called from any goroutine.
func (s *Session) Status() Status {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return Status{State: s.state, Reported: s.reported}
}

// State returns the current session state.
func (s *Session) State() State { return s.Status().State }

func (s *Session) notify() {
	if s.watch != nil {
		s.watch(s.Status())
	}
}

func (s *Session) transition(to State) error {
	s.mx.Lock()
	from := s.state
	if !CanTransition(from, to) {
		s.mx.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	s.state = to
	s.mx.Unlock()

	s.log.Debug("session state", "from", from, "to", to)
	s.notify()
	return nil
}

func (s *Session) fail(op string, err error) error {
	return &DeviceError{Op: op, State: s.State(), Err: err}
}

// Load performs Closed -> Loaded. It is a no-op in any later state.
func (s *Session) Load() error {
	if s.State() >= Loaded {
		return nil
	}
	if err := s.drv.LoadManager(); err != nil {
		return s.fail("load", err)
	}
	return s.transition(Loaded)
}

// Open drives the session to Opened, loading first if needed. It is a
// no-op if the session is already Opened or deeper.
func (s *Session) Open(id Identity) error {
	if s.State() >= Opened {
		return nil
	}
	if err := s.Load(); err != nil {
		return err
	}
	if err := s.drv.OpenSource(id); err != nil {
		return s.fail("open", err)
	}
	return s.transition(Opened)
}

// Enable starts acquisition. HiddenUI is only requested when the source
// reports UIControllable; otherwise the source shows its own UI.
func (s *Session) Enable(preferred Mode) (Mode, error) {
	if st := s.State(); st != Opened {
		return preferred, s.fail("enable", fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, st, Enabled))
	}

	mode := ShowUI
	caps := QueryCapabilities(s.drv, s.log, UIControllable)
	if preferred == HiddenUI && caps.Has(UIControllable) {
		mode = HiddenUI
	}

	if err := s.drv.Enable(mode, mode == ShowUI); err != nil {
		return mode, s.fail("enable", err)
	}
	if err := s.transition(Enabled); err != nil {
		return mode, err
	}
	s.shell.Minimize()
	return mode, nil
}

// Close steps gracefully down to Closed. It refuses while the source is
// enabled.
func (s *Session) Close() error {
	if s.State() >= Enabled {
		return s.fail("close", ErrBusy)
	}
	if s.State() == Opened {
		if err := s.drv.CloseSource(); err != nil {
			return s.fail("close", err)
		}
		if err := s.transition(Loaded); err != nil {
			return err
		}
	}
	if s.State() == Loaded {
		if err := s.drv.UnloadManager(); err != nil {
			return s.fail("close", err)
		}
		return s.transition(Closed)
	}
	return nil
}

// Shutdown applies the close policy. Without force it refuses with ErrBusy
// while the source is enabled, otherwise it closes gracefully and falls back
// to ForceTeardown. With force it tears down unconditionally.
func (s *Session) Shutdown(force bool) error {
	if force {
		s.ForceTeardown()
		return nil
	}
	if s.State() >= Enabled {
		return s.fail("close", ErrBusy)
	}
	if err := s.Close(); err != nil {
		s.log.Warn("graceful close failed, forcing", "err", err)
	}
	if s.State() > Closed || s.drv.State() > Closed {
		s.ForceTeardown()
	}
	return nil
}

// ForceTeardown drives the session to Closed from any state. Driver errors
// are logged, never returned.
func (s *Session) ForceTeardown() {
	if err := s.drv.ForceStepDown(Closed); err != nil {
		s.log.Error("force step down", "err", err)
	}

	s.mx.Lock()
	from := s.state
	s.state = Closed
	s.mx.Unlock()

	if from != Closed {
		s.log.Info("session torn down", "from", from)
		s.notify()
	}
}

// StateChanged records the state the driver reports. It does not drive
// transitions.
func (s *Session) StateChanged(st State) {
	s.mx.Lock()
	s.reported = st
	s.mx.Unlock()

	s.log.Debug("native state changed", "reported", st)
	s.notify()
}

func (s *Session) TransferReady() Decision {
	if s.State() == Enabled {
		if err := s.transition(Transferring); err != nil {
			s.log.Warn("transfer ready", "err", err)
		}
	}
	return s.sink.TransferReady()
}

func (s *Session) DataTransferred(p Page) { s.sink.DataTransferred(p) }

func (s *Session) TransferError(err error) {
	s.log.Warn("transfer error", "state", s.State(), "err", err)
	s.sink.TransferError(&TransferError{Err: err})
}

// SourceDisabled ends the batch: the session returns to Opened and the sink
// assembles the document.
func (s *Session) SourceDisabled() {
	switch st := s.State(); st {
	case Enabled, Transferring:
		if err := s.transition(Opened); err != nil {
			s.log.Warn("source disabled", "err", err)
		}
	default:
		s.log.Warn("source disabled in unexpected state", "state", st)
	}
	s.sink.SourceDisabled()
}
