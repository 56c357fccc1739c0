package device

// Identity names the source a session binds to. An empty Name selects the
// driver's default source.
type Identity struct {
	Name string
}

// Mode selects how the source presents itself while acquiring.
type Mode int

const (
	HiddenUI Mode = iota
	ShowUI
)

func (m Mode) String() string {
	if m == HiddenUI {
		return "HiddenUI"
	}
	return "ShowUI"
}

// Capability identifies a queryable device feature.
type Capability string

// UIControllable reports whether the source can acquire with its own UI suppressed.
const UIControllable Capability = "ui-controllable"

// Decision is the answer to a transfer-ready signal.
type Decision int

const (
	Accept Decision = iota
	CancelAll
)

func (d Decision) String() string {
	if d == CancelAll {
		return "CancelAll"
	}
	return "Accept"
}

// A Page is one transferred image. Exactly one of Data or Path is expected
// to be set.
type Page struct {
	// Data is an in-memory image buffer.
	Data []byte
	// Path is a file the driver wrote the image to.
	Path string

	// Info holds optional extended image information (e.g. camera id).
	Info map[string]string
}

// Sink consumes the transfer signals of a batch.
type Sink interface {
	TransferReady() Decision
	DataTransferred(Page)
	TransferError(error)
	SourceDisabled()
}

// Handler receives native signals from a Driver. Every method is invoked on
// the device loop.
type Handler interface {
	Sink
	StateChanged(State)
}

// Dispatcher schedules work onto the device loop. Drivers use it to deliver
// signals that originate on other goroutines.
type Dispatcher interface {
	Post(func()) bool
}

// A Driver is the native binding to an acquisition device.
//
// All methods other than Bind are called from the device loop only.
type Driver interface {
	// Bind attaches the signal handler and the dispatcher used to deliver
	// signals. It is called once before any other method.
	Bind(h Handler, d Dispatcher)

	// LoadManager performs Closed -> Loaded.
	LoadManager() error
	// UnloadManager performs Loaded -> Closed.
	UnloadManager() error
	// OpenSource performs Loaded -> Opened.
	OpenSource(id Identity) error
	// CloseSource performs Opened -> Loaded.
	CloseSource() error
	// Enable performs Opened -> Enabled and starts acquisition.
	Enable(mode Mode, showUI bool) error
	// ForceStepDown drops the driver to the given state, skipping the
	// graceful path.
	ForceStepDown(to State) error

	Supports(c Capability) (bool, error)

	// State is the state the driver itself reports.
	State() State
}

// Shell is the owning UI shell. The session calls Minimize after a
// successful enable.
type Shell interface {
	Minimize()
}

// NopShell is a Shell that does nothing.
type NopShell struct{}

func (NopShell) Minimize() {}
