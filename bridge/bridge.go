// Package bridge ties a device session to the client channel. Every call
// that touches the device is marshaled onto the device loop.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/afero"

	"github.com/mastercactapus/scanbridge/channel"
	"github.com/mastercactapus/scanbridge/device"
	"github.com/mastercactapus/scanbridge/document"
	"github.com/mastercactapus/scanbridge/transfer"
)

type Config struct {
	Driver   device.Driver
	Identity device.Identity
	Encoder  document.Encoder
	Shell    device.Shell

	// Fs is used to read pages the driver delivers as file paths.
	Fs afero.Fs

	// Watch, if set, receives the bridge status after every device state
	// change. It is called on the device loop and must not block.
	Watch func(Status)

	Logger *slog.Logger
}

// Status is a snapshot of the bridge.
type Status struct {
	device.Status
	transfer.Stats
	Connections int `json:"connections"`
}

type Bridge struct {
	id    device.Identity
	log   *slog.Logger
	watch func(Status)

	loop    *device.Loop
	session *device.Session
	pipe    *transfer.Pipeline
	hub     *channel.Hub
}

var _ channel.Scanner = &Bridge{}

func New(cfg Config) *Bridge {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	enc := cfg.Encoder
	if enc == nil {
		enc = document.PDF{}
	}

	b := &Bridge{
		id:    cfg.Identity,
		log:   log,
		watch: cfg.Watch,
		loop:  device.NewLoop(),
	}
	b.hub = channel.NewHub(channel.Config{
		Scanner: b,
		Logger:  log.With("component", "channel"),
	})
	b.pipe = transfer.New(transfer.Config{
		Assembler: document.NewAggregator(enc, log.With("component", "document")),
		Publisher: b.hub,
		Fs:        cfg.Fs,
		Logger:    log.With("component", "transfer"),
	})
	b.session = device.NewSession(device.SessionConfig{
		Driver:     cfg.Driver,
		Dispatcher: b.loop,
		Sink:       b.pipe,
		Shell:      cfg.Shell,
		Watch:      b.onState,
		Logger:     log.With("component", "session"),
	})
	return b
}

// Hub is the websocket endpoint for clients.
func (b *Bridge) Hub() *channel.Hub { return b.hub }

// Run owns the device until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	err := b.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bridge) Status() Status {
	return Status{
		Status:      b.session.Status(),
		Stats:       b.pipe.Stats(),
		Connections: b.hub.Connections(),
	}
}

func (b *Bridge) onState(device.Status) {
	if b.watch != nil {
		b.watch(b.Status())
	}
}

// Load brings the device manager up, retrying with exponential backoff for
// up to maxElapsed.
func (b *Bridge) Load(ctx context.Context, maxElapsed time.Duration) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.MaxElapsedTime = maxElapsed

	op := func() error {
		err := b.loop.Invoke(ctx, b.session.Load)
		if err != nil {
			b.log.Warn("load device manager, will retry", "err", err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(exp, ctx)); err != nil {
		return fmt.Errorf("load device manager: %w", err)
	}
	return nil
}

// StartScan opens the device if needed, starts a new job and enables the
// source. It fails with device.ErrBusy while a batch is running, leaving
// that batch and any pending cancel alone.
func (b *Bridge) StartScan(ctx context.Context) error {
	return b.loop.Invoke(ctx, func() error {
		if err := b.session.Open(b.id); err != nil {
			return err
		}
		if st := b.session.State(); st != device.Opened {
			return &device.DeviceError{Op: "enable", State: st, Err: device.ErrBusy}
		}
		b.pipe.Begin()
		mode, err := b.session.Enable(device.HiddenUI)
		if err != nil {
			return err
		}
		b.log.Info("scan started", "mode", mode)
		return nil
	})
}

// Cancel asks the device to stop at the next transfer-ready signal.
func (b *Bridge) Cancel() { b.pipe.Cancel() }

// Retry re-assembles the last job that failed to encode.
func (b *Bridge) Retry(ctx context.Context) error {
	return b.loop.Invoke(ctx, b.pipe.Retry)
}

// Close shuts the session down. Without force it fails with
// device.ErrBusy while a scan is running. With force the batch is cancelled
// and the device torn down, even if the loop has already stopped.
func (b *Bridge) Close(ctx context.Context, force bool) error {
	if force {
		b.pipe.Cancel()
	}
	err := b.loop.Invoke(ctx, func() error { return b.session.Shutdown(force) })
	if force && errors.Is(err, device.ErrLoopStopped) {
		b.session.ForceTeardown()
		return nil
	}
	return err
}
