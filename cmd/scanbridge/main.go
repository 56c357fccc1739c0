package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mastercactapus/scanbridge/bridge"
	"github.com/mastercactapus/scanbridge/device"
	"github.com/mastercactapus/scanbridge/device/folder"
	"github.com/mastercactapus/scanbridge/device/sim"
	"github.com/mastercactapus/scanbridge/document"
)

func main() {
	cmd := &cobra.Command{
		Use:           "scanbridge",
		Short:         "Serve a document scanner to websocket clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	registerFlags(cmd.Flags())

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func newDriver(cfg *config, log *slog.Logger) (device.Driver, error) {
	switch cfg.Driver {
	case "sim":
		var pages []device.Page
		if cfg.Sim.Pages != "" {
			var err error
			pages, err = sim.LoadPages(cfg.Sim.Pages)
			if err != nil {
				return nil, fmt.Errorf("load pages: %w", err)
			}
		}
		return sim.New(sim.Options{
			Name:           cfg.Device,
			Pages:          pages,
			UIControllable: cfg.Sim.UIControllable,
		}), nil
	case "folder":
		return folder.New(folder.Options{
			Dir:    cfg.Folder.Path,
			Idle:   cfg.Folder.Idle,
			Logger: log,
		}), nil
	}
	return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}

func run(ctx context.Context, cfg *config) error {
	log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	drv, err := newDriver(cfg, log)
	if err != nil {
		return err
	}

	ev := newEvents(log.With("component", "events"))
	b := bridge.New(bridge.Config{
		Driver:   drv,
		Identity: device.Identity{Name: cfg.Device},
		Encoder:  document.PDF{},
		Shell:    logShell{log: log},
		Watch:    ev.Publish,
		Logger:   log,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: withAccessLog(log, newAPI(b, ev, log)),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the device loop outlives ctx so the device can be torn down on it
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(loopCtx) })
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr, "driver", cfg.Driver)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := b.Load(gctx, cfg.OpenRetry); err != nil {
			log.Error("device manager unavailable", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Warn("http shutdown", "err", err)
		}
		if err := b.Close(shCtx, true); err != nil {
			log.Warn("device shutdown", "err", err)
		}
		stopLoop()
		ev.Close()
		return nil
	})

	return g.Wait()
}
