package main

import "log/slog"

// logShell stands in for a window shell when running headless.
type logShell struct {
	log *slog.Logger
}

func (s logShell) Minimize() { s.log.Debug("shell minimized") }
