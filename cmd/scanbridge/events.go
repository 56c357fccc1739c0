package main

import (
	"encoding/json"
	"log/slog"
	"sync"

	sse "github.com/alexandrevicenzi/go-sse"

	"github.com/mastercactapus/scanbridge/bridge"
)

const stateChannel = "/events/state"

// events streams bridge status to SSE subscribers. Publish never blocks the
// caller; if the queue is full the update is dropped.
type events struct {
	sse   *sse.Server
	state chan bridge.Status
	log   *slog.Logger

	mx     sync.Mutex
	closed bool
}

func newEvents(log *slog.Logger) *events {
	e := &events{
		sse: sse.NewServer(&sse.Options{
			Logger: slog.NewLogLogger(log.Handler(), slog.LevelDebug),
		}),
		state: make(chan bridge.Status, 32),
		log:   log,
	}
	go e.loop()
	return e
}

func (e *events) Publish(st bridge.Status) {
	e.mx.Lock()
	defer e.mx.Unlock()
	if e.closed {
		return
	}
	select {
	case e.state <- st:
	default:
		e.log.Debug("state event dropped", "state", st.State)
	}
}

func (e *events) loop() {
	for st := range e.state {
		data, err := json.Marshal(st)
		if err != nil {
			e.log.Error("marshal state", "err", err)
			continue
		}
		e.sse.SendMessage(stateChannel, sse.SimpleMessage(string(data)))
	}
}

func (e *events) Close() {
	e.mx.Lock()
	if !e.closed {
		e.closed = true
		close(e.state)
	}
	e.mx.Unlock()
	e.sse.Shutdown()
}
