// Package channel is the client-facing side of the bridge: a websocket
// endpoint that accepts command codes and broadcasts acknowledgements and
// finished documents to every connected client.
package channel

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Command codes sent by clients.
const (
	CodeConfirm = "1000"
	CodeScan    = "1100"
)

// Ack is broadcast in answer to CodeConfirm.
const Ack = "OK"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	queueSize  = 16
)

// Scanner starts an acquisition on behalf of a client.
type Scanner interface {
	StartScan(ctx context.Context) error
}

type Config struct {
	Scanner Scanner
	Logger  *slog.Logger

	// CheckOrigin is passed to the websocket upgrader. Nil allows every
	// origin.
	CheckOrigin func(*http.Request) bool
}

// Hub tracks connected clients and dispatches their commands.
type Hub struct {
	reg     *Registry
	scanner Scanner
	log     *slog.Logger

	upgrader websocket.Upgrader
}

func NewHub(cfg Config) *Hub {
	h := &Hub{
		reg:     NewRegistry(),
		scanner: cfg.Scanner,
		log:     cfg.Logger,
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	h.upgrader.CheckOrigin = cfg.CheckOrigin
	if h.upgrader.CheckOrigin == nil {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return h
}

// Connections returns the number of connected clients.
func (h *Hub) Connections() int { return h.reg.Len() }

func (h *Hub) OnConnect(c Conn) {
	h.log.Info("client connected", "conn", c.ID())
	h.reg.Add(c)
}

func (h *Hub) OnDisconnect(c Conn) {
	h.log.Info("client disconnected", "conn", c.ID())
	h.reg.Remove(c)
}

// OnCommand handles one text frame from c. Unknown codes are ignored.
func (h *Hub) OnCommand(ctx context.Context, c Conn, code string) {
	switch code {
	case CodeConfirm:
		h.Broadcast(Text(Ack))
	case CodeScan:
		if err := h.scanner.StartScan(ctx); err != nil {
			h.log.Error("start scan", "conn", c.ID(), "err", err)
		}
	default:
		h.log.Debug("unknown command", "conn", c.ID(), "code", code)
	}
}

// Broadcast sends m to every client and returns the number of successful
// deliveries.
func (h *Hub) Broadcast(m Message) int {
	sent, errs := h.reg.Broadcast(m)
	for _, err := range errs {
		h.log.Warn("broadcast", "err", err)
	}
	return sent
}

// PublishDocument broadcasts a finished document as a binary frame.
func (h *Hub) PublishDocument(doc []byte) {
	n := h.Broadcast(Binary(doc))
	h.log.Info("document sent", "bytes", len(doc), "clients", n)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ws, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.log.Warn("upgrade", "remote", req.RemoteAddr, "err", err)
		return
	}

	c := newWSConn(ws, h.log)
	go c.writeLoop()

	h.OnConnect(c)
	defer h.OnDisconnect(c)
	defer c.close()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("read", "conn", c.ID(), "err", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		h.OnCommand(req.Context(), c, string(data))
	}
}

type wsConn struct {
	id  string
	ws  *websocket.Conn
	log *slog.Logger

	out  chan Message
	done chan struct{}
	once sync.Once
}

func newWSConn(ws *websocket.Conn, log *slog.Logger) *wsConn {
	return &wsConn{
		id:   uuid.New().String(),
		ws:   ws,
		log:  log,
		out:  make(chan Message, queueSize),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(m Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.out <- m:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *wsConn) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case m := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(m.Type, m.Data); err != nil {
				c.log.Warn("send", "conn", c.id, "err", err)
				return
			}
		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
