package channel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	// ErrClosed is returned when sending to a connection that has gone away.
	ErrClosed = errors.New("connection closed")
	// ErrQueueFull is returned when a connection is not keeping up.
	ErrQueueFull = errors.New("send queue full")
)

// Message is one websocket frame.
type Message struct {
	Type int
	Data []byte
}

func Text(s string) Message     { return Message{Type: websocket.TextMessage, Data: []byte(s)} }
func Binary(b []byte) Message   { return Message{Type: websocket.BinaryMessage, Data: b} }
func (m Message) IsBinary() bool { return m.Type == websocket.BinaryMessage }

// Conn is a connected client.
type Conn interface {
	ID() string
	Send(Message) error
}

// DeliveryError is a failed send to one connection.
type DeliveryError struct {
	Conn string
	Err  error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("deliver to %s: %v", e.Conn, e.Err) }

func (e *DeliveryError) Unwrap() error { return e.Err }

// Registry is the set of connected clients.
type Registry struct {
	mx    sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

func (r *Registry) Add(c Conn) {
	r.mx.Lock()
	r.conns[c.ID()] = c
	r.mx.Unlock()
}

// Remove is safe to call for unknown connections.
func (r *Registry) Remove(c Conn) {
	r.mx.Lock()
	delete(r.conns, c.ID())
	r.mx.Unlock()
}

func (r *Registry) Len() int {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return len(r.conns)
}

// Snapshot returns the current connections.
func (r *Registry) Snapshot() []Conn {
	r.mx.RLock()
	defer r.mx.RUnlock()
	list := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		list = append(list, c)
	}
	return list
}

// Broadcast sends m to every connection in a snapshot of the registry. A
// failed send does not stop delivery to the others; each failure is
// returned as a *DeliveryError.
func (r *Registry) Broadcast(m Message) (sent int, errs []error) {
	for _, c := range r.Snapshot() {
		if err := c.Send(m); err != nil {
			errs = append(errs, &DeliveryError{Conn: c.ID(), Err: err})
			continue
		}
		sent++
	}
	return sent, errs
}
