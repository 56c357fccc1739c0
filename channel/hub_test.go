package channel

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id  string
	err error

	mx   sync.Mutex
	sent []Message
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(m Message) error {
	if c.err != nil {
		return c.err
	}
	c.mx.Lock()
	c.sent = append(c.sent, m)
	c.mx.Unlock()
	return nil
}

type mockScanner struct{ mock.Mock }

func (m *mockScanner) StartScan(ctx context.Context) error { return m.Called().Error(0) }

func TestRegistry_BroadcastIsolatesFailures(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b", err: ErrQueueFull}
	c := &fakeConn{id: "c"}
	r.Add(a)
	r.Add(b)
	r.Add(c)

	sent, errs := r.Broadcast(Text("OK"))
	assert.Equal(t, 2, sent)
	require.Len(t, errs, 1)

	var derr *DeliveryError
	require.ErrorAs(t, errs[0], &derr)
	assert.Equal(t, "b", derr.Conn)
	assert.ErrorIs(t, errs[0], ErrQueueFull)

	assert.Equal(t, []Message{Text("OK")}, a.sent)
	assert.Equal(t, []Message{Text("OK")}, c.sent)
}

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{id: "a"}
	r.Add(a)
	r.Add(&fakeConn{id: "b"})
	assert.Equal(t, 2, r.Len())

	r.Remove(a)
	r.Remove(a)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "b", r.Snapshot()[0].ID())
}

func TestHub_Commands(t *testing.T) {
	sc := &mockScanner{}
	h := NewHub(Config{Scanner: sc})
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	h.OnConnect(a)
	h.OnConnect(b)

	h.OnCommand(context.Background(), a, CodeConfirm)
	assert.Equal(t, []Message{Text(Ack)}, a.sent)
	assert.Equal(t, []Message{Text(Ack)}, b.sent)

	sc.On("StartScan").Return(errors.New("no device")).Once()
	h.OnCommand(context.Background(), a, CodeScan)
	sc.AssertExpectations(t)

	h.OnCommand(context.Background(), a, "9999")
	assert.Len(t, a.sent, 1)

	h.OnDisconnect(b)
	h.PublishDocument([]byte("%PDF"))
	assert.Equal(t, Binary([]byte("%PDF")), a.sent[1])
	assert.Len(t, b.sent, 1)
}

func TestHub_Websocket(t *testing.T) {
	h := NewHub(Config{Scanner: &mockScanner{}})
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws1.Close()
	ws2, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws2.Close()

	require.Eventually(t, func() bool { return h.Connections() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws1.WriteMessage(websocket.TextMessage, []byte(CodeConfirm)))
	for _, ws := range []*websocket.Conn{ws1, ws2} {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		typ, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, typ)
		assert.Equal(t, Ack, string(data))
	}

	ws2.Close()
	require.Eventually(t, func() bool { return h.Connections() == 1 }, time.Second, 10*time.Millisecond)
}
