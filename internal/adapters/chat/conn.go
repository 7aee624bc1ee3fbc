package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Conn wraps one websocket connection. Its send channel doubles as the
// user's private inbox: peers and the user's own workers enqueue with
// TrySend, and the egress dispatcher is the single consumer that drains it
// onto the wire.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func NewConn(ws *websocket.Conn, sendBuffer int) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}
}

// TrySend enqueues a payload without blocking. A closed connection or a
// full buffer returns an error; the caller drops the frame for this peer.
func (c *Conn) TrySend(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
	default:
		return ErrBackpressure
	}
	return nil
}

// Outbox is the receiving half of the private inbox, read only by the
// egress dispatcher.
func (c *Conn) Outbox() <-chan []byte {
	return c.send
}

// Close tears down the socket and the inbox. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
	c.mu.Unlock()
}

// WriteFrame writes a single text frame with a deadline.
func (c *Conn) WriteFrame(payload []byte, timeout time.Duration) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Ping keeps the socket alive between outbound frames.
func (c *Conn) Ping(timeout time.Duration) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
