package view

import (
	"errors"
	"sync"

	"github.com/dkeye/Tutor/internal/core"
	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

var _ core.SignalConnection = (*WsViewConn)(nil)

// WsViewConn is the push channel to one view client.
type WsViewConn struct {
	id   string
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
	slow   int
}

func newWsViewConn(id string, conn *websocket.Conn, buffer int) *WsViewConn {
	return &WsViewConn{id: id, conn: conn, send: make(chan core.Frame, buffer)}
}

func (c *WsViewConn) ID() string { return c.id }

func (c *WsViewConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsViewConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// markSlow returns the number of consecutive failed sends.
func (c *WsViewConn) markSlow(failed bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if failed {
		c.slow++
	} else {
		c.slow = 0
	}
	return c.slow
}
