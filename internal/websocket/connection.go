package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"sessionrelay/pkg/interfaces"
)

// Default per-connection settings, overridden by Options
const (
	DefaultSendBuffer   = 100
	DefaultWriteTimeout = 10 * time.Second
)

// Connection implements the interfaces.Connection interface
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized; one writer
// goroutine owns the socket and everyone else hands it bytes via send
type Connection struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration
	role         string             // observer or producer, from the latest accepted signal
	ctx          context.Context    // cancelled on Close
	cancel       context.CancelFunc // for cleanup
	closeOnce    sync.Once
	mu           sync.RWMutex // protects role
}

// NewConnection wraps an upgraded socket and starts its writer goroutine
func NewConnection(conn *websocket.Conn, sendBuffer int, writeTimeout time.Duration) *Connection {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.New().String(),
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the only goroutine that writes data frames to the socket
func (c *Connection) writeLoop() {
	defer func() { _ = c.Close() }()

	for {
		select {
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// ID returns the server-assigned connection identifier
func (c *Connection) ID() string {
	return c.id
}

// WriteJSON marshals v and queues it without blocking
func (c *Connection) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}
	return c.WriteRaw(data)
}

// WriteRaw queues an encoded frame without blocking
// FUNCTIONAL DISCOVERY: A full buffer means the peer is not draining; the
// frame is dropped and reported instead of stalling the broadcaster
func (c *Connection) WriteRaw(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops the writer goroutine and closes the socket once
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed when the connection shuts down
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Role returns the role assumed by the connection's latest accepted signal.
// Producer bindings live in the Registry only.
func (c *Connection) Role() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// SetRole records the role for logging
func (c *Connection) SetRole(role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
}

var _ interfaces.Connection = (*Connection)(nil)
