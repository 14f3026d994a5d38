package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"sessionrelay/pkg/interfaces"
	"sessionrelay/pkg/types"
)

// WebSocket upgrader
// FUNCTIONAL DISCOVERY: Any origin may connect; producers and observers are
// served from unrelated pages
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Options configures heartbeat and buffering for every connection
type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// DefaultOptions returns the heartbeat settings used when none are configured
func DefaultOptions() Options {
	return Options{
		PingInterval: 25 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: DefaultWriteTimeout,
		SendBuffer:   DefaultSendBuffer,
	}
}

// forgetter is implemented by routers that keep per-connection state
type forgetter interface {
	Forget(connectionID string)
}

// Handler upgrades push-channel requests and pumps inbound signals
// ARCHITECTURAL DISCOVERY: Transport only; what a signal means is decided by
// the router, membership cleanup on disconnect is done here
type Handler struct {
	registry *Registry
	router   interfaces.SignalRouter
	options  Options
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*Connection]struct{} // every open connection, for shutdown
}

// NewHandler creates a new WebSocket handler
func NewHandler(registry *Registry, router interfaces.SignalRouter, options Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultOptions()
	if options.PingInterval <= 0 {
		options.PingInterval = defaults.PingInterval
	}
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = defaults.ReadTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaults.WriteTimeout
	}
	if options.SendBuffer <= 0 {
		options.SendBuffer = defaults.SendBuffer
	}
	return &Handler{
		registry: registry,
		router:   router,
		options:  options,
		logger:   logger.With("component", "websocket"),
		conns:    make(map[*Connection]struct{}),
	}
}

// HandleWebSocket upgrades the request and starts the connection lifecycle
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	wsConn := NewConnection(conn, h.options.SendBuffer, h.options.WriteTimeout)
	h.logger.Info("connection opened", "connection_id", wsConn.ID(), "remote_addr", r.RemoteAddr)

	h.mu.Lock()
	h.conns[wsConn] = struct{}{}
	h.mu.Unlock()

	go h.handleConnection(wsConn)
}

// handleConnection runs the heartbeat and read pump until the peer leaves
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// FUNCTIONAL DISCOVERY: Deregistration on every exit path keeps dead
		// handles from being broadcast to indefinitely
		h.registry.Unregister(conn)
		if f, ok := h.router.(forgetter); ok {
			f.Forget(conn.ID())
		}
		_ = conn.Close()

		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		h.logger.Info("connection closed", "connection_id", conn.ID(), "role", conn.Role())
	}()

	readTimeout := h.options.ReadTimeout
	if err := conn.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		h.logger.Warn("failed to set read deadline", "connection_id", conn.ID(), "error", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(conn)

	ctx := context.Background()
	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "connection_id", conn.ID(), "error", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		h.dispatch(ctx, conn, data)
	}
}

// dispatch decodes one inbound frame and hands it to the router
func (h *Handler) dispatch(ctx context.Context, conn *Connection, data []byte) {
	var signal types.Signal
	if err := json.Unmarshal(data, &signal); err != nil {
		h.reject(conn, "", ErrMalformedSignal)
		return
	}

	if err := h.router.RouteSignal(ctx, conn, &signal); err != nil {
		h.reject(conn, signal.Signal, err)
	}
}

// reject tells the sender its signal was not applied
func (h *Handler) reject(conn *Connection, signal string, cause error) {
	h.logger.Debug("signal rejected", "connection_id", conn.ID(), "signal", signal, "error", cause)

	frame := types.Envelope{
		Event:     types.EventError,
		Data:      types.ErrorNotice{Signal: signal, Error: cause.Error()},
		Timestamp: time.Now(),
	}
	if err := conn.WriteJSON(frame); err != nil {
		h.logger.Debug("failed to send error frame", "connection_id", conn.ID(), "error", err)
	}
}

// pingLoop keeps the read deadline alive through pong replies
func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.options.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

// OpenConnections returns the number of connections not yet closed
func (h *Handler) OpenConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll closes every open connection; used during shutdown since
// hijacked sockets outlive http.Server.Shutdown
func (h *Handler) CloseAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
