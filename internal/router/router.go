package router

import (
	"context"
	"log/slog"

	"sessionrelay/pkg/interfaces"
	"sessionrelay/pkg/types"
)

// roleAssigner is implemented by connections that remember their role
type roleAssigner interface {
	SetRole(role string)
}

// Router implements the SignalRouter interface
// ARCHITECTURAL DISCOVERY: Pure dispatch; membership and catch-up are owned
// by the session manager so they share its exclusive-access boundary
type Router struct {
	sessions    interfaces.SessionManager
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewRouter creates a signal router. A limit of zero or less disables rate
// limiting.
func NewRouter(sessions interfaces.SessionManager, signalsPerMinute int, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		sessions:    sessions,
		rateLimiter: NewRateLimiter(signalsPerMinute),
		logger:      logger.With("component", "router"),
	}
}

// RouteSignal applies one inbound signal from conn
func (r *Router) RouteSignal(ctx context.Context, conn interfaces.Connection, signal *types.Signal) error {
	if conn == nil {
		return ErrNilConnection
	}
	if signal == nil {
		return ErrUnknownSignal
	}

	// TECHNICAL DISCOVERY: Rate limiting applied per connection before any
	// state is touched
	if !r.rateLimiter.Allow(conn.ID()) {
		return ErrRateLimitExceeded
	}

	switch signal.Signal {
	case types.SignalObserverJoin:
		assignRole(conn, types.RoleObserver)
		r.sessions.JoinObserver(conn)
		return nil

	case types.SignalProducerSubscribe:
		if err := types.ValidateSessionID(signal.SessionID); err != nil {
			return ErrMissingSessionID
		}
		assignRole(conn, types.RoleProducer)
		r.sessions.SubscribeProducer(signal.SessionID, conn)
		return nil

	default:
		r.logger.Debug("unknown signal", "connection_id", conn.ID(), "signal", signal.Signal)
		return ErrUnknownSignal
	}
}

// Forget drops rate-limit state for a closed connection
func (r *Router) Forget(connectionID string) {
	r.rateLimiter.Remove(connectionID)
}

// CleanupRateLimits sweeps rate-limit entries left by idle connections
func (r *Router) CleanupRateLimits() {
	r.rateLimiter.Cleanup()
}

func assignRole(conn interfaces.Connection, role string) {
	if assigner, ok := conn.(roleAssigner); ok {
		assigner.SetRole(role)
	}
}

var _ interfaces.SignalRouter = (*Router)(nil)
