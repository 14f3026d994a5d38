package websocket

import (
	"sync"

	"sessionrelay/pkg/interfaces"
)

// Registry tracks observer membership and producer bindings
// ARCHITECTURAL DISCOVERY: Pure connection bookkeeping; the registry never
// writes to a connection and never closes one it does not own
type Registry struct {
	mu        sync.RWMutex                                // TECHNICAL DISCOVERY: RWMutex favours the read-heavy fanout path
	observers map[string]interfaces.Connection            // connectionID -> Connection
	producers map[string]map[string]interfaces.Connection // sessionID -> connectionID -> Connection
	bindings  map[string]string                           // connectionID -> sessionID
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		observers: make(map[string]interfaces.Connection),
		producers: make(map[string]map[string]interfaces.Connection),
		bindings:  make(map[string]string),
	}
}

// Join adds conn to the observer set; joining twice is a no-op
func (r *Registry) Join(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[conn.ID()] = conn
}

// Leave removes conn from the observer set; leaving when absent is a no-op
func (r *Registry) Leave(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, conn.ID())
}

// Members returns the observers present at call time
func (r *Registry) Members() []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]interfaces.Connection, 0, len(r.observers))
	for _, conn := range r.observers {
		members = append(members, conn)
	}
	return members
}

// ObserverCount returns the number of live observers
func (r *Registry) ObserverCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// BindProducer routes redirect notices for sessionID to conn.
// A connection is bound to at most one session; rebinding moves it.
func (r *Registry) BindProducer(sessionID string, conn interfaces.Connection) {
	if conn == nil || sessionID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.unbindLocked(conn.ID())

	if r.producers[sessionID] == nil {
		r.producers[sessionID] = make(map[string]interfaces.Connection)
	}
	r.producers[sessionID][conn.ID()] = conn
	r.bindings[conn.ID()] = sessionID
}

// ProducerConnections returns every connection bound to sessionID
func (r *Registry) ProducerConnections(sessionID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bound := r.producers[sessionID]
	connections := make([]interfaces.Connection, 0, len(bound))
	for _, conn := range bound {
		connections = append(connections, conn)
	}
	return connections
}

// Unregister removes conn from the observer set and from any producer
// binding. Safe to call more than once.
func (r *Registry) Unregister(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.observers, conn.ID())
	r.unbindLocked(conn.ID())
}

// unbindLocked drops a connection's producer binding and cleans up empty
// session maps. Caller holds r.mu.
func (r *Registry) unbindLocked(connID string) {
	sessionID, ok := r.bindings[connID]
	if !ok {
		return
	}
	delete(r.bindings, connID)

	if bound, exists := r.producers[sessionID]; exists {
		delete(bound, connID)
		if len(bound) == 0 {
			delete(r.producers, sessionID)
		}
	}
}

// Stats returns registry statistics for the health endpoint
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"observers":      len(r.observers),
		"producers":      len(r.bindings),
		"bound_sessions": len(r.producers),
	}
}

var _ interfaces.ObserverRegistry = (*Registry)(nil)
