package interfaces

// Connection represents a push-channel client connection
// ARCHITECTURAL DISCOVERY: Pure abstraction without transport details keeps
// the registry and broadcaster testable with in-memory fakes
type Connection interface {
	// ID returns the server-assigned connection identifier
	ID() string

	// Role returns "observer", "producer" or "" until the first signal
	Role() string

	// WriteJSON queues a value for delivery (thread-safe, non-blocking)
	// FUNCTIONAL DISCOVERY: Implementations must never block the caller on a
	// slow peer; a full send buffer is reported as an error instead
	WriteJSON(v any) error

	// WriteRaw queues an already-encoded frame (thread-safe, non-blocking)
	WriteRaw(data []byte) error

	// Close closes the connection and releases its goroutines
	Close() error
}

// ObserverRegistry tracks live observers and producer bindings
// TECHNICAL DISCOVERY: Join and Leave fire from different connection
// goroutines and must be idempotent
type ObserverRegistry interface {
	// Join adds conn to the observer set; no-op if already present
	Join(conn Connection)

	// Leave removes conn from the observer set; no-op if absent
	Leave(conn Connection)

	// Members returns the observers present at call time
	Members() []Connection

	// ObserverCount returns the number of live observers
	ObserverCount() int

	// BindProducer routes future redirect notices for sessionID to conn
	BindProducer(sessionID string, conn Connection)

	// ProducerConnections returns every connection bound to sessionID
	ProducerConnections(sessionID string) []Connection

	// Unregister drops every trace of conn after disconnect
	Unregister(conn Connection)
}
