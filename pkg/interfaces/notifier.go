package interfaces

import "sessionrelay/pkg/types"

// Notifier delivers push events to connections
// ARCHITECTURAL DISCOVERY: Delivery failures are absorbed behind this
// boundary; callers only ever receive a report
type Notifier interface {
	// Broadcast delivers event to every observer present at call time
	Broadcast(event string, payload any) types.DeliveryReport

	// Unicast delivers event to exactly one connection
	Unicast(conn Connection, event string, payload any) types.DeliveryReport

	// NotifyProducer delivers event to the connections bound to sessionID
	NotifyProducer(sessionID string, event string, payload any) types.DeliveryReport
}
