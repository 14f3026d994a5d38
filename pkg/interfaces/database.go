package interfaces

import (
	"context"

	"sessionrelay/pkg/types"
)

// Journal records lifecycle events for audit and replay by operators
// ARCHITECTURAL DISCOVERY: The journal is write-behind; Append must not
// block the lifecycle critical section
type Journal interface {
	// Append queues an entry for the single writer goroutine
	Append(entry *types.JournalEntry) error

	// History returns entries for a session ordered by timestamp
	History(ctx context.Context, sessionID string) ([]*types.JournalEntry, error)

	// HealthCheck verifies storage connectivity
	HealthCheck(ctx context.Context) error

	// Close flushes pending entries and releases storage
	Close() error
}
