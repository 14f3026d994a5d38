package interfaces

import (
	"context"

	"sessionrelay/pkg/types"
)

// SessionManager is the session lifecycle controller
// ARCHITECTURAL DISCOVERY: Every operation that mutates the store or the
// observer set runs inside one exclusive-access boundary together with the
// notifications it triggers
type SessionManager interface {
	// Register creates a fresh waiting record, replacing any previous one
	Register(ctx context.Context, req types.RegisterRequest) (*types.RegisterResult, error)

	// Lookup returns a copy of the record or ErrSessionNotFound
	Lookup(ctx context.Context, sessionID string) (*types.Session, error)

	// Complete moves a record to completed and notifies its producer
	Complete(ctx context.Context, sessionID string, req types.CompleteRequest) (*types.Session, error)

	// Waiting returns the waiting queue ordered by creation time
	Waiting(ctx context.Context) []*types.Session

	// Snapshot returns counts plus the waiting queue
	Snapshot(ctx context.Context) types.Snapshot

	// JoinObserver adds an observer and sends it the catch-up snapshot
	JoinObserver(conn Connection)

	// SubscribeProducer binds a producer connection to its session and
	// acknowledges it with "subscribed"
	SubscribeProducer(sessionID string, conn Connection)

	// History returns the journal entries recorded for sessionID
	History(ctx context.Context, sessionID string) ([]*types.JournalEntry, error)
}
