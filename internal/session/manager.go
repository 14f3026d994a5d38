package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"sessionrelay/pkg/interfaces"
	"sessionrelay/pkg/types"
)

// Manager implements the SessionManager interface
// ARCHITECTURAL DISCOVERY: mu is the single exclusive-access boundary. Each
// operation mutates the store and enqueues its notifications while holding
// it, so observers see register/complete for one session in the same order
type Manager struct {
	mu        sync.Mutex
	store     *Store
	observers interfaces.ObserverRegistry
	notifier  interfaces.Notifier
	journal   interfaces.Journal // nil when the journal is disabled
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a lifecycle controller. journal may be nil.
func NewManager(store *Store, observers interfaces.ObserverRegistry, notifier interfaces.Notifier, journal interfaces.Journal, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		observers: observers,
		notifier:  notifier,
		journal:   journal,
		logger:    logger.With("component", "session"),
		now:       time.Now,
	}
}

// Register creates a fresh waiting record and announces it to observers.
// An existing record with the same ID is discarded, not merged.
func (m *Manager) Register(ctx context.Context, req types.RegisterRequest) (*types.RegisterResult, error) {
	if err := types.ValidateSessionID(req.ID); err != nil {
		return nil, err
	}

	record := &types.Session{
		ID:         req.ID,
		Status:     types.StatusWaiting,
		Attributes: types.ApplyAttributeDefaults(req.Attributes, req.RemoteAddr),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, replaced := m.store.Get(req.ID)
	record.CreatedAt = m.now()
	m.store.Put(record)

	// Re-read so the broadcast carries the stored arrival sequence
	stored, _ := m.store.Get(req.ID)
	waiting := m.store.Waiting()

	newReport := m.notifier.Broadcast(types.EventNewSession, stored)
	m.notifier.Broadcast(types.EventSessionsList, waiting)

	observerCount := m.observers.ObserverCount()
	m.logger.Info("session registered",
		"session_id", req.ID,
		"replaced", replaced,
		"waiting", len(waiting),
		"observers_notified", newReport.Delivered)

	m.record(types.EventNewSession, stored, observerCount)

	return &types.RegisterResult{
		ID:            req.ID,
		ObserverCount: observerCount,
	}, nil
}

// Lookup returns a copy of the record for sessionID
func (m *Manager) Lookup(ctx context.Context, sessionID string) (*types.Session, error) {
	record, ok := m.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return record, nil
}

// Complete marks the record completed, merges the observer's overrides and
// notifies observers plus the producer bound to the session.
// FUNCTIONAL DISCOVERY: Completing an already-completed record is accepted
// and re-notifies everyone; it is logged so replays are visible
func (m *Manager) Complete(ctx context.Context, sessionID string, req types.CompleteRequest) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("complete %q: %w", sessionID, ErrSessionNotFound)
	}

	if record.Status == types.StatusCompleted {
		m.logger.Warn("session completed again, notifications will repeat",
			"session_id", sessionID,
			"previous_target", record.RedirectTarget,
			"new_target", req.RedirectTarget)
	}

	completedAt := m.now()
	record.Status = types.StatusCompleted
	record.CompletedAt = &completedAt
	record.RedirectTarget = req.RedirectTarget
	if record.Attributes == nil {
		record.Attributes = make(map[string]any, len(req.Overrides))
	}
	for key, value := range req.Overrides {
		record.Attributes[key] = value
	}

	m.store.Put(record)
	waiting := m.store.Waiting()

	m.notifier.Broadcast(types.EventSessionUpdated, record)
	m.notifier.Broadcast(types.EventSessionsList, waiting)
	redirectReport := m.notifier.NotifyProducer(sessionID, types.EventRedirect, req.RedirectNotice())

	if redirectReport.Attempted == 0 {
		m.logger.Warn("no producer connection bound for redirect", "session_id", sessionID)
	}
	m.logger.Info("session completed",
		"session_id", sessionID,
		"redirect_target", req.RedirectTarget,
		"producers_notified", redirectReport.Delivered,
		"waiting", len(waiting))

	m.record(types.EventSessionUpdated, record, m.observers.ObserverCount())

	return record.Clone(), nil
}

// Waiting returns the waiting queue
func (m *Manager) Waiting(ctx context.Context) []*types.Session {
	return m.store.Waiting()
}

// Snapshot returns store and observer counts plus the waiting queue
func (m *Manager) Snapshot(ctx context.Context) types.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	waiting := m.store.Waiting()
	return types.Snapshot{
		StoreSize:     m.store.Len(),
		WaitingCount:  len(waiting),
		ObserverCount: m.observers.ObserverCount(),
		Waiting:       waiting,
	}
}

// JoinObserver adds conn to the observer set and sends it the current
// waiting queue followed by the connection acknowledgment.
// ARCHITECTURAL DISCOVERY: Membership and catch-up snapshot happen under the
// lifecycle lock so no registration can fall between the two
func (m *Manager) JoinObserver(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.observers.Join(conn)
	waiting := m.store.Waiting()

	m.notifier.Unicast(conn, types.EventSessionsList, waiting)
	m.notifier.Unicast(conn, types.EventConnectionEstablished, types.ConnectionEstablished{
		Message:      "observer connected",
		SessionCount: len(waiting),
	})

	m.logger.Info("observer joined",
		"connection_id", conn.ID(),
		"observers", m.observers.ObserverCount(),
		"waiting", len(waiting))
}

// SubscribeProducer binds conn to sessionID for the redirect notice and
// acknowledges with "subscribed".
// ARCHITECTURAL DISCOVERY: Bind and ack share the lifecycle lock, so a
// concurrent Complete can only queue its redirect after the ack
func (m *Manager) SubscribeProducer(sessionID string, conn interfaces.Connection) {
	if conn == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.observers.BindProducer(sessionID, conn)
	m.notifier.Unicast(conn, types.EventSubscribed, types.Subscribed{SessionID: sessionID})
	m.logger.Debug("producer subscribed", "session_id", sessionID, "connection_id", conn.ID())
}

// History returns the journal entries for sessionID
func (m *Manager) History(ctx context.Context, sessionID string) ([]*types.JournalEntry, error) {
	if m.journal == nil {
		return nil, interfaces.ErrJournalDisabled
	}
	return m.journal.History(ctx, sessionID)
}

// record queues a journal entry; failures are logged and never block the caller
func (m *Manager) record(event string, record *types.Session, observerCount int) {
	if m.journal == nil {
		return
	}

	entry := &types.JournalEntry{
		ID:             uuid.New().String(),
		SessionID:      record.ID,
		Event:          event,
		Status:         record.Status,
		RedirectTarget: record.RedirectTarget,
		ObserverCount:  observerCount,
		Timestamp:      m.now(),
	}
	if err := m.journal.Append(entry); err != nil {
		m.logger.Warn("journal append failed", "session_id", record.ID, "event", event, "error", err)
	}
}

var _ interfaces.SessionManager = (*Manager)(nil)
