package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	dbconfig "sessionrelay/pkg/database"
	"sessionrelay/pkg/interfaces"
	"sessionrelay/pkg/types"
)

// Manager implements the Journal interface on SQLite
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	logger       *slog.Logger
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // guards closed and sends on writeChannel
}

// writeOperation is either an entry to insert or a flush marker
type writeOperation struct {
	entry *types.JournalEntry
	done  chan struct{}
}

// NewManager opens the journal database, applies migrations and starts the
// writer goroutine
func NewManager(config *dbconfig.Config, logger *slog.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid journal config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(config.DatabasePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}
	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	if err := dbconfig.NewSchemaValidator(db).Validate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema invalid: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		logger:       logger.With("component", "journal"),
		writeChannel: make(chan writeOperation, config.QueueSize),
		shutdown:     make(chan struct{}),
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop inserts queued entries until shutdown, then drains what is left
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			m.process(op)
		case <-m.shutdown:
			for {
				select {
				case op := <-m.writeChannel:
					m.process(op)
				default:
					m.logger.Debug("journal writer stopped")
					return
				}
			}
		}
	}
}

func (m *Manager) process(op writeOperation) {
	if op.done != nil {
		close(op.done)
		return
	}

	// FUNCTIONAL DISCOVERY: A failed insert is retried exactly once
	err := m.insert(op.entry)
	if err != nil {
		m.logger.Warn("journal write failed, retrying", "session_id", op.entry.SessionID, "error", err)
		time.Sleep(m.config.RetryDelay)
		if err = m.insert(op.entry); err != nil {
			m.logger.Error("journal write failed after retry",
				"session_id", op.entry.SessionID,
				"event", op.entry.Event,
				"error", err)
		}
	}
}

func (m *Manager) insert(entry *types.JournalEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.WriteTimeout)
	defer cancel()

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO session_events (id, session_id, event, status, redirect_target, observer_count, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.SessionID,
		entry.Event,
		string(entry.Status),
		entry.RedirectTarget,
		entry.ObserverCount,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// Append queues entry for the writer. It never blocks: a full queue drops the
// entry and returns ErrQueueFull.
func (m *Manager) Append(entry *types.JournalEntry) error {
	if entry == nil {
		return ErrNilEntry
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrJournalClosed
	}

	select {
	case m.writeChannel <- writeOperation{entry: entry}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Flush waits until every entry queued before the call has been written
func (m *Manager) Flush(ctx context.Context) error {
	done := make(chan struct{})

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrJournalClosed
	}
	select {
	case m.writeChannel <- writeOperation{done: done}:
		m.mu.RUnlock()
	case <-ctx.Done():
		m.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// History returns the entries for sessionID oldest first
func (m *Manager) History(ctx context.Context, sessionID string) ([]*types.JournalEntry, error) {
	// ARCHITECTURAL DISCOVERY: Reads bypass the writer and run concurrently
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, session_id, event, status, redirect_target, observer_count, timestamp
		FROM session_events
		WHERE session_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*types.JournalEntry
	for rows.Next() {
		var entry types.JournalEntry
		var status string
		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.Event,
			&status,
			&entry.RedirectTarget,
			&entry.ObserverCount,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entry.Status = types.SessionStatus(status)
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}
	return entries, nil
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrJournalClosed
	}

	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM session_events").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// QueueDepth returns the number of entries waiting for the writer
func (m *Manager) QueueDepth() int {
	return len(m.writeChannel)
}

// Close stops accepting entries, writes what is queued and closes the database
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

var _ interfaces.Journal = (*Manager)(nil)
