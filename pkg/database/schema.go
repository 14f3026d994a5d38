package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator verifies the journal schema after migrations
// ARCHITECTURAL DISCOVERY: Separate from the migration system so startup can
// refuse a database some other tool has altered
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// Validate runs every check
func (v *SchemaValidator) Validate() error {
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	if err := v.ValidateTableStructure(); err != nil {
		return err
	}
	return v.ValidateIndexes()
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"session_events":    "Lifecycle journal",
		"schema_migrations": "Migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.objectExists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

// ValidateTableStructure verifies column types match what the journal scans
func (v *SchemaValidator) ValidateTableStructure() error {
	eventColumns := map[string]string{
		"id":              "TEXT",
		"session_id":      "TEXT",
		"event":           "TEXT",
		"status":          "TEXT",
		"redirect_target": "TEXT",
		"observer_count":  "INTEGER",
		"timestamp":       "DATETIME",
	}

	if err := v.validateColumns("session_events", eventColumns); err != nil {
		return fmt.Errorf("session_events table structure invalid: %w", err)
	}
	return nil
}

// ValidateIndexes verifies that the history lookup index exists
func (v *SchemaValidator) ValidateIndexes() error {
	requiredIndexes := map[string]string{
		"idx_session_events_session_time": "History retrieval",
		"idx_session_events_event":        "Event filtering",
	}

	for index, purpose := range requiredIndexes {
		exists, err := v.objectExists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s (%s): %w", index, purpose, err)
		}
		if !exists {
			return fmt.Errorf("required index %s (%s) does not exist", index, purpose)
		}
	}

	return nil
}

// ValidateConstraints verifies the status and event checks are enforced.
// Probe rows are written inside a transaction that is always rolled back.
func (v *SchemaValidator) ValidateConstraints() error {
	tx, err := v.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	probes := []struct {
		name  string
		event string
		state string
	}{
		{"status", "new_session", "abandoned"},
		{"event", "session_deleted", "waiting"},
	}

	for _, probe := range probes {
		_, err := tx.Exec(`
			INSERT INTO session_events (id, session_id, event, status, timestamp)
			VALUES (?, 'constraint-probe', ?, ?, CURRENT_TIMESTAMP)
		`, "probe-"+probe.name, probe.event, probe.state)
		if err == nil {
			return fmt.Errorf("check constraint not enforced: session_events.%s", probe.name)
		}
	}

	return nil
}

func (v *SchemaValidator) objectExists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// validateColumns checks that a table has the expected columns with correct types
func (v *SchemaValidator) validateColumns(tableName string, expectedColumns map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	foundColumns := make(map[string]string)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var defaultValue any
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		foundColumns[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for expectedCol, expectedType := range expectedColumns {
		foundType, exists := foundColumns[expectedCol]
		if !exists {
			return fmt.Errorf("column %s not found", expectedCol)
		}
		if foundType != expectedType {
			return fmt.Errorf("column %s has type %s, expected %s", expectedCol, foundType, expectedType)
		}
	}

	return nil
}
