package database

import (
	"strings"
	"testing"
)

func TestSchemaValidator_EmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	validator := NewSchemaValidator(db)

	if err := validator.ValidateTablesExist(); err == nil {
		t.Error("ValidateTablesExist should fail on empty database")
	}
	if err := validator.ValidateIndexes(); err == nil {
		t.Error("ValidateIndexes should fail on empty database")
	}
}

func TestSchemaValidator_AfterMigrations(t *testing.T) {
	db := openTestDB(t)
	if err := NewMigrationManager(db).ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}

	validator := NewSchemaValidator(db)
	if err := validator.Validate(); err != nil {
		t.Errorf("Validate failed after migrations: %v", err)
	}
	if err := validator.ValidateConstraints(); err != nil {
		t.Errorf("ValidateConstraints failed: %v", err)
	}

	// Constraint probes leave nothing behind
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM session_events").Scan(&count); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no probe rows, got %d", count)
	}
}

func TestSchemaValidator_WrongColumnType(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`
		CREATE TABLE session_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			event TEXT NOT NULL,
			status TEXT NOT NULL,
			redirect_target TEXT,
			observer_count TEXT,
			timestamp DATETIME
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	err = NewSchemaValidator(db).ValidateTableStructure()
	if err == nil || !strings.Contains(err.Error(), "observer_count") {
		t.Errorf("Expected observer_count type error, got %v", err)
	}
}

func TestSchemaValidator_UnenforcedConstraint(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`
		CREATE TABLE session_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			event TEXT NOT NULL,
			status TEXT NOT NULL,
			redirect_target TEXT NOT NULL DEFAULT '',
			observer_count INTEGER NOT NULL DEFAULT 0,
			timestamp DATETIME NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	if err := NewSchemaValidator(db).ValidateConstraints(); err == nil {
		t.Error("Expected missing check constraint to be reported")
	}
}
