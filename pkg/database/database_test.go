package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	})
	return db
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.DatabasePath != "./data/sessionrelay.db" {
		t.Errorf("Expected DatabasePath './data/sessionrelay.db', got %s", config.DatabasePath)
	}
	if config.QueueSize != 256 {
		t.Errorf("Expected QueueSize 256, got %d", config.QueueSize)
	}
	if config.WriteTimeout != 5*time.Second {
		t.Errorf("Expected WriteTimeout 5s, got %v", config.WriteTimeout)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.DatabasePath = "" }},
		{"zero max connections", func(c *Config) { c.MaxConnections = 0 }},
		{"zero lifetime", func(c *Config) { c.ConnMaxLifetime = 0 }},
		{"zero idle time", func(c *Config) { c.ConnMaxIdleTime = 0 }},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	config := &Config{DatabasePath: "/tmp/journal.db"}
	want := "/tmp/journal.db?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	if got := config.DSN(); got != want {
		t.Errorf("Expected DSN %q, got %q", want, got)
	}
}

func TestApplyPragmas(t *testing.T) {
	db := openTestDB(t)
	if err := ApplyPragmas(db); err != nil {
		t.Fatalf("ApplyPragmas failed: %v", err)
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("Failed to read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected WAL journal mode, got %q", mode)
	}
}

func TestMigrationManager_EmbeddedMigrations(t *testing.T) {
	db := openTestDB(t)
	mgr := NewMigrationManager(db)

	if err := mgr.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}

	versions, err := mgr.AppliedVersions()
	if err != nil {
		t.Fatalf("AppliedVersions failed: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001" {
		t.Errorf("Expected version 001 applied, got %v", versions)
	}

	// Applying again is a no-op
	if err := mgr.ApplyMigrations(); err != nil {
		t.Errorf("Second ApplyMigrations should not fail: %v", err)
	}
	again, _ := mgr.AppliedVersions()
	if len(again) != len(versions) {
		t.Errorf("Expected %d versions after reapply, got %d", len(versions), len(again))
	}
}

func TestMigrationManager_OrderedFromFS(t *testing.T) {
	db := openTestDB(t)
	source := fstest.MapFS{
		"sql/002_add_column.sql": {Data: []byte(`ALTER TABLE things ADD COLUMN label TEXT;`)},
		"sql/001_things.sql":     {Data: []byte(`CREATE TABLE things (id TEXT PRIMARY KEY);`)},
		"sql/README.md":          {Data: []byte(`not a migration`)},
	}

	mgr := NewMigrationManagerFS(db, source, "sql")
	if err := mgr.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO things (id, label) VALUES ('a', 'b')`); err != nil {
		t.Errorf("Migrations applied out of order: %v", err)
	}

	versions, _ := mgr.AppliedVersions()
	if len(versions) != 2 || versions[0] != "001" || versions[1] != "002" {
		t.Errorf("Expected [001 002], got %v", versions)
	}
}

func TestMigrationManager_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)
	source := fstest.MapFS{
		"sql/001_broken.sql": {Data: []byte(`CREATE TABLE ok (id TEXT); CREATE TABLE;`)},
	}

	mgr := NewMigrationManagerFS(db, source, "sql")
	if err := mgr.ApplyMigrations(); err == nil {
		t.Fatal("Expected broken migration to fail")
	}

	versions, err := mgr.AppliedVersions()
	if err != nil {
		t.Fatalf("AppliedVersions failed: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("Broken migration must not be recorded, got %v", versions)
	}
}
