package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.HTTP.Port != 3000 {
		t.Errorf("Expected default port 3000, got %d", config.HTTP.Port)
	}
	if config.Journal.Enabled {
		t.Error("Journal should be disabled by default")
	}
	if config.WebSocket.SendBuffer != 100 {
		t.Errorf("Expected send buffer 100, got %d", config.WebSocket.SendBuffer)
	}
	if config.Address() != "0.0.0.0:3000" {
		t.Errorf("Expected address 0.0.0.0:3000, got %s", config.Address())
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.HTTP.Port = -1 }},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }},
		{"zero read timeout", func(c *Config) { c.HTTP.ReadTimeout = 0 }},
		{"zero shutdown timeout", func(c *Config) { c.HTTP.ShutdownTimeout = 0 }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"read timeout below ping", func(c *Config) { c.WebSocket.ReadTimeout = c.WebSocket.PingInterval }},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }},
		{"negative signal rate", func(c *Config) { c.WebSocket.SignalRatePerMinute = -1 }},
		{"enabled journal without path", func(c *Config) { c.Journal.Enabled = true; c.Journal.Path = "" }},
		{"enabled journal zero queue", func(c *Config) { c.Journal.Enabled = true; c.Journal.QueueSize = 0 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
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

	// A disabled journal is not validated
	config := DefaultConfig()
	config.Journal.Path = ""
	if err := config.Validate(); err != nil {
		t.Errorf("Disabled journal should not need a path: %v", err)
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("SESSIONRELAY_HTTP_HOST", "127.0.0.1")
	t.Setenv("SESSIONRELAY_WEBSOCKET_PING_INTERVAL", "5s")
	t.Setenv("SESSIONRELAY_JOURNAL_ENABLED", "true")
	t.Setenv("SESSIONRELAY_JOURNAL_QUEUE_SIZE", "32")
	t.Setenv("SESSIONRELAY_LOG_FORMAT", "json")
	t.Setenv("SESSIONRELAY_WEBSOCKET_SEND_BUFFER", "not-a-number")

	config := LoadFromEnv()

	if config.HTTP.Port != 4000 {
		t.Errorf("Expected PORT to set 4000, got %d", config.HTTP.Port)
	}
	if config.HTTP.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", config.HTTP.Host)
	}
	if config.WebSocket.PingInterval != 5*time.Second {
		t.Errorf("Expected ping interval 5s, got %v", config.WebSocket.PingInterval)
	}
	if !config.Journal.Enabled || config.Journal.QueueSize != 32 {
		t.Errorf("Expected enabled journal with queue 32, got %+v", config.Journal)
	}
	if config.Log.Format != "json" {
		t.Errorf("Expected json log format, got %s", config.Log.Format)
	}
	if config.WebSocket.SendBuffer != 100 {
		t.Errorf("Unparsable value should keep default, got %d", config.WebSocket.SendBuffer)
	}
}

func TestConfig_PrefixedPortWins(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("SESSIONRELAY_HTTP_PORT", "5000")

	if port := LoadFromEnv().HTTP.Port; port != 5000 {
		t.Errorf("Expected prefixed port 5000, got %d", port)
	}
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := writeFile(t, "relay.yaml", `
http:
  port: 8081
websocket:
  ping_interval: 10s
  read_timeout: 30s
journal:
  enabled: true
  path: /tmp/relay.db
log:
  level: debug
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.HTTP.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", config.HTTP.Port)
	}
	if config.HTTP.Host != "0.0.0.0" {
		t.Errorf("Absent keys should keep defaults, got host %q", config.HTTP.Host)
	}
	if config.WebSocket.PingInterval != 10*time.Second || config.WebSocket.ReadTimeout != 30*time.Second {
		t.Errorf("Durations not parsed: %+v", config.WebSocket)
	}
	if !config.Journal.Enabled || config.Journal.Path != "/tmp/relay.db" {
		t.Errorf("Journal section not applied: %+v", config.Journal)
	}
	if config.Log.Level != "debug" {
		t.Errorf("Expected debug level, got %s", config.Log.Level)
	}
}

func TestConfig_LoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Missing file should fail")
	}

	malformed := writeFile(t, "bad.yaml", "http: [unclosed")
	if _, err := LoadFromFile(malformed); err == nil {
		t.Error("Malformed YAML should fail")
	}

	invalid := writeFile(t, "invalid.yaml", "http:\n  port: 0\n")
	_, err := LoadFromFile(invalid)
	if err == nil || !strings.Contains(err.Error(), "port") {
		t.Errorf("Expected port validation error, got %v", err)
	}
}

func TestConfig_LoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("SESSIONRELAY_HTTP_HOST", "10.0.0.1")
	t.Setenv("SESSIONRELAY_HTTP_PORT", "4000")
	path := writeFile(t, "relay.yaml", "http:\n  port: 9000\n")

	config, err := LoadConfigWithPrecedence(path)
	if err != nil {
		t.Fatalf("LoadConfigWithPrecedence failed: %v", err)
	}

	// File beats environment; environment beats defaults
	if config.HTTP.Port != 9000 {
		t.Errorf("Expected file port 9000, got %d", config.HTTP.Port)
	}
	if config.HTTP.Host != "10.0.0.1" {
		t.Errorf("Expected env host 10.0.0.1, got %s", config.HTTP.Host)
	}

	if _, err := LoadConfigWithPrecedence(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Explicit missing file should fail")
	}
}

func TestConfig_DatabaseConfig(t *testing.T) {
	config := DefaultConfig()
	config.Journal.Path = "/var/lib/relay.db"
	config.Journal.QueueSize = 7
	config.Journal.Timeout = 2 * time.Second

	db := config.DatabaseConfig()
	if db.DatabasePath != "/var/lib/relay.db" || db.QueueSize != 7 || db.WriteTimeout != 2*time.Second {
		t.Errorf("Unexpected database config: %+v", db)
	}
	if err := db.Validate(); err != nil {
		t.Errorf("Converted config should validate: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "SESSIONRELAY_TEST_DOTENV=loaded\nSESSIONRELAY_TEST_PRESET=fromfile\n")
	t.Setenv("SESSIONRELAY_TEST_PRESET", "preset")
	t.Setenv("SESSIONRELAY_TEST_DOTENV", "")
	os.Unsetenv("SESSIONRELAY_TEST_DOTENV")

	if err := LoadDotEnv(path, true); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("SESSIONRELAY_TEST_DOTENV"); got != "loaded" {
		t.Errorf("Expected loaded, got %q", got)
	}
	if got := os.Getenv("SESSIONRELAY_TEST_PRESET"); got != "preset" {
		t.Errorf("Existing variables must not be overridden, got %q", got)
	}

	missing := filepath.Join(t.TempDir(), "absent.env")
	if err := LoadDotEnv(missing, false); err != nil {
		t.Errorf("Optional missing file should be ignored: %v", err)
	}
	if err := LoadDotEnv(missing, true); err == nil {
		t.Error("Required missing file should fail")
	}
}
