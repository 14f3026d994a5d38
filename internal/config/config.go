package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	dbconfig "sessionrelay/pkg/database"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "SESSIONRELAY_"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Journal   JournalConfig   `yaml:"journal"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WebSocketConfig controls heartbeat, buffering and inbound signal limits
type WebSocketConfig struct {
	PingInterval        time.Duration `yaml:"ping_interval"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	SendBuffer          int           `yaml:"send_buffer"`
	SignalRatePerMinute int           `yaml:"signal_rate_per_minute"`
}

// JournalConfig controls the optional lifecycle journal
// FUNCTIONAL DISCOVERY: Disabled by default; the relay keeps all live state
// in memory either way
type JournalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Timeout   time.Duration `yaml:"timeout"`
	QueueSize int           `yaml:"queue_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() *Config {
	journal := dbconfig.DefaultConfig()
	return &Config{
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval:        25 * time.Second,
			ReadTimeout:         60 * time.Second,
			WriteTimeout:        10 * time.Second,
			SendBuffer:          100,
			SignalRatePerMinute: 120,
		},
		Journal: JournalConfig{
			Enabled:   false,
			Path:      journal.DatabasePath,
			Timeout:   journal.WriteTimeout,
			QueueSize: journal.QueueSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP shutdown timeout must be positive")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("WebSocket send buffer must be positive")
	}
	if c.WebSocket.SignalRatePerMinute < 0 {
		return fmt.Errorf("WebSocket signal rate cannot be negative")
	}

	if c.Journal.Enabled {
		if c.Journal.Path == "" {
			return fmt.Errorf("journal path cannot be empty")
		}
		if c.Journal.Timeout <= 0 {
			return fmt.Errorf("journal timeout must be positive")
		}
		if c.Journal.QueueSize <= 0 {
			return fmt.Errorf("journal queue size must be positive")
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	return nil
}

// Address returns the listen address
func (c *Config) Address() string {
	return net.JoinHostPort(c.HTTP.Host, strconv.Itoa(c.HTTP.Port))
}

// DatabaseConfig converts the journal section to storage settings
func (c *Config) DatabaseConfig() *dbconfig.Config {
	db := dbconfig.DefaultConfig()
	db.DatabasePath = c.Journal.Path
	db.WriteTimeout = c.Journal.Timeout
	db.QueueSize = c.Journal.QueueSize
	return db
}

// LoadDotEnv loads KEY=value files into the process environment without
// overriding variables that are already set. A missing file is not an error
// unless required is true.
func LoadDotEnv(path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv returns defaults overridden by environment variables
func LoadFromEnv() *Config {
	config := DefaultConfig()
	config.applyEnv()
	return config
}

// applyEnv overlays environment variables. Unparsable values are ignored.
// FUNCTIONAL DISCOVERY: Bare PORT is honoured for platform deployments; the
// prefixed variable wins when both are set
func (c *Config) applyEnv() {
	envInt("PORT", &c.HTTP.Port)
	envString(EnvPrefix+"HTTP_HOST", &c.HTTP.Host)
	envInt(EnvPrefix+"HTTP_PORT", &c.HTTP.Port)
	envDuration(EnvPrefix+"HTTP_READ_TIMEOUT", &c.HTTP.ReadTimeout)
	envDuration(EnvPrefix+"HTTP_WRITE_TIMEOUT", &c.HTTP.WriteTimeout)
	envDuration(EnvPrefix+"HTTP_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout)

	envDuration(EnvPrefix+"WEBSOCKET_PING_INTERVAL", &c.WebSocket.PingInterval)
	envDuration(EnvPrefix+"WEBSOCKET_READ_TIMEOUT", &c.WebSocket.ReadTimeout)
	envDuration(EnvPrefix+"WEBSOCKET_WRITE_TIMEOUT", &c.WebSocket.WriteTimeout)
	envInt(EnvPrefix+"WEBSOCKET_SEND_BUFFER", &c.WebSocket.SendBuffer)
	envInt(EnvPrefix+"WEBSOCKET_SIGNAL_RATE_PER_MINUTE", &c.WebSocket.SignalRatePerMinute)

	envBool(EnvPrefix+"JOURNAL_ENABLED", &c.Journal.Enabled)
	envString(EnvPrefix+"JOURNAL_PATH", &c.Journal.Path)
	envDuration(EnvPrefix+"JOURNAL_TIMEOUT", &c.Journal.Timeout)
	envInt(EnvPrefix+"JOURNAL_QUEUE_SIZE", &c.Journal.QueueSize)

	envString(EnvPrefix+"LOG_LEVEL", &c.Log.Level)
	envString(EnvPrefix+"LOG_FORMAT", &c.Log.Format)
}

// LoadFromFile returns defaults overridden by a YAML file
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.applyFile(path); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// applyFile overlays the keys present in a YAML file; absent keys keep
// their current value
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadConfigWithPrecedence layers defaults, environment and an optional
// YAML file, in increasing precedence, and validates the result
func LoadConfigWithPrecedence(path string) (*Config, error) {
	config := LoadFromEnv()

	if path != "" {
		if err := config.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func envString(key string, target *string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func envInt(key string, target *int) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*target = n
		}
	}
}

func envBool(key string, target *bool) {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			*target = b
		}
	}
}

func envDuration(key string, target *time.Duration) {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			*target = d
		}
	}
}
