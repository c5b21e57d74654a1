// Package config provides configuration management for Coxswain.
package config

import (
	"strconv"
	"time"
)

// Config is the root configuration structure for Coxswain.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Enable CORS
	CORS CORSConfig `mapstructure:"cors"`

	// Request timeouts
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enable CORS
	Enabled bool `mapstructure:"enabled"`

	// Allowed origins (use ["*"] for all)
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Exposed headers
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// Allow credentials
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// Max age for preflight cache
	MaxAge time.Duration `mapstructure:"max_age"`
}

// AllowedMethods returns the fixed set of methods the API accepts.
func (c *CORSConfig) AllowedMethods() []string {
	return []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
}

// AllowedHeaders returns the fixed set of request headers the API accepts.
func (c *CORSConfig) AllowedHeaders() []string {
	return []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Cache size in KB (negative for KB, positive for pages)
	CacheSize int `mapstructure:"cache_size"`

	// Busy timeout
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// Enable foreign keys
	ForeignKeys bool `mapstructure:"foreign_keys"`

	// Maximum open connections
	MaxOpenConns int `mapstructure:"max_open_conns"`

	// Maximum idle connections
	MaxIdleConns int `mapstructure:"max_idle_conns"`

	// Connection max lifetime
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig holds due-poller settings.
type SchedulerConfig struct {
	// Enable the background poller
	Enabled bool `mapstructure:"enabled"`

	// How often the poller wakes up to look for due schedules
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// How long Shutdown waits for in-flight executions to finish
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// EngineConfig holds execution engine settings.
type EngineConfig struct {
	// Engine kind: "local" runs the built-in engine
	Kind string `mapstructure:"kind"`

	// Default model name recorded on executions when the schedule sets none
	DefaultModel string `mapstructure:"default_model"`
}

// RealtimeConfig holds WebSocket event stream settings.
type RealtimeConfig struct {
	// Enable the /api/realtime endpoint
	Enabled bool `mapstructure:"enabled"`

	// Maximum concurrent WebSocket connections
	MaxConnections int `mapstructure:"max_connections"`

	// Per-client event buffer size
	BufferSize int `mapstructure:"buffer_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Log format (json, console)
	Format string `mapstructure:"format"`

	// Include caller info
	Caller bool `mapstructure:"caller"`

	// Include timestamp
	Timestamp bool `mapstructure:"timestamp"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}
