package config

import "time"

// Default configuration values.
const (
	// Server defaults.
	DefaultHost         = "localhost"
	DefaultPort         = 8090
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
	DefaultMaxBodySize  = 10 * 1024 * 1024 // 10MB

	// Database defaults.
	DefaultDBPath       = "coxswain.db"
	DefaultCacheSize    = -64000 // 64MB
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with single writer
	DefaultMaxIdleConns = 1

	// Scheduler defaults.
	DefaultPollInterval  = 60 * time.Second
	DefaultShutdownGrace = 10 * time.Second

	// Engine defaults.
	DefaultEngineKind = "local"
	DefaultModel      = "gpt-4o-mini"

	// Realtime defaults.
	DefaultMaxConnections = 1000
	DefaultBufferSize     = 256

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
			CORS: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"*"},
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: false,
				MaxAge:           12 * time.Hour,
			},
		},
		Database: DatabaseConfig{
			Path:         DefaultDBPath,
			WALMode:      true,
			CacheSize:    DefaultCacheSize,
			BusyTimeout:  DefaultBusyTimeout,
			ForeignKeys:  true,
			MaxOpenConns: DefaultMaxOpenConns,
			MaxIdleConns: DefaultMaxIdleConns,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			PollInterval:  DefaultPollInterval,
			ShutdownGrace: DefaultShutdownGrace,
		},
		Engine: EngineConfig{
			Kind:         DefaultEngineKind,
			DefaultModel: DefaultModel,
		},
		Realtime: RealtimeConfig{
			Enabled:        true,
			MaxConnections: DefaultMaxConnections,
			BufferSize:     DefaultBufferSize,
		},
		Logging: LoggingConfig{
			Level:     DefaultLogLevel,
			Format:    DefaultLogFormat,
			Caller:    false,
			Timestamp: true,
		},
	}
}
