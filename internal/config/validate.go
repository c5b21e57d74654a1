package config

import (
	"fmt"
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateRealtime(&cfg.Realtime)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.read_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.WriteTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.write_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.MaxBodySize < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.max_body_size",
			Message: "must be non-negative",
		})
	}

	if cfg.CORS.Enabled && cfg.CORS.AllowCredentials {
		for _, origin := range cfg.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, ValidationError{
					Field:   "server.cors",
					Message: "security: allow_credentials=true with allowed_origins=[\"*\"] is insecure",
				})
				break
			}
		}
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "database.path",
			Message: "must not be empty",
		})
	}

	if cfg.BusyTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "database.busy_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.MaxOpenConns < 1 {
		errs = append(errs, ValidationError{
			Field:   "database.max_open_conns",
			Message: "must be at least 1",
		})
	}

	if cfg.MaxIdleConns < 0 {
		errs = append(errs, ValidationError{
			Field:   "database.max_idle_conns",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateScheduler(cfg *SchedulerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.PollInterval < time.Second {
		errs = append(errs, ValidationError{
			Field:   "scheduler.poll_interval",
			Message: "must be at least 1 second",
		})
	}

	if cfg.ShutdownGrace < 0 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.shutdown_grace",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateEngine(cfg *EngineConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Kind {
	case "local":
	default:
		errs = append(errs, ValidationError{
			Field:   "engine.kind",
			Message: fmt.Sprintf("unknown engine kind %q (supported: local)", cfg.Kind),
		})
	}

	return errs
}

func validateRealtime(cfg *RealtimeConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.MaxConnections < 1 {
		errs = append(errs, ValidationError{
			Field:   "realtime.max_connections",
			Message: "must be at least 1",
		})
	}

	if cfg.BufferSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "realtime.buffer_size",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q (supported: debug, info, warn, error)", cfg.Level),
		})
	}

	switch cfg.Format {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q (supported: json, console)", cfg.Format),
		})
	}

	return errs
}
