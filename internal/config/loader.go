package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config
}

func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "COXSWAIN"
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("coxswain")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/coxswain")
		v.AddConfigPath("/etc/coxswain")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	expandEnvInConfig(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	return Load(LoadOptions{ConfigFile: path})
}

func LoadWithDefaults() (*Config, error) {
	return Load(LoadOptions{})
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.max_body_size", cfg.Server.MaxBodySize)

	v.SetDefault("server.cors.enabled", cfg.Server.CORS.Enabled)
	v.SetDefault("server.cors.allowed_origins", cfg.Server.CORS.AllowedOrigins)
	v.SetDefault("server.cors.exposed_headers", cfg.Server.CORS.ExposedHeaders)
	// CORS methods and headers are hard-coded (see CORSConfig methods)
	v.SetDefault("server.cors.allow_credentials", cfg.Server.CORS.AllowCredentials)
	v.SetDefault("server.cors.max_age", cfg.Server.CORS.MaxAge)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.wal_mode", cfg.Database.WALMode)
	v.SetDefault("database.cache_size", cfg.Database.CacheSize)
	v.SetDefault("database.busy_timeout", cfg.Database.BusyTimeout)
	v.SetDefault("database.foreign_keys", cfg.Database.ForeignKeys)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)

	v.SetDefault("scheduler.enabled", cfg.Scheduler.Enabled)
	v.SetDefault("scheduler.poll_interval", cfg.Scheduler.PollInterval)
	v.SetDefault("scheduler.shutdown_grace", cfg.Scheduler.ShutdownGrace)

	v.SetDefault("engine.kind", cfg.Engine.Kind)
	v.SetDefault("engine.default_model", cfg.Engine.DefaultModel)

	v.SetDefault("realtime.enabled", cfg.Realtime.Enabled)
	v.SetDefault("realtime.max_connections", cfg.Realtime.MaxConnections)
	v.SetDefault("realtime.buffer_size", cfg.Realtime.BufferSize)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.caller", cfg.Logging.Caller)
	v.SetDefault("logging.timestamp", cfg.Logging.Timestamp)
}

func expandEnvInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envVar := val[2 : len(val)-1]
			if envVal := os.Getenv(envVar); envVal != "" {
				v.Set(key, envVal)
			}
		}
	}
}

func ConfigFilePath(customPath string) (string, error) {
	if customPath != "" {
		absPath, err := filepath.Abs(customPath)
		if err != nil {
			return "", fmt.Errorf("resolving config path: %w", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", absPath)
		}
		return absPath, nil
	}

	searchPaths := []string{
		"coxswain.yaml",
		"coxswain.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "coxswain", "coxswain.yaml"),
		"/etc/coxswain/coxswain.yaml",
	}

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", ErrConfigNotFound
}
