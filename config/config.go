// Package config loads dashstate configuration.
//
// Sources are layered with koanf, later ones overriding earlier ones:
// built-in defaults, an optional YAML file, then environment variables
// prefixed with DASHSTATE_ (DASHSTATE_STORE_DATA_DIR sets store.data_dir).
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/stevemurr/dashstate/logging"
	"github.com/stevemurr/dashstate/store"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "DASHSTATE_"

type Config struct {
	Server  ServerConfig   `koanf:"server"`
	Store   StoreConfig    `koanf:"store"`
	Log     logging.Config `koanf:"log"`
	Session SessionConfig  `koanf:"session"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// AllowedOrigins is the CORS allow list; "*" allows everything.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type StoreConfig struct {
	Backend    string `koanf:"backend"`
	DataDir    string `koanf:"data_dir"`
	DSN        string `koanf:"dsn"`
	QuotaBytes int64  `koanf:"quota_bytes"`
}

// Options converts the section to store.Options.
func (c StoreConfig) Options() store.Options {
	return store.Options{
		Backend:    c.Backend,
		DataDir:    c.DataDir,
		DSN:        c.DSN,
		QuotaBytes: c.QuotaBytes,
	}
}

type SessionConfig struct {
	// Preserve lists the collections that survive a logout.
	Preserve []string `koanf:"preserve"`
}

// defaults mirrors Default as a koanf layer.
func defaults() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"host":            "0.0.0.0",
			"port":            8080,
			"allowed_origins": []any{"*"},
		},
		"store": map[string]any{
			"backend":     "json",
			"data_dir":    "./data",
			"dsn":         "",
			"quota_bytes": 0,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "json",
		},
		"session": map[string]any{
			"preserve": []any{"activityLogs", "userPreferences"},
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Backend: "json",
			DataDir: "./data",
		},
		Log: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			Preserve: []string{"activityLogs", "userPreferences"},
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty), and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)
	cfg.Session.Preserve = splitList(cfg.Session.Preserve)

	if err := Verify(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey maps DASHSTATE_STORE_DATA_DIR to store.data_dir. Only the first
// underscore after the prefix separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// splitList expands comma-separated entries, which is how lists arrive
// from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Verify checks a configuration for values the rest of the program cannot use.
func Verify(cfg *Config) error {
	var errs []error
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	if !slices.Contains(store.Backends, cfg.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend %q not one of %s", cfg.Store.Backend, strings.Join(store.Backends, ", ")))
	}
	if cfg.Store.Backend == "postgres" && cfg.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required for the postgres backend"))
	}
	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "postgres" && cfg.Store.DataDir == "" {
		errs = append(errs, errors.New("store.data_dir is required"))
	}
	if cfg.Store.QuotaBytes < 0 {
		errs = append(errs, errors.New("store.quota_bytes must not be negative"))
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}
