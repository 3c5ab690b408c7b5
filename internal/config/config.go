// Package config loads rndc client configuration using koanf/v2.
//
// Supports a YAML file, environment variable overrides, and programmatic
// defaults. CLI flags (when present) are layered on top by cmd/rndc.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete rndc client configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
}

// ServerConfig holds the RNDC server connection parameters (spec section 6).
type ServerConfig struct {
	// Host is the RNDC server's hostname or IP address.
	Host string `koanf:"host"`

	// Port is the RNDC server's TCP port. BIND's conventional default is
	// 953, but that is only applied by DefaultConfig, never silently
	// substituted for an explicit empty value.
	Port int `koanf:"port"`

	// Algorithm is a catalog member name (see internal/rauth), accepted
	// case-insensitively and with or without the "hmac-" prefix.
	Algorithm string `koanf:"algorithm"`

	// Secret is the shared HMAC key, base64-encoded, as it appears in
	// rndc.conf's key stanza.
	Secret string `koanf:"secret"`

	// Timeout bounds each individual socket operation.
	Timeout time.Duration `koanf:"timeout"`

	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int `koanf:"max_retries"`

	// RetryDelay is the pause between a retryable failure and the next
	// attempt.
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is an HTTP listen address for a metrics endpoint (e.g., ":9100").
	// It is loaded from file and env, but cmd/rndc does not listen on it;
	// --metrics-dump writes the metrics to stderr instead.
	Addr string `koanf:"addr"`
	// Path is the URL path for that endpoint (e.g., "/metrics"). Like Addr,
	// it is loaded but not served by cmd/rndc.
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultPort is BIND's conventional rndc listen port. It is exported
// for callers to use explicitly (cmd/rndc's --port flag does not default
// to it) and is not baked into DefaultConfig, since Port participates in
// the same "every real
// deployment must supply it" contract as Host, Algorithm and Secret.
const DefaultPort = 953

// DefaultConfig returns a Config populated with sensible defaults for the
// ambient settings (timeouts, retries, metrics, logging). Host, Port,
// Algorithm and Secret are intentionally left at their zero values:
// every real deployment must supply them explicitly, and DefaultConfig
// should not paper over a missing connection parameter with a
// silently-accepted placeholder.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 3,
			RetryDelay: 500 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Addr: ":9120",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for rndc client
// configuration.
const envPrefix = "ZPAPI_RNDC_"

// coreEnvKeys maps the flat core environment variable names to their
// koanf dotted key. These seven names are fixed: ZPAPI_RNDC_HOST,
// ZPAPI_RNDC_PORT, ZPAPI_RNDC_ALGORITHM, ZPAPI_RNDC_SECRET,
// ZPAPI_RNDC_TIMEOUT, ZPAPI_RNDC_MAX_RETRIES, ZPAPI_RNDC_RETRY_DELAY
// (spec section 6) — they do not carry a "SERVER_" segment, so they need
// an explicit table rather than the generic underscore-to-dot mapping
// used for the ambient log/metrics settings.
var coreEnvKeys = map[string]string{
	"ZPAPI_RNDC_HOST":        "server.host",
	"ZPAPI_RNDC_PORT":        "server.port",
	"ZPAPI_RNDC_ALGORITHM":   "server.algorithm",
	"ZPAPI_RNDC_SECRET":      "server.secret",
	"ZPAPI_RNDC_TIMEOUT":     "server.timeout",
	"ZPAPI_RNDC_MAX_RETRIES": "server.max_retries",
	"ZPAPI_RNDC_RETRY_DELAY": "server.retry_delay",
}

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides, and merges on top of DefaultConfig(). Missing
// fields inherit defaults. An empty path skips the file layer; a path to
// a file that does not exist is an error. The merged result must pass
// Validate, so with no file the connection parameters (host, port,
// algorithm, secret) have to come from the environment.
//
// Environment variable mapping:
//
//	ZPAPI_RNDC_HOST         -> server.host
//	ZPAPI_RNDC_PORT         -> server.port
//	ZPAPI_RNDC_ALGORITHM    -> server.algorithm
//	ZPAPI_RNDC_SECRET       -> server.secret
//	ZPAPI_RNDC_TIMEOUT      -> server.timeout
//	ZPAPI_RNDC_MAX_RETRIES  -> server.max_retries
//	ZPAPI_RNDC_RETRY_DELAY  -> server.retry_delay
//	ZPAPI_RNDC_LOG_LEVEL    -> log.level
//	ZPAPI_RNDC_LOG_FORMAT   -> log.format
//	ZPAPI_RNDC_METRICS_ADDR -> metrics.addr
//	ZPAPI_RNDC_METRICS_PATH -> metrics.path
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	cfg, err := LoadUnvalidated(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated performs the same file+env+defaults merge as Load but
// skips Validate. cmd/rndc uses this so it can layer CLI flags on top of
// the merged result before producing its own "missing --flag" diagnostics
// for whichever connection parameters still come up short.
func LoadUnvalidated(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper resolves the seven fixed core variable names via
// coreEnvKeys, and falls back to stripping envPrefix, lowercasing, and
// replacing _ with . for everything else (LOG_LEVEL -> log.level,
// METRICS_ADDR -> metrics.addr).
func envKeyMapper(s string) string {
	if key, ok := coreEnvKeys[s]; ok {
		return key
	}

	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)

	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"server.host":        defaults.Server.Host,
		"server.port":        defaults.Server.Port,
		"server.algorithm":   defaults.Server.Algorithm,
		"server.secret":      defaults.Server.Secret,
		"server.timeout":     defaults.Server.Timeout.String(),
		"server.max_retries": defaults.Server.MaxRetries,
		"server.retry_delay": defaults.Server.RetryDelay.String(),
		"metrics.addr":       defaults.Metrics.Addr,
		"metrics.path":       defaults.Metrics.Path,
		"log.level":          defaults.Log.Level,
		"log.format":         defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyHost indicates the server host is empty.
	ErrEmptyHost = errors.New("server.host must not be empty")

	// ErrPortRange indicates the server port is out of range.
	ErrPortRange = errors.New("server.port must be in 1..65535")

	// ErrEmptySecret indicates no shared key secret was configured.
	ErrEmptySecret = errors.New("server.secret must not be empty")

	// ErrEmptyAlgorithm indicates no TSIG algorithm was configured.
	ErrEmptyAlgorithm = errors.New("server.algorithm must not be empty")

	// ErrInvalidTimeout indicates a non-positive timeout.
	ErrInvalidTimeout = errors.New("server.timeout must be > 0")

	// ErrInvalidMaxRetries indicates a negative retry count.
	ErrInvalidMaxRetries = errors.New("server.max_retries must be >= 0")

	// ErrInvalidRetryDelay indicates a negative retry delay.
	ErrInvalidRetryDelay = errors.New("server.retry_delay must be >= 0")
)

// Validate checks the configuration for logical errors. Returns the first
// validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return ErrEmptyHost
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return ErrPortRange
	}

	if cfg.Server.Algorithm == "" {
		return ErrEmptyAlgorithm
	}

	if cfg.Server.Secret == "" {
		return ErrEmptySecret
	}

	if cfg.Server.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if cfg.Server.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	if cfg.Server.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
