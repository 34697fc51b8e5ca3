// Package poolconfig loads and hot-reloads the settings that drive an
// execpool executor: its min/max size, keep-alive interval, and the
// ambient logging/audit options layered on top of it.
package poolconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything needed to construct and supervise an executor.
type Config struct {
	Pool    PoolConfig    `json:"pool"`
	Logging LoggingConfig `json:"logging"`
	Audit   AuditConfig   `json:"audit"`
	Admin   AdminConfig   `json:"admin"`
}

// PoolConfig mirrors the constructor arguments of executor.New.
type PoolConfig struct {
	MinSize         uint32 `json:"min_size"`
	MaxSize         uint32 `json:"max_size"`
	KeepAliveSecs   int    `json:"keep_alive_seconds"`
	DestructorSecs  int    `json:"destructor_timeout_seconds"`
}

// LoggingConfig controls the poollog.Logger wired into the executor.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// AuditConfig controls whether and where pool lifecycle events are
// recorded.
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	PostgresDSN string `json:"postgres_dsn"`
}

// AdminConfig controls the optional HTTP admin surface.
type AdminConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present: a pool of 0 to 256 workers with a 60s keep-alive,
// info-level text logging, audit and admin surfaces both off.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			MinSize:        0,
			MaxSize:        256,
			KeepAliveSecs:  60,
			DestructorSecs: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Audit: AuditConfig{
			Enabled: false,
		},
		Admin: AdminConfig{
			Enabled: false,
			Addr:    "localhost:9090",
		},
	}
}

// Load reads configPath if non-empty (missing file falls back silently to
// defaults, same as an absent config in most CLIs), applies environment
// overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("poolconfig: failed to load config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("poolconfig: invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv("EXECPOOL_MIN_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.Pool.MinSize = uint32(n)
		}
	}
	if v := os.Getenv("EXECPOOL_MAX_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.Pool.MaxSize = uint32(n)
		}
	}
	if v := os.Getenv("EXECPOOL_KEEP_ALIVE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pool.KeepAliveSecs = n
		}
	}
	if v := os.Getenv("EXECPOOL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EXECPOOL_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("EXECPOOL_AUDIT_ENABLED"); v != "" {
		c.Audit.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("EXECPOOL_AUDIT_POSTGRES_DSN"); v != "" {
		c.Audit.PostgresDSN = v
	}
	if v := os.Getenv("EXECPOOL_ADMIN_ENABLED"); v != "" {
		c.Admin.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("EXECPOOL_ADMIN_ADDR"); v != "" {
		c.Admin.Addr = v
	}
}

// Validate checks the invariants New itself would otherwise silently clamp
// — surfacing them here gives operators an error at load time instead of a
// quietly reshaped pool at runtime.
func (c *Config) Validate() error {
	if c.Pool.MaxSize == 0 {
		return WrapWithSuggestion(
			fmt.Errorf("pool.max_size must be greater than zero"),
			"set pool.max_size to a positive worker count, or omit it to use the default of 256",
		)
	}
	if c.Pool.MinSize > c.Pool.MaxSize {
		return WrapWithSuggestion(
			fmt.Errorf("pool.min_size (%d) exceeds pool.max_size (%d)", c.Pool.MinSize, c.Pool.MaxSize),
			"lower pool.min_size or raise pool.max_size so min <= max",
		)
	}
	if c.Pool.KeepAliveSecs < 0 {
		return fmt.Errorf("pool.keep_alive_seconds must not be negative")
	}
	if c.Audit.Enabled && c.Audit.PostgresDSN == "" {
		return WrapWithSuggestion(
			fmt.Errorf("audit.enabled is true but audit.postgres_dsn is empty"),
			"set audit.postgres_dsn or EXECPOOL_AUDIT_POSTGRES_DSN to a reachable Postgres connection string",
		)
	}
	return nil
}

// KeepAlive returns the configured keep-alive as a time.Duration.
func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.Pool.KeepAliveSecs) * time.Second
}

// DestructorTimeout returns the configured destructor bound as a
// time.Duration.
func (c *Config) DestructorTimeout() time.Duration {
	return time.Duration(c.Pool.DestructorSecs) * time.Second
}

// SaveToFile writes the config back out as indented JSON, mirroring the
// shape Load accepts.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
