// Package config loads leaptable configuration.
//
// Values are layered with koanf: built-in defaults, then leaptable.yaml,
// then LEAPTABLE_ environment variables, then explicitly set CLI flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leaptable/pkg/adapter"
	"github.com/leapstack-labs/leaptable/pkg/core"
)

// TargetConfig holds a database connection.
type TargetConfig struct {
	Type     string            `koanf:"type"` // mysql, postgres
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Options  map[string]string `koanf:"options"`
}

// AdapterConfig converts the target into the adapter connection config.
func (t *TargetConfig) AdapterConfig() core.AdapterConfig {
	if t == nil {
		return core.AdapterConfig{}
	}
	return core.AdapterConfig{
		Type:     strings.ToLower(t.Type),
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Options:  t.Options,
	}
}

// Validate checks the target against the adapter registry.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// LockConfig selects where table locks are held.
type LockConfig struct {
	Backend  string        `koanf:"backend"` // memory, postgres
	Postgres *TargetConfig `koanf:"postgres"`
}

// WorkerConfig controls background view rebuilds.
type WorkerConfig struct {
	MaxRetries uint64        `koanf:"max_retries"`
	BaseDelay  time.Duration `koanf:"base_delay"`
}

// FacetConfig bounds facet side queries.
type FacetConfig struct {
	MaxValues int `koanf:"max_values"`
}

// Config holds all leaptable configuration options.
type Config struct {
	StatePath    string               `koanf:"state_path"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	MetricsAddr  string               `koanf:"metrics_addr"`
	Index        *TargetConfig        `koanf:"index"`
	Lock         LockConfig           `koanf:"lock"`
	Worker       WorkerConfig         `koanf:"worker"`
	Facets       FacetConfig          `koanf:"facets"`
	Environments map[string]map[string]any `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if c.Index != nil {
		if err := c.Index.Validate(); err != nil {
			return fmt.Errorf("invalid index configuration: %w", err)
		}
	}
	switch c.Lock.Backend {
	case LockBackendMemory:
	case LockBackendPostgres:
		if c.Lock.Postgres == nil {
			return fmt.Errorf("lock.postgres is required for the postgres lock backend")
		}
	default:
		return fmt.Errorf("unknown lock backend %q (expected %s or %s)", c.Lock.Backend, LockBackendMemory, LockBackendPostgres)
	}
	switch c.OutputFormat {
	case OutputText, OutputJSON, OutputMarkdown:
	default:
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	return nil
}
