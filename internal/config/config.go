// Package config loads workshopd's YAML configuration: agent capacity per
// role, retry tuning, supervision thresholds, and the ambient server/NATS
// wiring. Flat structs unmarshalled with yaml.v3, no config framework.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/johnhkchen/dfcoder/internal/model"
	"github.com/johnhkchen/dfcoder/internal/retry"
)

// Config is the root of workshopd's YAML configuration file.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	NATS        NATSConfig        `yaml:"nats"`
	Capacity    map[string]int    `yaml:"capacity"`
	Retry       RetryConfig       `yaml:"retry"`
	Supervision SupervisionConfig `yaml:"supervision"`
	Audit       AuditConfig       `yaml:"audit"`
}

// ServerConfig configures the HTTP + WebSocket listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// NATSConfig configures the embedded or external NATS connection.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Embed   bool   `yaml:"embed"`
	Port    int    `yaml:"port"`
}

// RetryConfig selects which retry.Policy to install on the scheduler.
type RetryConfig struct {
	Profile string `yaml:"profile"` // default, conservative, aggressive
}

// SupervisionConfig tunes the supervision engine.
type SupervisionConfig struct {
	StuckThreshold  time.Duration `yaml:"stuck_threshold"`
	AutoSupervision bool          `yaml:"auto_supervision"`
}

// AuditConfig configures the SQLite-backed event log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration workshopd runs with when no file is
// supplied: capacity for 1 scaffolder, 3 implementers, 2 debuggers and 2
// testers, the default retry policy, a five minute stuck threshold,
// auto-supervision on, NATS off, and the audit log disabled.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		NATS:   NATSConfig{Enabled: false, Embed: false, Port: 4222},
		Capacity: map[string]int{
			string(model.RoleScaffolder):  1,
			string(model.RoleImplementer): 3,
			string(model.RoleDebugger):    2,
			string(model.RoleTester):      2,
		},
		Retry:       RetryConfig{Profile: "default"},
		Supervision: SupervisionConfig{StuckThreshold: 5 * time.Minute, AutoSupervision: true},
		Audit:       AuditConfig{Enabled: false, Path: "workshopd-audit.db"},
	}
}

// Load reads and parses a YAML config file, unmarshalling onto Default()
// so any field the file omits keeps its default value. Invalid configs fail
// here rather than producing a half-configured daemon.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values that can't be started with:
// out-of-range ports, negative capacities, an unknown retry profile, a
// non-positive stuck threshold, or an enabled audit log without a path.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.NATS.Enabled && c.NATS.Embed && (c.NATS.Port <= 0 || c.NATS.Port > 65535) {
		return fmt.Errorf("nats.port %d out of range", c.NATS.Port)
	}
	for role, n := range c.Capacity {
		if n < 0 {
			return fmt.Errorf("capacity.%s must not be negative, got %d", role, n)
		}
	}
	switch c.Retry.Profile {
	case "default", "conservative", "aggressive":
	case "":
		return fmt.Errorf("retry.profile must be set")
	default:
		return fmt.Errorf("unknown retry.profile %q", c.Retry.Profile)
	}
	if c.Supervision.StuckThreshold <= 0 {
		return fmt.Errorf("supervision.stuck_threshold must be positive, got %v", c.Supervision.StuckThreshold)
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit.path must be set when audit is enabled")
	}
	return nil
}

// RetryPolicy resolves the configured retry profile to a concrete policy.
func (c *Config) RetryPolicy() retry.Policy {
	switch c.Retry.Profile {
	case "conservative":
		return retry.ConservativePolicy()
	case "aggressive":
		return retry.AggressivePolicy()
	default:
		return retry.DefaultPolicy()
	}
}

// CapacityFor returns the configured concurrency cap for a role, defaulting
// to 1 when the role isn't present in the file.
func (c *Config) CapacityFor(role model.AgentRole) int {
	if n, ok := c.Capacity[string(role)]; ok {
		return n
	}
	return 1
}
