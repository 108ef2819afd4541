// Package config provides configuration management for netlayers.
//
// The config file holds how the server runs: listen address, database,
// discovery posture and which optional capabilities are on. Project content
// lives in project files, never here.
//
// Config file locations (priority order):
//  1. $NETLAYERS_CONFIG
//  2. ./netlayers.yaml
//  3. $XDG_CONFIG_HOME/netlayers/config.yaml, ~/.config/netlayers/config.yaml
//  4. /etc/netlayers/config.yaml
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"netlayers/internal/validation"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	// unset sections keep their defaults
	cfg := Config{
		Capabilities: DefaultCapabilities(),
		Project:      ProjectConfig{Watch: true},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, path, nil
}

// Save writes the config to path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{
		Capabilities: DefaultCapabilities(),
		Project:      ProjectConfig{Watch: true},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Mode == "" {
		c.Mode = ModeMonitor
	}
	if c.Posture == "" {
		c.Posture = PostureBalanced
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./netlayers.db"
	}
	if c.Layout.Algorithm == "" {
		c.Layout.Algorithm = "force"
	}
	if c.Discovery.QueueSize == 0 {
		c.Discovery.QueueSize = 256
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
}

// Validate checks the config against its field rules
func (c *Config) Validate() error {
	return validation.Struct(c)
}

// EffectiveBehavior returns behavior profile with overrides applied
func (c *Config) EffectiveBehavior() BehaviorProfile {
	base := c.Posture.GetProfile()

	if c.Behavior == nil {
		return base
	}

	if c.Behavior.ProbeTimeout != nil {
		base.ProbeTimeout = c.Behavior.ProbeTimeout.Duration()
	}
	if c.Behavior.ScanTimeout != nil {
		base.ScanTimeout = c.Behavior.ScanTimeout.Duration()
	}
	if c.Behavior.MaxConcurrentProbes != nil {
		base.MaxConcurrentProbes = *c.Behavior.MaxConcurrentProbes
	}

	return base
}

// Enabled reports whether a named capability is on in the current mode
func (c *Config) Enabled(capability string) bool {
	return c.Capabilities.IsEnabled(capability, c.Mode)
}

// GetEnabledCapabilities returns list of capabilities enabled for current mode
func (c *Config) GetEnabledCapabilities() []CapabilityInfo {
	var enabled []CapabilityInfo
	for _, cap := range c.Capabilities.ListCapabilities() {
		if cap.Enabled && c.Mode.Allows(cap.MinMode) {
			enabled = append(enabled, cap)
		}
	}
	return enabled
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	behavior := c.EffectiveBehavior()
	caps := c.GetEnabledCapabilities()

	names := make([]string, 0, len(caps))
	for _, cap := range caps {
		names = append(names, cap.Name)
	}

	summary := fmt.Sprintf("Mode: %s, Posture: %s\n", c.Mode, c.Posture)
	summary += fmt.Sprintf("Probe timeout: %s, Scan timeout: %s, Concurrency: %d\n",
		behavior.ProbeTimeout, behavior.ScanTimeout, behavior.MaxConcurrentProbes)
	summary += fmt.Sprintf("Enabled capabilities (%d): %s", len(caps), strings.Join(names, " "))
	return summary
}
