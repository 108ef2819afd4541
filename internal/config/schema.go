package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version      int                `yaml:"version" validate:"gte=1"`
	Mode         Mode               `yaml:"mode" validate:"oneof=passive monitor discovery"`
	Posture      Posture            `yaml:"posture" validate:"oneof=stealth cautious balanced aggressive"`
	Behavior     *BehaviorOverride  `yaml:"behavior,omitempty"`
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Project      ProjectConfig      `yaml:"project"`
	Layout       LayoutConfig       `yaml:"layout"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	SSH          SSHConfig          `yaml:"ssh"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// DatabaseConfig holds the snapshot and recent-files database settings
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ProjectConfig holds project file settings
type ProjectConfig struct {
	// Path is opened at startup when set
	Path string `yaml:"path,omitempty"`
	// Watch reloads the open project when it changes on disk
	Watch bool `yaml:"watch"`
	// IconDir holds device icon images
	IconDir string `yaml:"icon_dir,omitempty"`
}

// LayoutConfig holds auto-layout settings
type LayoutConfig struct {
	Algorithm string `yaml:"algorithm" validate:"oneof=force circular"`
	// Seed makes force-directed runs reproducible; 0 picks a random seed
	Seed uint64 `yaml:"seed,omitempty"`
}

// DiscoveryConfig holds discovery settings
type DiscoveryConfig struct {
	// DefaultTarget is used when a request names no target
	DefaultTarget string   `yaml:"default_target,omitempty" validate:"omitempty,cidr|ip"`
	QueueSize     int      `yaml:"queue_size" validate:"gte=1"`
	SweepPorts    []int    `yaml:"sweep_ports,omitempty" validate:"omitempty,dive,min=1,max=65535"`
	NmapPorts     string   `yaml:"nmap_ports,omitempty"`
	ServiceScan   bool     `yaml:"service_scan"`
	SkipPing      bool     `yaml:"skip_ping"`
	Priorities    Priority `yaml:"priorities,omitempty"`
}

// Priority overrides adapter priorities by name
type Priority map[string]int

// SSHConfig holds credentials for hostname enrichment. Secrets are read from
// the referenced files, never stored here.
type SSHConfig struct {
	Username     string `yaml:"username,omitempty" validate:"required_with=KeyPath PasswordFile"`
	KeyPath      string `yaml:"key_path,omitempty"`
	PasswordFile string `yaml:"password_file,omitempty"`
	Port         int    `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	OnlyUnnamed  bool   `yaml:"only_unnamed"`
}

// BehaviorOverride allows overriding posture defaults
type BehaviorOverride struct {
	ProbeTimeout        *Duration `yaml:"probe_timeout,omitempty"`
	ScanTimeout         *Duration `yaml:"scan_timeout,omitempty"`
	MaxConcurrentProbes *int      `yaml:"max_concurrent_probes,omitempty" validate:"omitempty,min=1"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
