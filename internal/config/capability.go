package config

// CapabilityConfig defines settings for a single capability
type CapabilityConfig struct {
	Enabled    bool    `yaml:"enabled"`
	MinMode    Mode    `yaml:"min_mode,omitempty"`
	BinaryPath *string `yaml:"binary_path,omitempty"`
}

// CapabilitiesConfig holds the optional server features
type CapabilitiesConfig struct {
	Scanner  CapabilityConfig `yaml:"scanner"`
	Nmap     CapabilityConfig `yaml:"nmap"`
	SSHProbe CapabilityConfig `yaml:"ssh_probe"`
	Watcher  CapabilityConfig `yaml:"watcher"`
	Metrics  CapabilityConfig `yaml:"metrics"`
}

// DefaultCapabilities returns the default capability configuration
func DefaultCapabilities() CapabilitiesConfig {
	return CapabilitiesConfig{
		Scanner:  CapabilityConfig{Enabled: true, MinMode: ModeMonitor},
		Nmap:     CapabilityConfig{Enabled: false, MinMode: ModeDiscovery}, // needs the nmap binary
		SSHProbe: CapabilityConfig{Enabled: false, MinMode: ModeDiscovery}, // needs credentials
		Watcher:  CapabilityConfig{Enabled: true, MinMode: ModePassive},
		Metrics:  CapabilityConfig{Enabled: true, MinMode: ModePassive},
	}
}

// CapabilityInfo provides runtime info about a capability
type CapabilityInfo struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	MinMode     Mode   `json:"min_mode"`
	Description string `json:"description"`
}

// ListCapabilities returns info about all capabilities
func (c *CapabilitiesConfig) ListCapabilities() []CapabilityInfo {
	return []CapabilityInfo{
		{Name: "scanner", Enabled: c.Scanner.Enabled, MinMode: orMode(c.Scanner.MinMode, ModeMonitor), Description: "TCP sweep discovery"},
		{Name: "nmap", Enabled: c.Nmap.Enabled, MinMode: orMode(c.Nmap.MinMode, ModeDiscovery), Description: "Discovery via nmap"},
		{Name: "ssh_probe", Enabled: c.SSHProbe.Enabled, MinMode: orMode(c.SSHProbe.MinMode, ModeDiscovery), Description: "Hostnames of discovered hosts via SSH"},
		{Name: "watcher", Enabled: c.Watcher.Enabled, MinMode: orMode(c.Watcher.MinMode, ModePassive), Description: "Reload project and icons on change"},
		{Name: "metrics", Enabled: c.Metrics.Enabled, MinMode: orMode(c.Metrics.MinMode, ModePassive), Description: "Prometheus /metrics endpoint"},
	}
}

// IsEnabled checks if a capability is enabled for the given mode
func (c *CapabilitiesConfig) IsEnabled(name string, currentMode Mode) bool {
	for _, cap := range c.ListCapabilities() {
		if cap.Name == name {
			return cap.Enabled && currentMode.Allows(cap.MinMode)
		}
	}
	return false
}

func orMode(m, def Mode) Mode {
	if m == "" {
		return def
	}
	return m
}
