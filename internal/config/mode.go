package config

import "time"

// Mode caps what the server may do on the network
type Mode string

const (
	ModePassive   Mode = "passive"   // editing only, no probing
	ModeMonitor   Mode = "monitor"   // + TCP sweep discovery
	ModeDiscovery Mode = "discovery" // + nmap scans, SSH hostname probes
)

// ParseMode converts a string to Mode, defaulting to ModeMonitor
func ParseMode(s string) Mode {
	switch s {
	case "passive":
		return ModePassive
	case "monitor":
		return ModeMonitor
	case "discovery":
		return ModeDiscovery
	default:
		return ModeMonitor
	}
}

// Level returns numeric level for comparison (higher = more capabilities)
func (m Mode) Level() int {
	switch m {
	case ModePassive:
		return 0
	case ModeMonitor:
		return 1
	case ModeDiscovery:
		return 2
	default:
		return 1
	}
}

// Allows returns true if this mode allows the given mode's capabilities
func (m Mode) Allows(required Mode) bool {
	return m.Level() >= required.Level()
}

// Posture defines how hard discovery pushes the network
type Posture string

const (
	PostureStealth    Posture = "stealth"
	PostureCautious   Posture = "cautious"
	PostureBalanced   Posture = "balanced"
	PostureAggressive Posture = "aggressive"
)

// ParsePosture converts a string to Posture, defaulting to PostureBalanced
func ParsePosture(s string) Posture {
	switch s {
	case "stealth":
		return PostureStealth
	case "cautious":
		return PostureCautious
	case "balanced":
		return PostureBalanced
	case "aggressive":
		return PostureAggressive
	default:
		return PostureBalanced
	}
}

// BehaviorProfile defines discovery timing and concurrency
type BehaviorProfile struct {
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	ScanTimeout         time.Duration `yaml:"scan_timeout"`
	MaxConcurrentProbes int           `yaml:"max_concurrent_probes"`
}

// PostureProfiles maps postures to their default behavior profiles
var PostureProfiles = map[Posture]BehaviorProfile{
	PostureStealth: {
		ProbeTimeout:        5 * time.Second,
		ScanTimeout:         30 * time.Minute,
		MaxConcurrentProbes: 2,
	},
	PostureCautious: {
		ProbeTimeout:        3 * time.Second,
		ScanTimeout:         20 * time.Minute,
		MaxConcurrentProbes: 8,
	},
	PostureBalanced: {
		ProbeTimeout:        1 * time.Second,
		ScanTimeout:         10 * time.Minute,
		MaxConcurrentProbes: 64,
	},
	PostureAggressive: {
		ProbeTimeout:        500 * time.Millisecond,
		ScanTimeout:         5 * time.Minute,
		MaxConcurrentProbes: 256,
	},
}

// GetProfile returns the behavior profile for a posture
func (p Posture) GetProfile() BehaviorProfile {
	if profile, ok := PostureProfiles[p]; ok {
		return profile
	}
	return PostureProfiles[PostureBalanced]
}
