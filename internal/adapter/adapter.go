package adapter

import (
	"context"

	"netlayers/internal/discovery"
	"netlayers/internal/domain"
)

// Adapter is a discovery producer the registry can select
type Adapter interface {
	discovery.Producer

	// Priority decides which adapter runs when a request names none
	// (higher wins)
	Priority() int

	// Available reports whether the adapter can run on this host, e.g.
	// whether the nmap binary is installed
	Available(ctx context.Context) bool
}

// Enricher fills in details of a discovered host before it is merged.
// Enrichers must tolerate hosts they cannot reach.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, h *domain.DiscoveredHost) error
}

// AdapterConfig holds configuration for an adapter instance
type AdapterConfig struct {
	// Enabled determines if the adapter can be selected
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Priority overrides the adapter's own priority when non-zero
	Priority int `json:"priority" yaml:"priority"`
	// Settings holds adapter-specific configuration
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// AdapterInfo provides read-only information about an adapter
type AdapterInfo struct {
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	Enabled   bool   `json:"enabled"`
	Available bool   `json:"available"`
}
