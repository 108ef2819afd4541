package adapter

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"netlayers/internal/discovery"
	"netlayers/internal/domain"
)

// Registry manages the registered adapters and enrichers and picks the
// producer for a discovery request
type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]Adapter
	configs   map[string]AdapterConfig
	enrichers []Enricher
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		configs:  make(map[string]AdapterConfig),
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter, config AdapterConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return &domain.ConflictError{Kind: "adapter", Key: name}
	}

	r.adapters[name] = adapter
	r.configs[name] = config
	log.Printf("Registered adapter: %s (priority=%d, enabled=%v)",
		name, r.priority(name), config.Enabled)

	return nil
}

// AddEnricher appends an enricher run on every host before it is reported
func (r *Registry) AddEnricher(e Enricher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrichers = append(r.enrichers, e)
	log.Printf("Registered enricher: %s", e.Name())
}

// Producer returns the named adapter, or the highest-priority available
// one when name is empty, wrapped so registered enrichers see every host
func (r *Registry) Producer(ctx context.Context, name string) (discovery.Producer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var chosen Adapter
	if name != "" {
		adapter, exists := r.adapters[name]
		if !exists || !r.configs[name].Enabled {
			return nil, &domain.NotFoundError{Kind: "adapter", Key: name}
		}
		if !adapter.Available(ctx) {
			return nil, fmt.Errorf("adapter %s is not available on this host", name)
		}
		chosen = adapter
	} else {
		for _, n := range r.byPriority() {
			adapter := r.adapters[n]
			if r.configs[n].Enabled && adapter.Available(ctx) {
				chosen = adapter
				break
			}
		}
		if chosen == nil {
			return nil, &domain.NotFoundError{Kind: "adapter", Key: "(any available)"}
		}
	}

	if len(r.enrichers) == 0 {
		return chosen, nil
	}
	return &enrichingProducer{
		Producer:  chosen,
		enrichers: append([]Enricher(nil), r.enrichers...),
	}, nil
}

// List returns information about registered adapters, highest priority first
func (r *Registry) List(ctx context.Context) []AdapterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AdapterInfo, 0, len(r.adapters))
	for _, name := range r.byPriority() {
		infos = append(infos, AdapterInfo{
			Name:      name,
			Priority:  r.priority(name),
			Enabled:   r.configs[name].Enabled,
			Available: r.adapters[name].Available(ctx),
		})
	}
	return infos
}

func (r *Registry) priority(name string) int {
	if p := r.configs[name].Priority; p != 0 {
		return p
	}
	return r.adapters[name].Priority()
}

func (r *Registry) byPriority() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.priority(names[i]), r.priority(names[j])
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}

// enrichingProducer runs enrichers on each host between the adapter and
// the merge queue
type enrichingProducer struct {
	discovery.Producer
	enrichers []Enricher
}

func (p *enrichingProducer) Discover(ctx context.Context, req discovery.Request, out discovery.Reporter) error {
	return p.Producer.Discover(ctx, req, &enrichingReporter{ctx: ctx, out: out, enrichers: p.enrichers})
}

type enrichingReporter struct {
	ctx       context.Context
	out       discovery.Reporter
	enrichers []Enricher
}

func (r *enrichingReporter) Found(h domain.DiscoveredHost) {
	for _, e := range r.enrichers {
		if r.ctx.Err() != nil {
			break
		}
		if err := e.Enrich(r.ctx, &h); err != nil {
			log.Printf("Enricher %s: %s: %v", e.Name(), h.IP, err)
		}
	}
	r.out.Found(h)
}

func (r *enrichingReporter) Progress(done, total int) {
	r.out.Progress(done, total)
}
