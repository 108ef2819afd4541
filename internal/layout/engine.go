// Package layout computes node placements for one layer at a time.
//
// Algorithms produce normalized coordinates in [-1,1]². The Engine maps them
// onto the canvas with ToScreen and writes them back to the store in a
// single mutation.
package layout

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"netlayers/internal/domain"
	"netlayers/internal/topology"
)

// Algorithm names
const (
	AlgorithmForce    = "force"
	AlgorithmCircular = "circular"
)

// Canvas mapping from normalized to screen coordinates
const (
	ScaleX  = 300.0
	OffsetX = 400.0
	ScaleY  = 300.0
	OffsetY = 300.0
)

// ToScreen maps a normalized position onto the canvas
func ToScreen(p domain.Position) domain.Position {
	return domain.Position{X: p.X*ScaleX + OffsetX, Y: p.Y*ScaleY + OffsetY}
}

// Algorithm computes normalized positions for every node of a graph
type Algorithm interface {
	Name() string
	Compute(g topology.Graph) map[int]domain.Position
}

// Options selects how a layout run is applied
type Options struct {
	Algorithm string `json:"algorithm"`

	// Override writes per-layer positions instead of moving the canonical one
	Override bool `json:"override"`
}

// Result reports what a layout run did
type Result struct {
	Layer     domain.Layer            `json:"layer"`
	Algorithm string                  `json:"algorithm"`
	Positions map[int]domain.Position `json:"positions"`
	Applied   int                     `json:"applied"`
	Duration  time.Duration           `json:"duration_ns"`
}

// Engine runs layout algorithms against a store
type Engine struct {
	store      *topology.Store
	algorithms map[string]Algorithm
}

// NewEngine creates an engine with the force-directed and circular layouts.
// A non-zero seed makes force-directed runs reproducible.
func NewEngine(store *topology.Store, seed uint64) *Engine {
	e := &Engine{store: store, algorithms: make(map[string]Algorithm)}
	e.Register(NewForceDirected(seed))
	e.Register(Circular{})
	return e
}

// Register adds or replaces an algorithm
func (e *Engine) Register(a Algorithm) {
	e.algorithms[a.Name()] = a
}

// Algorithms lists registered algorithm names
func (e *Engine) Algorithms() []string {
	names := make([]string, 0, len(e.algorithms))
	for name := range e.algorithms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Apply snapshots the layer, computes without holding the lock, then writes
// every position in one store mutation. Nodes deleted in between are
// skipped. Identity, attributes and connections are never touched.
func (e *Engine) Apply(ctx context.Context, layer domain.Layer, opts Options) (*Result, error) {
	name := opts.Algorithm
	if name == "" {
		name = AlgorithmForce
	}
	algo, ok := e.algorithms[name]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "layout algorithm", Key: name}
	}

	overlay, err := e.store.Overlay(layer)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	snapshot := overlay.InducedGraph()
	normalized := algo.Compute(snapshot)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("layout %s cancelled: %w", layer, err)
	}

	screen := make(map[int]domain.Position, len(normalized))
	positions := make([]domain.NodePosition, 0, len(normalized))
	for _, id := range snapshot.NodeIDs {
		p, ok := normalized[id]
		if !ok {
			continue
		}
		sp := ToScreen(p)
		screen[id] = sp
		positions = append(positions, domain.NewNodePosition(id, sp.X, sp.Y))
	}

	applied, err := e.store.SetPositions(layer, positions, opts.Override)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Layer:     layer,
		Algorithm: name,
		Positions: screen,
		Applied:   applied,
		Duration:  time.Since(start),
	}
	log.Printf("Layout %s on %s: %d nodes, %d edges in %s", name, layer, len(snapshot.NodeIDs), len(snapshot.Edges), res.Duration)
	return res, nil
}
