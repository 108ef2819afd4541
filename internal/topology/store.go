package topology

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"netlayers/internal/codec"
	"netlayers/internal/domain"
	"netlayers/internal/validation"
)

// Placement bounds for nodes created without a position
const (
	DefaultMinX = 50.0
	DefaultMaxX = 400.0
	DefaultMinY = 50.0
	DefaultMaxY = 300.0
)

// Store is the single owner of node identity. It issues ids, keeps node
// attributes and the canonical position, and broadcasts membership changes
// to the three layer overlays.
type Store struct {
	mu    sync.RWMutex
	nodes map[int]*domain.Node
	// nextID only grows; an id issued once is never issued again
	nextID int

	overlays  map[domain.Layer]*Overlay
	observers []NodeObserver
	bus       *EventBus
	rng       *rand.Rand
}

// Option configures a Store
type Option func(*Store)

// WithSeed makes default placements reproducible
func WithSeed(seed uint64) Option {
	return func(s *Store) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewStore creates an empty store with one overlay per layer
func NewStore(bus *EventBus, opts ...Option) *Store {
	if bus == nil {
		bus = NewEventBus()
	}
	s := &Store{
		nodes:    make(map[int]*domain.Node),
		nextID:   1,
		overlays: make(map[domain.Layer]*Overlay, len(domain.AllLayers)),
		bus:      bus,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, layer := range domain.AllLayers {
		o := newOverlay(layer, &s.mu, bus)
		s.overlays[layer] = o
		s.observers = append(s.observers, o)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the bus the store publishes on
func (s *Store) Events() *EventBus {
	return s.bus
}

// Overlay returns the connection set of a layer
func (s *Store) Overlay(layer domain.Layer) (*Overlay, error) {
	o, ok := s.overlays[layer]
	if !ok {
		return nil, &domain.ValidationError{Field: "layer", Reason: fmt.Sprintf("unknown layer %q", layer)}
	}
	return o, nil
}

// CreateNode issues the next id, fills defaults, applies the supplied fields
// and registers the node with every overlay
func (s *Store) CreateNode(spec domain.NodeSpec) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.createNode(spec)
	if err != nil {
		return 0, err
	}
	return n.ID, nil
}

// CreateNodeIfAddressFree creates the node only when no existing node holds
// the same L3 address. The check and the insert happen under one lock.
func (s *Store) CreateNodeIfAddressFree(spec domain.NodeSpec) (id int, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec.L3 != nil && spec.L3.IP != "" {
		if _, taken := s.nodeByIP(spec.L3.IP); taken {
			return 0, false, nil
		}
	}
	n, err := s.createNode(spec)
	if err != nil {
		return 0, false, err
	}
	return n.ID, true, nil
}

func (s *Store) createNode(spec domain.NodeSpec) (*domain.Node, error) {
	id := s.nextID
	n := domain.NewNode(id)
	n.X = DefaultMinX + s.rng.Float64()*(DefaultMaxX-DefaultMinX)
	n.Y = DefaultMinY + s.rng.Float64()*(DefaultMaxY-DefaultMinY)
	domain.NodePatch(spec).Apply(n)

	if err := validation.Node(n); err != nil {
		return nil, err
	}

	s.nodes[id] = n
	s.nextID++
	for _, obs := range s.observers {
		obs.AddNode(id)
	}

	s.bus.Publish(Event{
		Type:    EventNodeCreated,
		Payload: map[string]any{"node_id": id, "name": n.Name, "type": n.Type},
	})
	return n, nil
}

// UpdateNode merges patch into the node. Attribute groups are replaced whole.
func (s *Store) UpdateNode(id int, patch domain.NodePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return domain.NodeNotFound(id)
	}
	updated := n.Clone()
	patch.Apply(updated)
	if err := validation.Node(updated); err != nil {
		return err
	}
	s.nodes[id] = updated

	s.bus.Publish(Event{
		Type:    EventNodeUpdated,
		Payload: map[string]any{"node_id": id},
	})
	return nil
}

// DeleteNode removes every connection incident to the node in every layer,
// then the node itself
func (s *Store) DeleteNode(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return domain.NodeNotFound(id)
	}

	removed := make(map[domain.Layer][]domain.PairKey, len(s.overlays))
	for _, layer := range domain.AllLayers {
		if keys := s.overlays[layer].RemoveNodeCascade(id); len(keys) > 0 {
			removed[layer] = keys
		}
	}
	delete(s.nodes, id)

	s.bus.Publish(Event{
		Type:    EventNodeDeleted,
		Payload: map[string]any{"node_id": id, "removed": removed},
	})
	return nil
}

// ListIsolatedNodeNames returns, in id order, the names of nodes with no
// connection in the given layer
func (s *Store) ListIsolatedNodeNames(layer domain.Layer) ([]string, error) {
	o, err := s.Overlay(layer)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := []string{}
	for _, id := range s.sortedIDs() {
		if len(o.adj[id]) == 0 {
			names = append(names, s.nodes[id].Name)
		}
	}
	return names, nil
}

// Node returns a copy of the node with the given id
func (s *Store) Node(id int) (*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, domain.NodeNotFound(id)
	}
	return n.Clone(), nil
}

// Nodes returns copies of every node in id order
func (s *Store) Nodes() []*domain.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Node, 0, len(s.nodes))
	for _, id := range s.sortedIDs() {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

// NodeCount returns the number of nodes
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// ConnectionCount returns the number of connections in a layer
func (s *Store) ConnectionCount(layer domain.Layer) int {
	o, err := s.Overlay(layer)
	if err != nil {
		return 0
	}
	return o.Len()
}

// IPs returns the set of L3 addresses currently in use
func (s *Store) IPs() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.nodes))
	for id, n := range s.nodes {
		if n.L3.IP != "" {
			out[n.L3.IP] = id
		}
	}
	return out
}

// NodeByIP finds the node holding an L3 address
func (s *Store) NodeByIP(ip string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeByIP(ip)
}

func (s *Store) nodeByIP(ip string) (int, bool) {
	ip = strings.TrimSpace(ip)
	for id, n := range s.nodes {
		if n.L3.IP == ip {
			return id, true
		}
	}
	return 0, false
}

// SetPositions writes layout or drag results in one mutation. With override
// set the positions become explicit overrides of the layer, otherwise they
// move the canonical position. Unknown ids are ignored.
func (s *Store) SetPositions(layer domain.Layer, positions []domain.NodePosition, override bool) (int, error) {
	if !layer.Valid() {
		return 0, &domain.ValidationError{Field: "layer", Reason: fmt.Sprintf("unknown layer %q", layer)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, p := range positions {
		n, ok := s.nodes[p.NodeID]
		if !ok {
			continue
		}
		if override {
			n.SetLayerPosition(layer, p.Position())
		} else {
			n.X, n.Y = p.X, p.Y
		}
		applied++
	}

	if applied > 0 {
		s.bus.Publish(Event{
			Type:    EventPositionsUpdated,
			Payload: map[string]any{"layer": layer, "count": applied, "override": override},
		})
	}
	return applied, nil
}

// ClearLayerPositions drops every explicit override of a layer so it shows
// the canonical positions again
func (s *Store) ClearLayerPositions(layer domain.Layer) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for _, n := range s.nodes {
		if _, ok := n.LayerPositions[layer]; ok {
			delete(n.LayerPositions, layer)
			cleared++
		}
	}
	if cleared > 0 {
		s.bus.Publish(Event{
			Type:    EventPositionsUpdated,
			Payload: map[string]any{"layer": layer, "count": cleared, "override": false},
		})
	}
	return cleared
}

// LayerGraph renders a layer for display: every node at its position in the
// layer plus the layer's connections
func (s *Store) LayerGraph(layer domain.Layer) (*domain.Graph, error) {
	o, err := s.Overlay(layer)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	g := &domain.Graph{
		Layer: layer,
		Nodes: make([]domain.GraphNode, 0, len(s.nodes)),
		Edges: make([]domain.GraphEdge, 0, len(o.conns)),
	}
	for _, id := range s.sortedIDs() {
		g.Nodes = append(g.Nodes, domain.NewGraphNode(s.nodes[id], layer, len(o.adj[id])))
	}
	for _, c := range o.connections() {
		g.Edges = append(g.Edges, domain.NewGraphEdge(&c))
	}
	return g, nil
}

// Reset empties the store and every overlay. Ids issued before stay retired.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.bus.Publish(Event{Type: EventTopologyLoaded, Payload: map[string]any{"nodes": 0}})
}

func (s *Store) reset() {
	s.nodes = make(map[int]*domain.Node)
	for _, o := range s.overlays {
		o.reset()
	}
}

// LoadResult summarises what Load kept from a document
type LoadResult struct {
	Nodes       int `json:"nodes"`
	Connections int `json:"connections"`
	Dropped     int `json:"dropped"`
}

// Load replaces the whole topology with the document content. Connections
// are kept exactly as stored; those naming unknown nodes, self-loops and
// repeated pairs are dropped and counted. Duplicate node ids are refused.
func (s *Store) Load(doc *domain.Document) (LoadResult, error) {
	seen := make(map[int]struct{}, len(doc.Nodes))
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if _, dup := seen[n.ID]; dup {
			return LoadResult{}, &domain.ConflictError{Kind: "node", Key: fmt.Sprintf("%d", n.ID)}
		}
		if n.ID < 1 {
			return LoadResult{}, &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("node id %d must be positive", n.ID)}
		}
		seen[n.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.load(doc)
	s.bus.Publish(Event{Type: EventTopologyLoaded, Payload: res})
	return res, nil
}

func (s *Store) load(doc *domain.Document) LoadResult {
	var res LoadResult
	s.reset()
	maxID := 0
	for i := range doc.Nodes {
		n := doc.Nodes[i].Clone()
		s.nodes[n.ID] = n
		for _, obs := range s.observers {
			obs.AddNode(n.ID)
		}
		maxID = max(maxID, n.ID)
	}
	s.nextID = max(s.nextID, maxID+1)
	res.Nodes = len(s.nodes)

	for _, layer := range domain.AllLayers {
		lt := doc.Topologies.Layer(layer)
		if lt == nil {
			continue
		}
		o := s.overlays[layer]
		for i := range lt.Connections {
			c := lt.Connections[i].Clone()
			_, srcOK := o.nodes[c.Source]
			_, dstOK := o.nodes[c.Target]
			_, dup := o.conns[c.Key()]
			if !srcOK || !dstOK || c.IsSelfLoop() || dup {
				res.Dropped++
				continue
			}
			o.insert(c)
			res.Connections++
		}
	}
	return res
}

// MergeResult reports what Merge added to the topology
type MergeResult struct {
	Nodes       int         `json:"nodes"`
	Connections int         `json:"connections"`
	IDMap       map[int]int `json:"id_map"`
}

// Merge adds the nodes and connections of other to the current topology in
// one mutation. Incoming nodes are issued fresh ids in their id order;
// connections follow them and pairs already present are skipped.
func (s *Store) Merge(other *domain.Document) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.export()
	merged, idMap := codec.Merge(base, other, s.nextID)
	loaded := s.load(merged)

	res := MergeResult{
		Nodes:       len(idMap),
		Connections: loaded.Connections - base.ConnectionCount(),
		IDMap:       idMap,
	}
	s.bus.Publish(Event{Type: EventTopologyLoaded, Payload: res})
	return res
}

// Export captures the topology as a document body. Metadata and settings
// are left for the caller to fill.
func (s *Store) Export() *domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.export()
}

func (s *Store) export() *domain.Document {
	doc := &domain.Document{Nodes: make([]domain.Node, 0, len(s.nodes))}
	for _, id := range s.sortedIDs() {
		doc.Nodes = append(doc.Nodes, *s.nodes[id].Clone())
	}
	for _, layer := range domain.AllLayers {
		doc.Topologies.SetLayer(layer, &domain.LayerTopology{Connections: s.overlays[layer].connections()})
	}
	return doc
}

func (s *Store) sortedIDs() []int {
	ids := make([]int, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
