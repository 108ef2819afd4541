package topology

import (
	"fmt"
	"slices"
	"sync"

	"netlayers/internal/domain"
	"netlayers/internal/validation"
)

// NodeObserver is notified by the Store whenever a node enters or leaves the
// shared identity set. Both methods run with the store lock held.
type NodeObserver interface {
	AddNode(id int)
	RemoveNodeCascade(id int) []domain.PairKey
}

// Graph is a read-only snapshot of one layer: every node known to the store
// and the connections of that layer
type Graph struct {
	Layer   domain.Layer     `json:"layer"`
	NodeIDs []int            `json:"node_ids"`
	Edges   []domain.PairKey `json:"edges"`
}

// Overlay holds the connection set of one layer. It shares the store lock,
// so a reader never sees a node deleted from one layer but not another.
type Overlay struct {
	layer domain.Layer
	mu    *sync.RWMutex
	bus   *EventBus

	nodes map[int]struct{}
	conns map[domain.PairKey]*domain.Connection
	adj   map[int]map[int]struct{}
}

func newOverlay(layer domain.Layer, mu *sync.RWMutex, bus *EventBus) *Overlay {
	o := &Overlay{layer: layer, mu: mu, bus: bus}
	o.reset()
	return o
}

func (o *Overlay) reset() {
	o.nodes = make(map[int]struct{})
	o.conns = make(map[domain.PairKey]*domain.Connection)
	o.adj = make(map[int]map[int]struct{})
}

// Layer returns the layer this overlay represents
func (o *Overlay) Layer() domain.Layer {
	return o.layer
}

// AddNode registers a node id. Called by the Store with its lock held.
func (o *Overlay) AddNode(id int) {
	o.nodes[id] = struct{}{}
	if o.adj[id] == nil {
		o.adj[id] = make(map[int]struct{})
	}
}

// RemoveNodeCascade drops every connection incident to id and then id
// itself. Called by the Store with its lock held.
func (o *Overlay) RemoveNodeCascade(id int) []domain.PairKey {
	var removed []domain.PairKey
	for other := range o.adj[id] {
		key := domain.NewPairKey(id, other)
		o.removeConnection(key)
		removed = append(removed, key)
	}
	delete(o.adj, id)
	delete(o.nodes, id)
	slices.SortFunc(removed, comparePairKeys)
	return removed
}

// AddConnection inserts a connection between two known nodes. It returns
// false for unknown ids, self-loops, invalid attributes or an existing pair.
func (o *Overlay) AddConnection(source, target int, attrs *domain.Connection) bool {
	_, err := o.Connect(source, target, attrs)
	return err == nil
}

// Connect behaves like AddConnection but reports why an insert was refused
func (o *Overlay) Connect(source, target int, attrs *domain.Connection) (*domain.Connection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	conn, err := o.connect(source, target, attrs)
	if err != nil {
		return nil, err
	}

	o.bus.Publish(Event{
		Type:    EventConnectionCreated,
		Payload: connectionPayload(o.layer, conn),
	})
	return conn.Clone(), nil
}

func (o *Overlay) connect(source, target int, attrs *domain.Connection) (*domain.Connection, error) {
	if _, ok := o.nodes[source]; !ok {
		return nil, domain.NodeNotFound(source)
	}
	if _, ok := o.nodes[target]; !ok {
		return nil, domain.NodeNotFound(target)
	}
	if source == target {
		return nil, &domain.ValidationError{Field: "target", Reason: "self-loops are not allowed"}
	}
	key := domain.NewPairKey(source, target)
	if _, exists := o.conns[key]; exists {
		return nil, &domain.ConflictError{Kind: "connection", Key: fmt.Sprintf("%s/%s", o.layer, key)}
	}

	conn := domain.NewConnection(o.layer, source, target)
	if attrs != nil {
		probe := o.scope(attrs)
		probe.Source, probe.Target = source, target
		conn.Merge(probe)
	}
	if err := validation.Connection(conn); err != nil {
		return nil, err
	}

	o.insert(conn)
	return conn, nil
}

// scope drops the attribute groups that do not belong to this layer
func (o *Overlay) scope(attrs *domain.Connection) *domain.Connection {
	c := attrs.Clone()
	if o.layer != domain.LayerPhysical {
		c.L1 = nil
	}
	if o.layer != domain.LayerDataLink {
		c.L2 = nil
	}
	return c
}

func (o *Overlay) insert(conn *domain.Connection) {
	key := conn.Key()
	o.conns[key] = conn
	o.link(key.A, key.B)
	o.link(key.B, key.A)
}

func (o *Overlay) link(from, to int) {
	if o.adj[from] == nil {
		o.adj[from] = make(map[int]struct{})
	}
	o.adj[from][to] = struct{}{}
}

// UpdateConnection merges the non-empty attributes of attrs into the
// connection between attrs.Source and attrs.Target. A missing connection is
// a silent no-op, and so is an update the connection rules refuse; use
// Update to learn why.
func (o *Overlay) UpdateConnection(attrs domain.Connection) {
	_, _ = o.Update(attrs)
}

// Update merges attrs like UpdateConnection and returns the stored result.
// A missing pair is a NotFoundError. When the merged attributes break the
// connection rules nothing changes and the ValidationError is returned.
func (o *Overlay) Update(attrs domain.Connection) (*domain.Connection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := attrs.Key()
	conn, ok := o.conns[key]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "connection", Key: fmt.Sprintf("%s/%s", o.layer, key)}
	}
	updated := conn.Clone()
	updated.Merge(o.scope(&attrs))
	if err := validation.Connection(updated); err != nil {
		return nil, err
	}
	*conn = *updated

	o.bus.Publish(Event{
		Type:    EventConnectionUpdated,
		Payload: connectionPayload(o.layer, conn),
	})
	return conn.Clone(), nil
}

// RemoveConnection deletes the connection with the given key
func (o *Overlay) RemoveConnection(key domain.PairKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.removeConnection(key) {
		return false
	}
	o.bus.Publish(Event{
		Type:    EventConnectionDeleted,
		Payload: map[string]any{"layer": o.layer, "source": key.A, "target": key.B},
	})
	return true
}

func (o *Overlay) removeConnection(key domain.PairKey) bool {
	if _, ok := o.conns[key]; !ok {
		return false
	}
	delete(o.conns, key)
	delete(o.adj[key.A], key.B)
	delete(o.adj[key.B], key.A)
	return true
}

// InducedGraph returns the node ids and connection keys of this layer
func (o *Overlay) InducedGraph() Graph {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.inducedGraph()
}

func (o *Overlay) inducedGraph() Graph {
	g := Graph{
		Layer:   o.layer,
		NodeIDs: make([]int, 0, len(o.nodes)),
		Edges:   make([]domain.PairKey, 0, len(o.conns)),
	}
	for id := range o.nodes {
		g.NodeIDs = append(g.NodeIDs, id)
	}
	for key := range o.conns {
		g.Edges = append(g.Edges, key)
	}
	slices.Sort(g.NodeIDs)
	slices.SortFunc(g.Edges, comparePairKeys)
	return g
}

// Connections returns copies of every connection ordered by key
func (o *Overlay) Connections() []domain.Connection {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.connections()
}

func (o *Overlay) connections() []domain.Connection {
	keys := make([]domain.PairKey, 0, len(o.conns))
	for key := range o.conns {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, comparePairKeys)

	out := make([]domain.Connection, 0, len(keys))
	for _, key := range keys {
		out = append(out, *o.conns[key].Clone())
	}
	return out
}

// Connection returns a copy of the connection with the given key
func (o *Overlay) Connection(key domain.PairKey) (*domain.Connection, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	conn, ok := o.conns[key]
	if !ok {
		return nil, false
	}
	return conn.Clone(), true
}

// Degree returns the number of connections incident to id in this layer
func (o *Overlay) Degree(id int) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.adj[id])
}

// Len returns the number of connections in this layer
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.conns)
}

// HasNode reports whether the overlay tracks id
func (o *Overlay) HasNode(id int) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.nodes[id]
	return ok
}

func connectionPayload(layer domain.Layer, c *domain.Connection) map[string]any {
	return map[string]any{"layer": layer, "source": c.Source, "target": c.Target}
}

func comparePairKeys(a, b domain.PairKey) int {
	if a.A != b.A {
		return a.A - b.A
	}
	return a.B - b.B
}
