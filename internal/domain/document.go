package domain

import "time"

// DocumentVersion is written into every saved project
const DocumentVersion = "1.2"

// Metadata describes a saved project
type Metadata struct {
	Name     string    `json:"name" yaml:"name"`
	Created  Timestamp `json:"created" yaml:"created"`
	Modified Timestamp `json:"modified" yaml:"modified"`
	Version  string    `json:"version" yaml:"version"`
}

// LayerTopology is the connection set of one layer as persisted
type LayerTopology struct {
	Connections []Connection `json:"connections" yaml:"connections"`
}

// Topologies groups the three persisted layers
type Topologies struct {
	L1 *LayerTopology `json:"l1" yaml:"l1"`
	L2 *LayerTopology `json:"l2" yaml:"l2"`
	L3 *LayerTopology `json:"l3" yaml:"l3"`
}

// Layer returns the persisted topology for a layer, or nil
func (t *Topologies) Layer(layer Layer) *LayerTopology {
	switch layer {
	case LayerPhysical:
		return t.L1
	case LayerDataLink:
		return t.L2
	case LayerNetwork:
		return t.L3
	}
	return nil
}

// SetLayer replaces the persisted topology for a layer
func (t *Topologies) SetLayer(layer Layer, lt *LayerTopology) {
	switch layer {
	case LayerPhysical:
		t.L1 = lt
	case LayerDataLink:
		t.L2 = lt
	case LayerNetwork:
		t.L3 = lt
	}
}

// Settings holds per-project editor preferences
type Settings struct {
	AutoLayout bool `json:"auto_layout" yaml:"auto_layout"`
}

// Document is the persisted project: nodes plus three connection sets
type Document struct {
	Metadata   Metadata   `json:"metadata" yaml:"metadata"`
	Nodes      []Node     `json:"nodes" yaml:"nodes"`
	Topologies Topologies `json:"topologies" yaml:"topologies"`
	Settings   Settings   `json:"settings" yaml:"settings"`
}

// NewDocument returns an empty project with every section present
func NewDocument(name string) *Document {
	now := time.Now().UTC().Truncate(time.Second)
	return &Document{
		Metadata: Metadata{
			Name:     name,
			Created:  NewTimestamp(now),
			Modified: NewTimestamp(now),
			Version:  DocumentVersion,
		},
		Nodes: []Node{},
		Topologies: Topologies{
			L1: &LayerTopology{Connections: []Connection{}},
			L2: &LayerTopology{Connections: []Connection{}},
			L3: &LayerTopology{Connections: []Connection{}},
		},
		Settings: Settings{AutoLayout: true},
	}
}

// MissingSections lists the layers whose connection list is absent
func (d *Document) MissingSections() []Layer {
	var missing []Layer
	for _, layer := range AllLayers {
		lt := d.Topologies.Layer(layer)
		if lt == nil || lt.Connections == nil {
			missing = append(missing, layer)
		}
	}
	return missing
}

// FillDefaults creates empty sections for anything missing and returns the
// layers it had to default
func (d *Document) FillDefaults() []Layer {
	missing := d.MissingSections()
	for _, layer := range missing {
		lt := d.Topologies.Layer(layer)
		if lt == nil {
			d.Topologies.SetLayer(layer, &LayerTopology{Connections: []Connection{}})
			continue
		}
		lt.Connections = []Connection{}
	}
	if d.Nodes == nil {
		d.Nodes = []Node{}
	}
	if d.Metadata.Version == "" {
		d.Metadata.Version = DocumentVersion
	}
	return missing
}

// ConnectionCount returns the total number of connections across layers
func (d *Document) ConnectionCount() int {
	total := 0
	for _, layer := range AllLayers {
		if lt := d.Topologies.Layer(layer); lt != nil {
			total += len(lt.Connections)
		}
	}
	return total
}
