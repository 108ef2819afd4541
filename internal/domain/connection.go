package domain

import "fmt"

// DefaultConnectionType is the generic label given to new connections
const DefaultConnectionType = "ethernet"

// PortMode is the switchport mode of an L2 link
type PortMode string

const (
	PortModeAccess PortMode = "access"
	PortModeTrunk  PortMode = "trunk"
)

// PairKey identifies a connection within one layer regardless of direction
type PairKey struct {
	A int `json:"a"`
	B int `json:"b"`
}

// NewPairKey orders the endpoints so that A <= B
func NewPairKey(source, target int) PairKey {
	if source > target {
		source, target = target, source
	}
	return PairKey{A: source, B: target}
}

// Involves checks if the key references the given node
func (k PairKey) Involves(id int) bool {
	return k.A == id || k.B == id
}

// OtherEnd returns the node on the other end of the pair
func (k PairKey) OtherEnd(id int) int {
	if k.A == id {
		return k.B
	}
	return k.A
}

func (k PairKey) String() string {
	return fmt.Sprintf("%d-%d", k.A, k.B)
}

// L1Link holds the port labels of a physical connection
type L1Link struct {
	SourcePort string `json:"source_port" yaml:"source_port"`
	TargetPort string `json:"target_port" yaml:"target_port"`
}

// L2Link holds the switchport settings of a data-link connection
type L2Link struct {
	Mode PortMode `json:"type" yaml:"type" validate:"omitempty,oneof=access trunk"`
	VLAN int      `json:"vlan" yaml:"vlan" validate:"omitempty,min=1,max=4094"`
}

// Connection represents an undirected edge between two nodes in one layer
type Connection struct {
	Source int     `json:"source" yaml:"source"`
	Target int     `json:"target" yaml:"target"`
	Type   string  `json:"type,omitempty" yaml:"type,omitempty"`
	L1     *L1Link `json:"l1,omitempty" yaml:"l1,omitempty"`
	L2     *L2Link `json:"l2,omitempty" yaml:"l2,omitempty"`
}

// Key returns the direction-independent identity of the connection
func (c *Connection) Key() PairKey {
	return NewPairKey(c.Source, c.Target)
}

// Involves checks if this connection involves the given node ID
func (c *Connection) Involves(id int) bool {
	return c.Source == id || c.Target == id
}

// OtherEnd returns the node ID on the other end of this connection
func (c *Connection) OtherEnd(id int) int {
	if c.Source == id {
		return c.Target
	}
	return c.Source
}

// IsSelfLoop reports whether both ends are the same node
func (c *Connection) IsSelfLoop() bool {
	return c.Source == c.Target
}

// Clone returns a deep copy
func (c *Connection) Clone() *Connection {
	out := *c
	if c.L1 != nil {
		l1 := *c.L1
		out.L1 = &l1
	}
	if c.L2 != nil {
		l2 := *c.L2
		out.L2 = &l2
	}
	return &out
}

// Merge copies the non-empty attributes of other into c. Endpoints are
// left untouched.
func (c *Connection) Merge(other *Connection) {
	if other.Type != "" {
		c.Type = other.Type
	}
	if other.L1 != nil {
		if c.L1 == nil {
			c.L1 = &L1Link{}
		}
		if other.L1.SourcePort != "" || other.L1.TargetPort != "" {
			// Port labels follow the caller's orientation.
			if other.Source == c.Source {
				c.L1.SourcePort, c.L1.TargetPort = other.L1.SourcePort, other.L1.TargetPort
			} else {
				c.L1.SourcePort, c.L1.TargetPort = other.L1.TargetPort, other.L1.SourcePort
			}
		}
	}
	if other.L2 != nil {
		if c.L2 == nil {
			c.L2 = &L2Link{VLAN: DefaultVLAN, Mode: PortModeAccess}
		}
		if other.L2.Mode != "" {
			c.L2.Mode = other.L2.Mode
		}
		if other.L2.VLAN != 0 {
			c.L2.VLAN = other.L2.VLAN
		}
	}
}

// NewConnection creates a connection carrying the defaults of the given layer
func NewConnection(layer Layer, source, target int) *Connection {
	c := &Connection{Source: source, Target: target, Type: DefaultConnectionType}
	switch layer {
	case LayerPhysical:
		c.L1 = &L1Link{}
	case LayerDataLink:
		c.L2 = &L2Link{Mode: PortModeAccess, VLAN: DefaultVLAN}
	}
	return c
}
