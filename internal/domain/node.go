package domain

import (
	"fmt"
	"strings"
)

// DeviceType represents the kind of network device a node stands for
type DeviceType string

const (
	DeviceHost        DeviceType = "host"
	DeviceWorkstation DeviceType = "workstation"
	DeviceServer      DeviceType = "server"
	DeviceRouter      DeviceType = "router"
	DeviceSwitch      DeviceType = "switch"
	DeviceFirewall    DeviceType = "firewall"
	DeviceAccessPoint DeviceType = "access_point"
	DeviceGateway     DeviceType = "gateway"
	DevicePrinter     DeviceType = "printer"
	DeviceCamera      DeviceType = "camera"
	DeviceFTPServer   DeviceType = "ftp_server"
	DeviceMailServer  DeviceType = "mail_server"
	DeviceDNSServer   DeviceType = "dns_server"
)

// DeviceTypes lists every known device type
var DeviceTypes = []DeviceType{
	DeviceHost, DeviceWorkstation, DeviceServer, DeviceRouter, DeviceSwitch,
	DeviceFirewall, DeviceAccessPoint, DeviceGateway, DevicePrinter, DeviceCamera,
	DeviceFTPServer, DeviceMailServer, DeviceDNSServer,
}

// ParseDeviceType converts a string to DeviceType, defaulting to DeviceHost
func ParseDeviceType(s string) DeviceType {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range DeviceTypes {
		if string(t) == s {
			return t
		}
	}
	return DeviceHost
}

// Status represents the operational state of a device
type Status string

const (
	StatusOnline      Status = "online"
	StatusOffline     Status = "offline"
	StatusMaintenance Status = "maintenance"
	StatusError       Status = "error"
)

// ParseStatus converts a string to Status, defaulting to StatusOnline
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOffline:
		return StatusOffline
	case StatusMaintenance:
		return StatusMaintenance
	case StatusError:
		return StatusError
	default:
		return StatusOnline
	}
}

// Default attribute values
const (
	DefaultMask = "255.255.255.0"
	DefaultVLAN = 1
)

// L1Attrs is physical-layer node metadata
type L1Attrs struct {
	Location string `json:"location" yaml:"location"`
	Ports    []int  `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// L2Attrs is data-link node metadata
type L2Attrs struct {
	MAC  string `json:"mac" yaml:"mac" validate:"omitempty,mac"`
	VLAN int    `json:"vlan" yaml:"vlan" validate:"omitempty,min=1,max=4094"`
}

// L3Attrs is network-layer node metadata
type L3Attrs struct {
	IP      string `json:"ip" yaml:"ip" validate:"omitempty,ipv4"`
	Mask    string `json:"mask" yaml:"mask" validate:"omitempty,ipv4"`
	Gateway string `json:"gateway" yaml:"gateway" validate:"omitempty,ipv4"`
}

// Node represents a device entity shared by every layer
type Node struct {
	ID     int        `json:"id" yaml:"id" validate:"min=1"`
	Name   string     `json:"name" yaml:"name" validate:"required,max=128"`
	Type   DeviceType `json:"type" yaml:"type" validate:"required,devicetype"`
	Status Status     `json:"status" yaml:"status" validate:"required,oneof=online offline maintenance error"`
	X      float64    `json:"x" yaml:"x"`
	Y      float64    `json:"y" yaml:"y"`

	// LayerPositions holds explicit per-layer placements. A layer without an
	// entry shows the canonical X/Y.
	LayerPositions map[Layer]Position `json:"layer_positions,omitempty" yaml:"layer_positions,omitempty"`

	L1 L1Attrs `json:"l1" yaml:"l1"`
	L2 L2Attrs `json:"l2" yaml:"l2"`
	L3 L3Attrs `json:"l3" yaml:"l3"`
}

// NewNode creates a node with every attribute defaulted for the given id
func NewNode(id int) *Node {
	return &Node{
		ID:     id,
		Name:   DefaultNodeName(id),
		Type:   DeviceHost,
		Status: StatusOnline,
		L2:     L2Attrs{VLAN: DefaultVLAN},
		L3: L3Attrs{
			IP:   fmt.Sprintf("192.168.1.%d", id),
			Mask: DefaultMask,
		},
	}
}

// DefaultNodeName returns the name given to a node created without one
func DefaultNodeName(id int) string {
	return fmt.Sprintf("Device-%d", id)
}

// PositionIn returns where the node is drawn in the given layer
func (n *Node) PositionIn(layer Layer) Position {
	if p, ok := n.LayerPositions[layer]; ok {
		return p
	}
	return Position{X: n.X, Y: n.Y}
}

// SetLayerPosition records an explicit placement for one layer
func (n *Node) SetLayerPosition(layer Layer, p Position) {
	if n.LayerPositions == nil {
		n.LayerPositions = make(map[Layer]Position)
	}
	n.LayerPositions[layer] = p
}

// Clone returns a deep copy safe to hand out of the store
func (n *Node) Clone() *Node {
	c := *n
	if n.L1.Ports != nil {
		c.L1.Ports = append([]int(nil), n.L1.Ports...)
	}
	if n.LayerPositions != nil {
		c.LayerPositions = make(map[Layer]Position, len(n.LayerPositions))
		for k, v := range n.LayerPositions {
			c.LayerPositions[k] = v
		}
	}
	return &c
}

// NodeSpec carries the optional attributes supplied on creation. Nil fields
// fall back to the defaults of NewNode.
type NodeSpec struct {
	Name   *string     `json:"name,omitempty"`
	Type   *DeviceType `json:"type,omitempty"`
	Status *Status     `json:"status,omitempty"`
	X      *float64    `json:"x,omitempty"`
	Y      *float64    `json:"y,omitempty"`
	L1     *L1Attrs    `json:"l1,omitempty"`
	L2     *L2Attrs    `json:"l2,omitempty"`
	L3     *L3Attrs    `json:"l3,omitempty"`
}

// NodePatch carries the fields of an update. Scalars merge individually while
// a supplied attribute group replaces the stored group as a whole.
type NodePatch NodeSpec

// Apply merges the supplied fields into n
func (p NodePatch) Apply(n *Node) {
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Type != nil {
		n.Type = *p.Type
	}
	if p.Status != nil {
		n.Status = *p.Status
	}
	if p.X != nil {
		n.X = *p.X
	}
	if p.Y != nil {
		n.Y = *p.Y
	}
	if p.L1 != nil {
		n.L1 = *p.L1
		if p.L1.Ports != nil {
			n.L1.Ports = append([]int(nil), p.L1.Ports...)
		}
	}
	if p.L2 != nil {
		n.L2 = *p.L2
	}
	if p.L3 != nil {
		n.L3 = *p.L3
	}
}

// Empty reports whether the patch changes nothing
func (p NodePatch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Status == nil && p.X == nil &&
		p.Y == nil && p.L1 == nil && p.L2 == nil && p.L3 == nil
}
