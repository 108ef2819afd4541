package domain

// Position is a point in canvas coordinates
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NodePosition pairs a node id with a position, as produced by layout runs
type NodePosition struct {
	NodeID int     `json:"node_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// NewNodePosition creates a new node position
func NewNodePosition(nodeID int, x, y float64) NodePosition {
	return NodePosition{NodeID: nodeID, X: x, Y: y}
}

// Position returns the bare coordinates
func (p NodePosition) Position() Position {
	return Position{X: p.X, Y: p.Y}
}
