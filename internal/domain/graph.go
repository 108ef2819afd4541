package domain

import (
	"fmt"
	"strings"
)

// Graph is the induced graph of one layer in vis-network form: every node of
// the store plus the connections of that layer
type Graph struct {
	Layer Layer       `json:"layer"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode represents a node in the visualization
type GraphNode struct {
	ID       int      `json:"id"`
	Label    string   `json:"label"`
	Group    string   `json:"group"` // device type, picks the icon
	Title    string   `json:"title"` // tooltip content
	Status   Status   `json:"status"`
	Position Position `json:"position"`
	Degree   int      `json:"degree"`
}

// GraphEdge represents an edge in the visualization
type GraphEdge struct {
	ID    string `json:"id"`
	From  int    `json:"from"`
	To    int    `json:"to"`
	Label string `json:"label"`
}

// NewGraphNode renders a node as it appears in the given layer
func NewGraphNode(n *Node, layer Layer, degree int) GraphNode {
	return GraphNode{
		ID:       n.ID,
		Label:    n.Name,
		Group:    string(n.Type),
		Title:    buildTooltip(n, layer),
		Status:   n.Status,
		Position: n.PositionIn(layer),
		Degree:   degree,
	}
}

// NewGraphEdge renders a connection with the label relevant to its layer
func NewGraphEdge(c *Connection) GraphEdge {
	return GraphEdge{
		ID:    c.Key().String(),
		From:  c.Source,
		To:    c.Target,
		Label: edgeLabel(c),
	}
}

func buildTooltip(n *Node, layer Layer) string {
	lines := []string{n.Name, string(n.Type)}
	switch layer {
	case LayerPhysical:
		if n.L1.Location != "" {
			lines = append(lines, n.L1.Location)
		}
	case LayerDataLink:
		if n.L2.MAC != "" {
			lines = append(lines, n.L2.MAC)
		}
		lines = append(lines, fmt.Sprintf("VLAN %d", n.L2.VLAN))
	case LayerNetwork:
		if n.L3.IP != "" {
			lines = append(lines, n.L3.IP+"/"+maskBits(n.L3.Mask))
		}
	}
	return strings.Join(lines, "\n")
}

func maskBits(mask string) string {
	n, err := PrefixLength(mask)
	if err != nil {
		return "?"
	}
	return fmt.Sprintf("%d", n)
}

func edgeLabel(c *Connection) string {
	switch {
	case c.L1 != nil && (c.L1.SourcePort != "" || c.L1.TargetPort != ""):
		return c.L1.SourcePort + " - " + c.L1.TargetPort
	case c.L2 != nil && c.L2.Mode == PortModeTrunk:
		return "trunk"
	case c.L2 != nil:
		return fmt.Sprintf("vlan %d", c.L2.VLAN)
	default:
		return c.Type
	}
}
