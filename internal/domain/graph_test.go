package domain

import (
	"strings"
	"testing"
)

func TestNewGraphNode(t *testing.T) {
	n := NewNode(4)
	n.X, n.Y = 10, 20
	n.SetLayerPosition(LayerNetwork, Position{X: 30, Y: 40})

	t.Run("uses layer override", func(t *testing.T) {
		g := NewGraphNode(n, LayerNetwork, 2)
		if g.Position.X != 30 || g.Position.Y != 40 {
			t.Errorf("expected (30,40), got %+v", g.Position)
		}
		if g.Degree != 2 {
			t.Errorf("expected degree 2, got %d", g.Degree)
		}
		if !strings.Contains(g.Title, "192.168.1.4/24") {
			t.Errorf("expected address in tooltip, got %q", g.Title)
		}
	})

	t.Run("uses canonical position elsewhere", func(t *testing.T) {
		g := NewGraphNode(n, LayerPhysical, 0)
		if g.Position.X != 10 || g.Position.Y != 20 {
			t.Errorf("expected (10,20), got %+v", g.Position)
		}
		if g.Group != "host" {
			t.Errorf("expected group host, got %s", g.Group)
		}
	})
}

func TestNewGraphEdge(t *testing.T) {
	tests := []struct {
		name string
		conn *Connection
		want string
	}{
		{"l1 ports", &Connection{Source: 2, Target: 1, L1: &L1Link{SourcePort: "p1", TargetPort: "p2"}}, "p1 - p2"},
		{"l2 access", NewConnection(LayerDataLink, 1, 2), "vlan 1"},
		{"l2 trunk", &Connection{Source: 1, Target: 2, L2: &L2Link{Mode: PortModeTrunk}}, "trunk"},
		{"l3", NewConnection(LayerNetwork, 1, 2), DefaultConnectionType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewGraphEdge(tt.conn)
			if e.Label != tt.want {
				t.Errorf("expected label %q, got %q", tt.want, e.Label)
			}
			if e.ID != "1-2" {
				t.Errorf("expected id 1-2, got %s", e.ID)
			}
		})
	}
}
