package topology

import (
	"errors"
	"sync"
	"testing"

	"netlayers/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewEventBus(), WithSeed(42))
}

func mustCreate(t *testing.T, s *Store, spec domain.NodeSpec) int {
	t.Helper()
	id, err := s.CreateNode(spec)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	return id
}

func mustOverlay(t *testing.T, s *Store, layer domain.Layer) *Overlay {
	t.Helper()
	o, err := s.Overlay(layer)
	if err != nil {
		t.Fatalf("Overlay(%s): %v", layer, err)
	}
	return o
}

func strPtr(s string) *string { return &s }

func TestStoreCreateNode(t *testing.T) {
	t.Run("ids are distinct and increasing", func(t *testing.T) {
		s := newTestStore(t)
		seen := make(map[int]bool)
		prev := 0
		for i := 0; i < 50; i++ {
			id := mustCreate(t, s, domain.NodeSpec{})
			if seen[id] {
				t.Fatalf("id %d issued twice", id)
			}
			if id <= prev {
				t.Fatalf("expected id > %d, got %d", prev, id)
			}
			seen[id] = true
			prev = id
		}
	})

	t.Run("ids are not reused after delete", func(t *testing.T) {
		s := newTestStore(t)
		a := mustCreate(t, s, domain.NodeSpec{})
		b := mustCreate(t, s, domain.NodeSpec{})
		if err := s.DeleteNode(b); err != nil {
			t.Fatal(err)
		}
		c := mustCreate(t, s, domain.NodeSpec{})
		if c == a || c == b {
			t.Errorf("expected fresh id, got %d", c)
		}
	})

	t.Run("fills defaults", func(t *testing.T) {
		s := newTestStore(t)
		id := mustCreate(t, s, domain.NodeSpec{})
		n, err := s.Node(id)
		if err != nil {
			t.Fatal(err)
		}
		if n.Name != "Device-1" {
			t.Errorf("expected Device-1, got %s", n.Name)
		}
		if n.L3.IP != "192.168.1.1" || n.L3.Mask != "255.255.255.0" {
			t.Errorf("unexpected l3 defaults %+v", n.L3)
		}
		if n.X < DefaultMinX || n.X > DefaultMaxX || n.Y < DefaultMinY || n.Y > DefaultMaxY {
			t.Errorf("position (%f,%f) outside default region", n.X, n.Y)
		}
	})

	t.Run("visible to every overlay", func(t *testing.T) {
		s := newTestStore(t)
		id := mustCreate(t, s, domain.NodeSpec{})
		for _, layer := range domain.AllLayers {
			if !mustOverlay(t, s, layer).HasNode(id) {
				t.Errorf("%s overlay does not know node %d", layer, id)
			}
		}
	})

	t.Run("rejects invalid attributes", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.CreateNode(domain.NodeSpec{L3: &domain.L3Attrs{IP: "999.1.1.1"}})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
		if s.NodeCount() != 0 {
			t.Errorf("expected no node stored, got %d", s.NodeCount())
		}
	})

	t.Run("publishes event", func(t *testing.T) {
		bus := NewEventBus()
		ch := make(chan Event, 4)
		bus.Subscribe(ch)
		s := NewStore(bus)
		mustCreate(t, s, domain.NodeSpec{})

		select {
		case ev := <-ch:
			if ev.Type != EventNodeCreated {
				t.Errorf("expected %s, got %s", EventNodeCreated, ev.Type)
			}
		default:
			t.Error("expected an event")
		}
	})
}

func TestStoreUpdateNode(t *testing.T) {
	s := newTestStore(t)
	id := mustCreate(t, s, domain.NodeSpec{})

	t.Run("unknown id", func(t *testing.T) {
		err := s.UpdateNode(99, domain.NodePatch{Name: strPtr("x")})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("replaces l3 group", func(t *testing.T) {
		if err := s.UpdateNode(id, domain.NodePatch{L3: &domain.L3Attrs{IP: "10.0.0.1", Mask: "255.0.0.0"}}); err != nil {
			t.Fatal(err)
		}
		n, _ := s.Node(id)
		if n.L3.IP != "10.0.0.1" || n.L3.Gateway != "" || n.L3.Mask != "255.0.0.0" {
			t.Errorf("unexpected l3 %+v", n.L3)
		}
		if n.Name != "Device-1" {
			t.Errorf("name should be untouched, got %s", n.Name)
		}
	})

	t.Run("invalid patch leaves node unchanged", func(t *testing.T) {
		err := s.UpdateNode(id, domain.NodePatch{Name: strPtr("")})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
		n, _ := s.Node(id)
		if n.Name != "Device-1" {
			t.Errorf("expected name kept, got %q", n.Name)
		}
	})
}

func TestStoreDeleteNodeCascades(t *testing.T) {
	s := newTestStore(t)
	a := mustCreate(t, s, domain.NodeSpec{})
	b := mustCreate(t, s, domain.NodeSpec{})
	c := mustCreate(t, s, domain.NodeSpec{})

	for _, layer := range domain.AllLayers {
		o := mustOverlay(t, s, layer)
		o.AddConnection(a, b, nil)
		o.AddConnection(a, c, nil)
		o.AddConnection(b, c, nil)
	}

	if err := s.DeleteNode(a); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	for _, layer := range domain.AllLayers {
		o := mustOverlay(t, s, layer)
		for _, conn := range o.Connections() {
			if conn.Involves(a) {
				t.Errorf("%s still references deleted node: %+v", layer, conn)
			}
		}
		if o.Len() != 1 {
			t.Errorf("%s: expected 1 remaining connection, got %d", layer, o.Len())
		}
		if o.HasNode(a) {
			t.Errorf("%s still tracks deleted node", layer)
		}
	}

	if err := s.DeleteNode(a); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestListIsolatedNodeNames(t *testing.T) {
	s := newTestStore(t)
	a := mustCreate(t, s, domain.NodeSpec{Name: strPtr("core")})
	b := mustCreate(t, s, domain.NodeSpec{Name: strPtr("edge")})
	mustCreate(t, s, domain.NodeSpec{Name: strPtr("lonely")})

	mustOverlay(t, s, domain.LayerDataLink).AddConnection(a, b, nil)

	l2, err := s.ListIsolatedNodeNames(domain.LayerDataLink)
	if err != nil {
		t.Fatal(err)
	}
	if len(l2) != 1 || l2[0] != "lonely" {
		t.Errorf("expected [lonely], got %v", l2)
	}

	l1, _ := s.ListIsolatedNodeNames(domain.LayerPhysical)
	if len(l1) != 3 || l1[0] != "core" || l1[2] != "lonely" {
		t.Errorf("expected all three in id order, got %v", l1)
	}

	if _, err := s.ListIsolatedNodeNames("l9"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for unknown layer, got %v", err)
	}
}

func TestScenarioConnectAndDelete(t *testing.T) {
	t.Run("add twice in l2", func(t *testing.T) {
		s := newTestStore(t)
		n1 := mustCreate(t, s, domain.NodeSpec{})
		n2 := mustCreate(t, s, domain.NodeSpec{})
		l2 := mustOverlay(t, s, domain.LayerDataLink)

		if !l2.AddConnection(n1, n2, nil) {
			t.Fatal("expected first add to succeed")
		}
		if l2.AddConnection(n2, n1, nil) {
			t.Error("expected reversed add to be refused")
		}
		names, _ := s.ListIsolatedNodeNames(domain.LayerDataLink)
		if len(names) != 0 {
			t.Errorf("expected no isolated nodes, got %v", names)
		}
	})

	t.Run("delete endpoint in l1", func(t *testing.T) {
		s := newTestStore(t)
		n1 := mustCreate(t, s, domain.NodeSpec{})
		n2 := mustCreate(t, s, domain.NodeSpec{})
		l1 := mustOverlay(t, s, domain.LayerPhysical)
		l1.AddConnection(n1, n2, nil)

		if err := s.DeleteNode(n1); err != nil {
			t.Fatal(err)
		}
		if l1.Len() != 0 {
			t.Errorf("expected 0 connections, got %d", l1.Len())
		}
		if _, err := s.Node(n2); err != nil {
			t.Errorf("node 2 should survive: %v", err)
		}
	})
}

func TestCreateNodeIfAddressFree(t *testing.T) {
	s := newTestStore(t)
	spec := domain.NodeSpec{L3: &domain.L3Attrs{IP: "10.0.0.5", Mask: domain.DefaultMask}}

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.CreateNodeIfAddressFree(spec)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 || s.NodeCount() != 1 {
		t.Errorf("expected exactly one node, created=%d count=%d", created, s.NodeCount())
	}
}

func TestSetPositions(t *testing.T) {
	s := newTestStore(t)
	id := mustCreate(t, s, domain.NodeSpec{})

	t.Run("canonical", func(t *testing.T) {
		n, err := s.SetPositions(domain.LayerNetwork, []domain.NodePosition{
			domain.NewNodePosition(id, 400, 300),
			domain.NewNodePosition(77, 1, 1),
		}, false)
		if err != nil || n != 1 {
			t.Fatalf("expected 1 applied, got %d, %v", n, err)
		}
		node, _ := s.Node(id)
		if node.X != 400 || node.Y != 300 {
			t.Errorf("expected (400,300), got (%f,%f)", node.X, node.Y)
		}
	})

	t.Run("override", func(t *testing.T) {
		s.SetPositions(domain.LayerDataLink, []domain.NodePosition{domain.NewNodePosition(id, 10, 20)}, true)
		node, _ := s.Node(id)
		if p := node.PositionIn(domain.LayerDataLink); p.X != 10 || p.Y != 20 {
			t.Errorf("expected override (10,20), got %+v", p)
		}
		if node.X != 400 {
			t.Errorf("canonical position changed: %f", node.X)
		}
		if cleared := s.ClearLayerPositions(domain.LayerDataLink); cleared != 1 {
			t.Errorf("expected 1 override cleared, got %d", cleared)
		}
	})
}

func TestStoreLoadExport(t *testing.T) {
	doc := domain.NewDocument("lab")
	doc.Nodes = []domain.Node{*domain.NewNode(3), *domain.NewNode(8)}
	doc.Topologies.L1.Connections = []domain.Connection{
		{Source: 8, Target: 3, L1: &domain.L1Link{SourcePort: "eth1", TargetPort: "eth0"}},
		{Source: 3, Target: 42},
	}
	doc.Topologies.L3.Connections = []domain.Connection{{Source: 3, Target: 8, Type: "vpn"}}

	s := newTestStore(t)
	res, err := s.Load(doc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Nodes != 2 || res.Connections != 2 || res.Dropped != 1 {
		t.Errorf("unexpected load result %+v", res)
	}

	id := mustCreate(t, s, domain.NodeSpec{})
	if id != 9 {
		t.Errorf("expected next id 9, got %d", id)
	}

	out := s.Export()
	l1 := out.Topologies.L1.Connections
	if len(l1) != 1 || l1[0].Source != 8 || l1[0].L1.SourcePort != "eth1" {
		t.Errorf("l1 connection not preserved: %+v", l1)
	}
	if out.Topologies.L3.Connections[0].Type != "vpn" {
		t.Errorf("l3 type not preserved")
	}
	if len(out.Nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(out.Nodes))
	}

	t.Run("duplicate ids refused", func(t *testing.T) {
		bad := domain.NewDocument("dup")
		bad.Nodes = []domain.Node{*domain.NewNode(1), *domain.NewNode(1)}
		if _, err := s.Load(bad); !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
		if s.NodeCount() != 3 {
			t.Errorf("failed load must keep the current topology, got %d nodes", s.NodeCount())
		}
	})
}

func TestLayerGraph(t *testing.T) {
	s := newTestStore(t)
	a := mustCreate(t, s, domain.NodeSpec{})
	b := mustCreate(t, s, domain.NodeSpec{})
	mustOverlay(t, s, domain.LayerDataLink).AddConnection(a, b, &domain.Connection{L2: &domain.L2Link{Mode: domain.PortModeTrunk}})

	g, err := s.LayerGraph(domain.LayerDataLink)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Fatalf("expected 2 nodes and 1 edge, got %d/%d", len(g.Nodes), len(g.Edges))
	}
	if g.Edges[0].Label != "trunk" {
		t.Errorf("expected trunk label, got %s", g.Edges[0].Label)
	}
	if g.Nodes[0].Degree != 1 {
		t.Errorf("expected degree 1, got %d", g.Nodes[0].Degree)
	}
}

func TestStoreIDsNeverReissued(t *testing.T) {
	tests := []struct {
		name    string
		rebuild func(t *testing.T, s *Store)
	}{
		{"load", func(t *testing.T, s *Store) {
			doc := domain.NewDocument("lab")
			doc.Nodes = []domain.Node{*domain.NewNode(1)}
			if _, err := s.Load(doc); err != nil {
				t.Fatalf("Load: %v", err)
			}
		}},
		{"merge", func(t *testing.T, s *Store) {
			s.Merge(domain.NewDocument("empty"))
		}},
		{"reset", func(t *testing.T, s *Store) {
			s.Reset()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			for range 3 {
				mustCreate(t, s, domain.NodeSpec{})
			}
			if err := s.DeleteNode(3); err != nil {
				t.Fatalf("DeleteNode: %v", err)
			}

			tt.rebuild(t, s)

			if id := mustCreate(t, s, domain.NodeSpec{}); id != 4 {
				t.Errorf("expected id 4 after %s, got %d", tt.name, id)
			}
		})
	}
}

func TestStoreMerge(t *testing.T) {
	s := newTestStore(t)
	a := mustCreate(t, s, domain.NodeSpec{})
	b := mustCreate(t, s, domain.NodeSpec{})
	if _, err := mustOverlay(t, s, domain.LayerPhysical).Connect(a, b, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.DeleteNode(b); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	other := domain.NewDocument("branch")
	other.Nodes = []domain.Node{*domain.NewNode(1), *domain.NewNode(2)}
	other.Topologies.L3.Connections = []domain.Connection{{Source: 1, Target: 2}}

	res := s.Merge(other)
	if res.Nodes != 2 || res.Connections != 1 {
		t.Errorf("unexpected merge result %+v", res)
	}
	if res.IDMap[1] != 3 || res.IDMap[2] != 4 {
		t.Errorf("expected imported ids 3 and 4, got %v", res.IDMap)
	}
	if _, ok := mustOverlay(t, s, domain.LayerNetwork).Connection(domain.NewPairKey(3, 4)); !ok {
		t.Error("imported connection not remapped to 3-4")
	}
}

func TestStoreMergeSerializesWithEdits(t *testing.T) {
	s := newTestStore(t)
	other := domain.NewDocument("branch")
	other.Nodes = []domain.Node{*domain.NewNode(1)}

	const workers, rounds = 4, 25
	var wg sync.WaitGroup
	for range workers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range rounds {
				s.Merge(other)
			}
		}()
		go func() {
			defer wg.Done()
			for range rounds {
				if _, err := s.CreateNode(domain.NodeSpec{}); err != nil {
					t.Errorf("CreateNode: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if got, want := s.NodeCount(), 2*workers*rounds; got != want {
		t.Errorf("expected %d nodes, got %d", want, got)
	}
}
