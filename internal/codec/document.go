package codec

import (
	"fmt"
	"os"
	"sort"
	"time"

	"netlayers/internal/domain"
)

// IssueKind classifies a consistency problem in a document
type IssueKind string

const (
	IssueDuplicateID         IssueKind = "duplicate_id"
	IssueDuplicateIP         IssueKind = "duplicate_ip"
	IssueNegativeCoordinates IssueKind = "negative_coordinates"
	IssueDanglingEndpoint    IssueKind = "dangling_endpoint"
	IssueDuplicateConnection IssueKind = "duplicate_connection"
	IssueSelfLoop            IssueKind = "self_loop"
)

// Issue is one consistency problem found by Validate
type Issue struct {
	Kind    IssueKind    `json:"kind"`
	Layer   domain.Layer `json:"layer,omitempty"`
	NodeID  int          `json:"node_id,omitempty"`
	Message string       `json:"message"`
}

// Validate checks a document for problems the store would refuse or drop on
// load. An empty result means the document loads unchanged.
func Validate(doc *domain.Document) []Issue {
	var issues []Issue

	ids := make(map[int]bool, len(doc.Nodes))
	ips := make(map[string]int, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if ids[n.ID] {
			issues = append(issues, Issue{Kind: IssueDuplicateID, NodeID: n.ID,
				Message: fmt.Sprintf("duplicate node id %d", n.ID)})
		}
		ids[n.ID] = true

		if ip := n.L3.IP; ip != "" {
			if other, ok := ips[ip]; ok {
				issues = append(issues, Issue{Kind: IssueDuplicateIP, NodeID: n.ID,
					Message: fmt.Sprintf("address %s used by nodes %d and %d", ip, other, n.ID)})
			} else {
				ips[ip] = n.ID
			}
		}

		if n.X < 0 || n.Y < 0 {
			issues = append(issues, Issue{Kind: IssueNegativeCoordinates, NodeID: n.ID,
				Message: fmt.Sprintf("node %d has negative coordinates (%g, %g)", n.ID, n.X, n.Y)})
		}
	}

	for _, layer := range domain.AllLayers {
		lt := doc.Topologies.Layer(layer)
		if lt == nil {
			continue
		}
		seen := make(map[domain.PairKey]bool, len(lt.Connections))
		for i, c := range lt.Connections {
			if c.IsSelfLoop() {
				issues = append(issues, Issue{Kind: IssueSelfLoop, Layer: layer, NodeID: c.Source,
					Message: fmt.Sprintf("connection %d connects node %d to itself", i, c.Source)})
				continue
			}
			for _, end := range []int{c.Source, c.Target} {
				if !ids[end] {
					issues = append(issues, Issue{Kind: IssueDanglingEndpoint, Layer: layer, NodeID: end,
						Message: fmt.Sprintf("connection %d references missing node %d", i, end)})
				}
			}
			key := c.Key()
			if seen[key] {
				issues = append(issues, Issue{Kind: IssueDuplicateConnection, Layer: layer,
					Message: fmt.Sprintf("duplicate connection %d - %d", c.Source, c.Target)})
			}
			seen[key] = true
		}
	}

	return issues
}

// Merge appends other's nodes and connections to a copy of base. Every node
// of other gets a fresh id, starting at firstID or above base's highest id
// when that is larger; the returned map holds the renumbering. Connections
// already present in base are skipped.
func Merge(base, other *domain.Document, firstID int) (*domain.Document, map[int]int) {
	merged := cloneDocument(base)
	merged.FillDefaults()

	maxID := max(firstID-1, 0)
	for _, n := range merged.Nodes {
		maxID = max(maxID, n.ID)
	}

	others := append([]domain.Node(nil), other.Nodes...)
	sort.SliceStable(others, func(i, j int) bool { return others[i].ID < others[j].ID })

	renumber := make(map[int]int, len(others))
	for _, n := range others {
		if _, dup := renumber[n.ID]; dup {
			continue
		}
		maxID++
		renumber[n.ID] = maxID
		c := n.Clone()
		c.ID = maxID
		merged.Nodes = append(merged.Nodes, *c)
	}

	for _, layer := range domain.AllLayers {
		src := other.Topologies.Layer(layer)
		if src == nil {
			continue
		}
		dst := merged.Topologies.Layer(layer)
		existing := make(map[domain.PairKey]bool, len(dst.Connections))
		for _, c := range dst.Connections {
			existing[c.Key()] = true
		}
		for _, c := range src.Connections {
			s, okS := renumber[c.Source]
			t, okT := renumber[c.Target]
			if !okS || !okT {
				continue
			}
			nc := c.Clone()
			nc.Source, nc.Target = s, t
			if existing[nc.Key()] {
				continue
			}
			existing[nc.Key()] = true
			dst.Connections = append(dst.Connections, *nc)
		}
	}

	merged.Metadata.Modified = domain.NewTimestamp(time.Now().UTC())
	return merged, renumber
}

func cloneDocument(doc *domain.Document) *domain.Document {
	c := &domain.Document{
		Metadata: doc.Metadata,
		Settings: doc.Settings,
		Nodes:    make([]domain.Node, 0, len(doc.Nodes)),
	}
	for i := range doc.Nodes {
		c.Nodes = append(c.Nodes, *doc.Nodes[i].Clone())
	}
	for _, layer := range domain.AllLayers {
		lt := doc.Topologies.Layer(layer)
		if lt == nil {
			continue
		}
		conns := make([]domain.Connection, 0, len(lt.Connections))
		for i := range lt.Connections {
			conns = append(conns, *lt.Connections[i].Clone())
		}
		c.Topologies.SetLayer(layer, &domain.LayerTopology{Connections: conns})
	}
	return c
}

// ProjectInfo summarizes a project file without loading it into the store
type ProjectInfo struct {
	Path        string               `json:"path"`
	Name        string               `json:"name"`
	Version     string               `json:"version"`
	Created     time.Time            `json:"created"`
	Modified    time.Time            `json:"modified"`
	NodeCount   int                  `json:"node_count"`
	Connections map[domain.Layer]int `json:"connections"`
	Size        int64                `json:"size"`
	HasBackup   bool                 `json:"has_backup"`
}

// Info reads path and summarizes it
func Info(path string) (*ProjectInfo, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, &domain.IOError{Op: "stat", Path: path, Err: err}
	}
	_, backupErr := os.Stat(BackupPath(path))

	info := &ProjectInfo{
		Path:        path,
		Name:        doc.Metadata.Name,
		Version:     doc.Metadata.Version,
		Created:     doc.Metadata.Created.Time,
		Modified:    doc.Metadata.Modified.Time,
		NodeCount:   len(doc.Nodes),
		Connections: make(map[domain.Layer]int, len(domain.AllLayers)),
		Size:        stat.Size(),
		HasBackup:   backupErr == nil,
	}
	for _, layer := range domain.AllLayers {
		info.Connections[layer] = len(doc.Topologies.Layer(layer).Connections)
	}
	return info, nil
}
