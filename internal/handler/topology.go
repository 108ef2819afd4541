package handler

import (
	"net/http"

	"netlayers/internal/domain"
	"netlayers/internal/layout"
	"netlayers/internal/validation"
)

// GetDocument returns the whole topology in its persisted form
func (a *API) GetDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.project.Document(), http.StatusOK)
}

// GetLayerGraph returns the induced graph of one layer
func (a *API) GetLayerGraph(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	graph, err := a.project.Store().LayerGraph(layer)
	if err != nil {
		fail(w, "Failed to get graph", err)
		return
	}
	writeJSON(w, graph, http.StatusOK)
}

// ListIsolated returns the names of nodes without connections in a layer
func (a *API) ListIsolated(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	names, err := a.project.Store().ListIsolatedNodeNames(layer)
	if err != nil {
		fail(w, "Failed to list isolated nodes", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, map[string]any{"layer": layer, "names": names}, http.StatusOK)
}

// GetSummary returns the status-bar line for a layer
func (a *API) GetSummary(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	store := a.project.Store()
	writeJSON(w, map[string]any{
		"layer":       layer,
		"summary":     a.project.Summary(layer),
		"nodes":       store.NodeCount(),
		"connections": store.ConnectionCount(layer),
	}, http.StatusOK)
}

// ListNodes returns every node in id order
func (a *API) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes := a.project.Store().Nodes()
	if nodes == nil {
		nodes = []*domain.Node{}
	}
	writeJSON(w, nodes, http.StatusOK)
}

// GetNode returns a single node
func (a *API) GetNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		fail(w, "Invalid node ID", err)
		return
	}
	node, err := a.project.Store().Node(id)
	if err != nil {
		fail(w, "Failed to get node", err)
		return
	}
	writeJSON(w, node, http.StatusOK)
}

// CreateNode creates a node from an optional spec. Omitted fields take the
// defaults for the new id.
func (a *API) CreateNode(w http.ResponseWriter, r *http.Request) {
	var spec domain.NodeSpec
	if err := decode(w, r, &spec); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	store := a.project.Store()
	id, err := store.CreateNode(spec)
	if err != nil {
		fail(w, "Failed to create node", err)
		return
	}
	node, err := store.Node(id)
	if err != nil {
		fail(w, "Failed to get node", err)
		return
	}
	writeJSON(w, node, http.StatusCreated)
}

// UpdateNode merges the supplied fields into a node
func (a *API) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		fail(w, "Invalid node ID", err)
		return
	}
	var patch domain.NodePatch
	if err := decode(w, r, &patch); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	store := a.project.Store()
	if err := store.UpdateNode(id, patch); err != nil {
		fail(w, "Failed to update node", err)
		return
	}
	node, err := store.Node(id)
	if err != nil {
		fail(w, "Failed to get node", err)
		return
	}
	writeJSON(w, node, http.StatusOK)
}

// DeleteNode removes a node and its connections in every layer
func (a *API) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		fail(w, "Invalid node ID", err)
		return
	}
	if err := a.project.Store().DeleteNode(id); err != nil {
		fail(w, "Failed to delete node", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListConnections returns the connections of one layer
func (a *API) ListConnections(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	overlay, err := a.project.Store().Overlay(layer)
	if err != nil {
		fail(w, "Failed to get layer", err)
		return
	}
	conns := overlay.Connections()
	if conns == nil {
		conns = []domain.Connection{}
	}
	writeJSON(w, conns, http.StatusOK)
}

// CreateConnection connects two nodes in a layer. The body's source and
// target are required; the layer attributes are optional.
func (a *API) CreateConnection(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	var conn domain.Connection
	if err := decode(w, r, &conn); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	overlay, err := a.project.Store().Overlay(layer)
	if err != nil {
		fail(w, "Failed to get layer", err)
		return
	}
	created, err := overlay.Connect(conn.Source, conn.Target, &conn)
	if err != nil {
		fail(w, "Failed to create connection", err)
		return
	}
	writeJSON(w, created, http.StatusCreated)
}

// UpdateConnection merges attributes into an existing connection
func (a *API) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	var attrs domain.Connection
	if err := decode(w, r, &attrs); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	overlay, err := a.project.Store().Overlay(layer)
	if err != nil {
		fail(w, "Failed to get layer", err)
		return
	}
	updated, err := overlay.Update(attrs)
	if err != nil {
		fail(w, "Failed to update connection", err)
		return
	}
	writeJSON(w, updated, http.StatusOK)
}

// DeleteConnection removes the connection between two nodes in a layer
func (a *API) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	src, err := pathInt(r, "a")
	if err != nil {
		fail(w, "Invalid node ID", err)
		return
	}
	dst, err := pathInt(r, "b")
	if err != nil {
		fail(w, "Invalid node ID", err)
		return
	}
	overlay, err := a.project.Store().Overlay(layer)
	if err != nil {
		fail(w, "Failed to get layer", err)
		return
	}
	key := domain.NewPairKey(src, dst)
	if !overlay.RemoveConnection(key) {
		fail(w, "Failed to delete connection", &domain.NotFoundError{Kind: "connection", Key: key.String()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyLayout runs a layout algorithm over one layer
func (a *API) ApplyLayout(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	var opts layout.Options
	if err := decode(w, r, &opts); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	res, err := a.layout.Apply(r.Context(), layer, opts)
	if err != nil {
		fail(w, "Failed to apply layout", err)
		return
	}
	if a.metrics != nil {
		a.metrics.ObserveLayout(layer, res.Algorithm, res.Duration)
	}
	writeJSON(w, res, http.StatusOK)
}

// PositionsRequest moves nodes, either canonically or for one layer only
type PositionsRequest struct {
	Positions []domain.NodePosition `json:"positions" validate:"required,dive"`
	Override  bool                  `json:"override"`
}

// SetPositions stores dragged node positions
func (a *API) SetPositions(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	var req PositionsRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	applied, err := a.project.Store().SetPositions(layer, req.Positions, req.Override)
	if err != nil {
		fail(w, "Failed to set positions", err)
		return
	}
	writeJSON(w, map[string]int{"applied": applied}, http.StatusOK)
}

// ClearPositions drops every per-layer override of a layer
func (a *API) ClearPositions(w http.ResponseWriter, r *http.Request) {
	layer, err := pathLayer(r)
	if err != nil {
		fail(w, "Invalid layer", err)
		return
	}
	cleared := a.project.Store().ClearLayerPositions(layer)
	writeJSON(w, map[string]int{"cleared": cleared}, http.StatusOK)
}
