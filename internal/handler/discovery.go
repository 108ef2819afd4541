package handler

import (
	"net/http"

	"netlayers/internal/adapter"
	"netlayers/internal/discovery"
	"netlayers/internal/domain"
	"netlayers/internal/service"
)

// StartDiscovery launches a background discovery session
func (a *API) StartDiscovery(w http.ResponseWriter, r *http.Request) {
	var req discovery.Request
	if err := decode(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	res, err := a.commander.Execute(r.Context(), service.CmdScanNetwork, service.CommandRequest{Discovery: &req})
	if err != nil {
		fail(w, "Failed to start discovery", err)
		return
	}
	writeJSON(w, res.Data, http.StatusAccepted)
}

// DiscoveryStatus reports the current or last session and the adapters
func (a *API) DiscoveryStatus(w http.ResponseWriter, r *http.Request) {
	status := discovery.Status{State: discovery.StateIdle}
	if a.discovery != nil {
		status = a.discovery.Status()
	}
	adapters := []adapter.AdapterInfo{}
	if a.adapters != nil {
		adapters = a.adapters.List(r.Context())
	}
	writeJSON(w, map[string]any{"session": status, "adapters": adapters}, http.StatusOK)
}

// CancelDiscovery stops the running session. Nodes already merged stay.
func (a *API) CancelDiscovery(w http.ResponseWriter, r *http.Request) {
	res, err := a.commander.Execute(r.Context(), service.CmdCancelScan, service.CommandRequest{})
	if err != nil {
		fail(w, "Failed to cancel discovery", err)
		return
	}
	writeJSON(w, map[string]any{"cancelled": res.Data}, http.StatusOK)
}

// MergeResults merges a batch of externally discovered hosts into the store
func (a *API) MergeResults(w http.ResponseWriter, r *http.Request) {
	if a.merger == nil {
		fail(w, "Discovery unavailable", &domain.NotFoundError{Kind: "discovery", Key: "merger"})
		return
	}
	var hosts []domain.DiscoveredHost
	if err := decode(w, r, &hosts); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	res := a.merger.Merge(r.Context(), hosts)
	if res.Created == nil {
		res.Created = []int{}
	}
	writeJSON(w, res, http.StatusOK)
}
