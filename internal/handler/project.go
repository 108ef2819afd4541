package handler

import (
	"log"
	"net/http"

	"netlayers/internal/codec"
	"netlayers/internal/repository"
	"netlayers/internal/service"
)

// ProjectRequest names a project file and, for new projects, a title
type ProjectRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// GetProject returns the open project's state, plus file details when it
// has been saved
func (a *API) GetProject(w http.ResponseWriter, r *http.Request) {
	state := a.project.State()
	resp := map[string]any{
		"state":       state,
		"settings":    a.project.Settings(),
		"nodes":       a.project.Store().NodeCount(),
		"connections": a.project.Document().ConnectionCount(),
	}
	if state.Path != "" {
		if info, err := a.project.Info(state.Path); err == nil {
			resp["file"] = info
		}
	}
	writeJSON(w, resp, http.StatusOK)
}

// RecentFiles returns recently opened project files, newest first
func (a *API) RecentFiles(w http.ResponseWriter, r *http.Request) {
	files, err := a.project.RecentFiles(r.Context())
	if err != nil {
		fail(w, "Failed to list recent files", err)
		return
	}
	if files == nil {
		files = []repository.RecentFile{}
	}
	writeJSON(w, files, http.StatusOK)
}

// ValidateProject reports structural problems in the current topology
func (a *API) ValidateProject(w http.ResponseWriter, r *http.Request) {
	issues := a.project.Validate()
	if issues == nil {
		issues = []codec.Issue{}
	}
	writeJSON(w, map[string]any{"valid": len(issues) == 0, "issues": issues}, http.StatusOK)
}

// ListSnapshots returns the saved copies recorded for the current file
func (a *API) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := a.project.Snapshots(r.Context())
	if err != nil {
		fail(w, "Failed to list snapshots", err)
		return
	}
	if snaps == nil {
		snaps = []repository.Snapshot{}
	}
	writeJSON(w, snaps, http.StatusOK)
}

// RestoreSnapshot loads a recorded snapshot into the editor
func (a *API) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := a.project.RestoreSnapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, "Failed to restore snapshot", err)
		return
	}
	snap.Document = nil
	writeJSON(w, snap, http.StatusOK)
}

// NewProject clears the editor and starts an untitled project
func (a *API) NewProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	writeJSON(w, a.project.New(req.Name), http.StatusOK)
}

// OpenProject replaces the editor contents with a project file
func (a *API) OpenProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	res, err := a.project.Open(r.Context(), req.Path)
	if err != nil {
		fail(w, "Failed to open project", err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

// SaveProject writes the project to its current file
func (a *API) SaveProject(w http.ResponseWriter, r *http.Request) {
	a.save(w, r, false)
}

// SaveProjectAs writes the project to a new file and makes it current
func (a *API) SaveProjectAs(w http.ResponseWriter, r *http.Request) {
	a.save(w, r, true)
}

func (a *API) save(w http.ResponseWriter, r *http.Request, as bool) {
	var req ProjectRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	name := service.CmdSaveProject
	if as {
		name = service.CmdSaveProjectAs
	}
	res, err := a.commander.Execute(r.Context(), name, service.CommandRequest{Path: req.Path})
	if err != nil {
		fail(w, "Failed to save project", err)
		return
	}
	writeJSON(w, res.Data, http.StatusOK)
}

// ImportProject merges another project file into the open one
func (a *API) ImportProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	res, err := a.project.Import(r.Context(), req.Path)
	if err != nil {
		fail(w, "Failed to import project", err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

// BackupProject copies the current file to its .backup sibling
func (a *API) BackupProject(w http.ResponseWriter, r *http.Request) {
	path, err := a.project.Backup(r.Context())
	if err != nil {
		fail(w, "Failed to back up project", err)
		return
	}
	writeJSON(w, map[string]string{"backup": path}, http.StatusOK)
}

// RestoreProject replaces the current file with its backup and reopens it
func (a *API) RestoreProject(w http.ResponseWriter, r *http.Request) {
	res, err := a.project.Restore(r.Context())
	if err != nil {
		fail(w, "Failed to restore project", err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

// ExportYAML streams the current topology as YAML
func (a *API) ExportYAML(w http.ResponseWriter, r *http.Request) {
	data, err := a.project.ExportYAMLBytes()
	if err != nil {
		fail(w, "Failed to export YAML", err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="topology.yaml"`)
	if _, err := w.Write(data); err != nil {
		log.Printf("Failed to write YAML export: %v", err)
	}
}

// ListCommands returns the names the command endpoint accepts
func (a *API) ListCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.commander.Commands(), http.StatusOK)
}

// ExecuteCommand runs an editor command by name
func (a *API) ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	var req service.CommandRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}
	name := service.Command(r.PathValue("name"))
	res, err := a.commander.Execute(r.Context(), name, req)
	if err != nil {
		fail(w, "Command failed", err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}
