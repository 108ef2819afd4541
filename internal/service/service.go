package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"netlayers/internal/codec"
	"netlayers/internal/domain"
	"netlayers/internal/repository"
	"netlayers/internal/topology"
)

// DefaultProjectName is used when a project is created without a name
const DefaultProjectName = "Untitled"

// ProjectState describes the open project
type ProjectState struct {
	Path     string    `json:"path,omitempty"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Dirty    bool      `json:"dirty"`
}

// OpenResult reports what opening a file loaded and repaired
type OpenResult struct {
	State     ProjectState        `json:"state"`
	Loaded    topology.LoadResult `json:"loaded"`
	Defaulted []domain.Layer      `json:"defaulted,omitempty"`
	Issues    []codec.Issue       `json:"issues,omitempty"`
}

// ImportResult reports what merging another project added
type ImportResult struct {
	Path        string      `json:"path"`
	NodesAdded  int         `json:"nodes_added"`
	Connections int         `json:"connections"`
	IDMap       map[int]int `json:"id_map"`
}

// ProjectService owns the editor session: the store contents, the file they
// came from and whether they changed since
type ProjectService struct {
	store *topology.Store
	repo  repository.Repository
	bus   *topology.EventBus

	mu       sync.Mutex
	state    ProjectState
	settings domain.Settings
	onDisk   fileStamp

	dirty    atomic.Bool
	stopDirt func()
}

// NewProjectService starts an untitled project on store. repo may be nil, in
// which case snapshots and recent files are not kept.
func NewProjectService(store *topology.Store, repo repository.Repository) *ProjectService {
	s := &ProjectService{
		store: store,
		repo:  repo,
		bus:   store.Events(),
	}
	now := time.Now().UTC().Truncate(time.Second)
	s.state = ProjectState{Name: DefaultProjectName, Created: now, Modified: now}
	s.settings = domain.Settings{AutoLayout: true}
	s.stopDirt = s.bus.Listen(func(e topology.Event) {
		if e.Type.Mutating() {
			s.dirty.Store(true)
		}
	})
	return s
}

// Close stops dirty tracking
func (s *ProjectService) Close() {
	if s.stopDirt != nil {
		s.stopDirt()
	}
}

// Store returns the topology the session edits
func (s *ProjectService) Store() *topology.Store {
	return s.store
}

// State returns the open project description
func (s *ProjectService) State() ProjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Dirty = s.dirty.Load()
	return st
}

// Settings returns the project preferences
func (s *ProjectService) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetAutoLayout toggles layout after discovery for this project
func (s *ProjectService) SetAutoLayout(enabled bool) {
	s.mu.Lock()
	s.settings.AutoLayout = enabled
	s.mu.Unlock()
	s.dirty.Store(true)
}

// New discards the current topology and starts an unsaved project
func (s *ProjectService) New(name string) ProjectState {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultProjectName
	}

	s.store.Reset()

	now := time.Now().UTC().Truncate(time.Second)
	s.mu.Lock()
	s.state = ProjectState{Name: name, Created: now, Modified: now}
	s.settings = domain.Settings{AutoLayout: true}
	st := s.state
	s.mu.Unlock()
	s.dirty.Store(false)

	s.bus.Publish(topology.Event{Type: topology.EventProjectOpened, Payload: st})
	log.Printf("Project: new %q", name)
	return st
}

// Open loads path leniently into the store and makes it the current file.
// Missing layer sections are defaulted and reported.
func (s *ProjectService) Open(ctx context.Context, path string) (*OpenResult, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}

	doc, report, err := codec.LoadWithReport(path)
	if err != nil {
		return nil, err
	}
	res, err := s.activate(ctx, path, doc)
	if err != nil {
		return nil, err
	}
	res.Defaulted = report.Defaulted
	if report.Repaired() {
		log.Printf("Project: %s was missing sections %v, defaulted", path, report.Defaulted)
	}
	return res, nil
}

// activate replaces the session with doc, read from path
func (s *ProjectService) activate(ctx context.Context, path string, doc *domain.Document) (*OpenResult, error) {
	issues := codec.Validate(doc)

	loaded, err := s.store.Load(doc)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	name := doc.Metadata.Name
	if name == "" {
		name = nameFromPath(path)
	}

	s.mu.Lock()
	s.state = ProjectState{
		Path:     path,
		Name:     name,
		Created:  doc.Metadata.Created.Time,
		Modified: doc.Metadata.Modified.Time,
	}
	s.settings = doc.Settings
	s.onDisk = stampOf(path)
	st := s.state
	s.mu.Unlock()
	s.dirty.Store(false)

	s.touchRecent(ctx, path, name)

	s.bus.Publish(topology.Event{
		Type:    topology.EventProjectOpened,
		Payload: map[string]any{"path": path, "name": name, "loaded": loaded},
	})
	log.Printf("Project: opened %s (nodes=%d connections=%d dropped=%d)",
		path, loaded.Nodes, loaded.Connections, loaded.Dropped)

	return &OpenResult{State: st, Loaded: loaded, Issues: issues}, nil
}

// Save writes the project to its current file and records a snapshot
func (s *ProjectService) Save(ctx context.Context) (ProjectState, error) {
	s.mu.Lock()
	path := s.state.Path
	s.mu.Unlock()

	if path == "" {
		return ProjectState{}, &domain.ValidationError{Field: "path", Reason: "project has never been saved, use save as"}
	}
	return s.saveTo(ctx, path)
}

// SaveAs writes the project to path and makes it the current file
func (s *ProjectService) SaveAs(ctx context.Context, path string) (ProjectState, error) {
	path, err := cleanPath(path)
	if err != nil {
		return ProjectState{}, err
	}
	return s.saveTo(ctx, path)
}

func (s *ProjectService) saveTo(ctx context.Context, path string) (ProjectState, error) {
	doc := s.Document()
	if err := codec.Save(doc, path); err != nil {
		return ProjectState{}, err
	}

	s.mu.Lock()
	s.state.Path = path
	s.state.Modified = doc.Metadata.Modified.Time
	if s.state.Name == DefaultProjectName {
		s.state.Name = nameFromPath(path)
	}
	s.onDisk = stampOf(path)
	st := s.state
	s.mu.Unlock()
	s.dirty.Store(false)

	if s.repo != nil {
		if _, err := s.repo.SaveSnapshot(ctx, path, doc); err != nil {
			log.Printf("Project: snapshot of %s failed: %v", path, err)
		}
	}
	s.touchRecent(ctx, path, st.Name)

	s.bus.Publish(topology.Event{Type: topology.EventProjectSaved, Payload: st})
	log.Printf("Project: saved %s (nodes=%d connections=%d)", path, len(doc.Nodes), doc.ConnectionCount())
	return st, nil
}

// Reload re-reads the current file after it changed on disk. Files that
// still look like the last one opened or saved are skipped, and unsaved
// edits are never dropped. The bool reports whether the store was replaced.
func (s *ProjectService) Reload(ctx context.Context) (bool, error) {
	st := s.State()
	if st.Path == "" {
		return false, &domain.ValidationError{Field: "path", Reason: "no project file is open"}
	}
	s.mu.Lock()
	known := s.onDisk
	s.mu.Unlock()
	if stampOf(st.Path) == known {
		return false, nil
	}
	if st.Dirty {
		return false, &domain.ConflictError{Kind: "unsaved changes", Key: st.Path}
	}

	doc, report, err := codec.LoadWithReport(st.Path)
	if err != nil {
		return false, err
	}
	if _, err := s.activate(ctx, st.Path, doc); err != nil {
		return false, err
	}
	if report.Repaired() {
		log.Printf("Project: reloaded %s with defaulted sections %v", st.Path, report.Defaulted)
	}
	return true, nil
}

// Import merges the project at path into the open one in a single store
// mutation. Imported nodes are issued fresh ids; connections follow them.
func (s *ProjectService) Import(ctx context.Context, path string) (*ImportResult, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	other, err := codec.Load(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := s.store.Merge(other)
	s.dirty.Store(true)

	res := &ImportResult{
		Path:        path,
		NodesAdded:  merged.Nodes,
		Connections: merged.Connections,
		IDMap:       merged.IDMap,
	}
	log.Printf("Project: imported %s (nodes=%d connections=%d)", path, res.NodesAdded, res.Connections)
	return res, nil
}

// Backup copies the current file to its .backup sibling
func (s *ProjectService) Backup(ctx context.Context) (string, error) {
	path, err := s.currentPath()
	if err != nil {
		return "", err
	}
	backup, err := codec.CreateBackup(path)
	if err != nil {
		return "", err
	}
	log.Printf("Project: backup written to %s", backup)
	return backup, nil
}

// Restore swaps the backup into place and opens it
func (s *ProjectService) Restore(ctx context.Context) (*OpenResult, error) {
	path, err := s.currentPath()
	if err != nil {
		return nil, err
	}
	if err := codec.RestoreBackup(path); err != nil {
		return nil, err
	}
	log.Printf("Project: restored %s from backup", path)
	return s.Open(ctx, path)
}

// RestoreSnapshot loads a recorded snapshot into the store. The file on disk
// is left alone until the next save.
func (s *ProjectService) RestoreSnapshot(ctx context.Context, id string) (*repository.Snapshot, error) {
	if s.repo == nil {
		return nil, &domain.NotFoundError{Kind: "snapshot", Key: id}
	}
	snap, err := s.repo.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Document == nil {
		return nil, &domain.ParseError{Path: "snapshot " + id, Err: fmt.Errorf("empty document")}
	}
	if _, err := s.store.Load(snap.Document); err != nil {
		return nil, fmt.Errorf("restoring snapshot %s: %w", id, err)
	}
	s.mu.Lock()
	s.settings = snap.Document.Settings
	s.mu.Unlock()
	s.dirty.Store(true)
	return snap, nil
}

// Snapshots lists the snapshots of the current file, newest first
func (s *ProjectService) Snapshots(ctx context.Context) ([]repository.Snapshot, error) {
	path, err := s.currentPath()
	if err != nil {
		return nil, err
	}
	if s.repo == nil {
		return []repository.Snapshot{}, nil
	}
	return s.repo.ListSnapshots(ctx, path)
}

// Validate reports integrity problems of the in-memory document
func (s *ProjectService) Validate() []codec.Issue {
	return codec.Validate(s.Document())
}

// Info summarizes path, or the current file when path is empty
func (s *ProjectService) Info(path string) (*codec.ProjectInfo, error) {
	if path == "" {
		var err error
		if path, err = s.currentPath(); err != nil {
			return nil, err
		}
	}
	return codec.Info(path)
}

// RecentFiles returns recently opened projects, most recent first
func (s *ProjectService) RecentFiles(ctx context.Context) ([]repository.RecentFile, error) {
	if s.repo == nil {
		return []repository.RecentFile{}, nil
	}
	return s.repo.RecentFiles(ctx)
}

// Summary renders the status bar line for a layer
func (s *ProjectService) Summary(layer domain.Layer) string {
	return fmt.Sprintf("Level: %s | Nodes: %d | Links: %d",
		layer.Title(), s.store.NodeCount(), s.store.ConnectionCount(layer))
}

// Document captures the session as a saveable document
func (s *ProjectService) Document() *domain.Document {
	doc := s.store.Export()

	s.mu.Lock()
	doc.Metadata = domain.Metadata{
		Name:     s.state.Name,
		Created:  domain.NewTimestamp(s.state.Created),
		Modified: domain.NewTimestamp(s.state.Modified),
		Version:  domain.DocumentVersion,
	}
	doc.Settings = s.settings
	s.mu.Unlock()
	return doc
}

// ExportYAML writes the document as YAML
func (s *ProjectService) ExportYAML(w io.Writer) error {
	return codec.NewYAMLCodec().Encode(s.Document(), w)
}

// ExportYAMLBytes returns the document as YAML
func (s *ProjectService) ExportYAMLBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.ExportYAML(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ProjectService) currentPath() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Path == "" {
		return "", &domain.ValidationError{Field: "path", Reason: "no project file is open"}
	}
	return s.state.Path, nil
}

func (s *ProjectService) touchRecent(ctx context.Context, path, name string) {
	if s.repo == nil {
		return
	}
	if err := s.repo.TouchRecent(ctx, path, name); err != nil {
		log.Printf("Project: could not record %s as recent: %v", path, err)
	}
}

// fileStamp identifies one version of a file on disk
type fileStamp struct {
	modTime int64
	size    int64
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{modTime: info.ModTime().UnixNano(), size: info.Size()}
}

func cleanPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", &domain.ValidationError{Field: "path", Reason: "required"}
	}
	if !codec.IsProjectFile(path) {
		return "", &domain.ValidationError{Field: "path", Reason: fmt.Sprintf("%q is not a .json, .yaml or .yml file", path)}
	}
	return filepath.Clean(path), nil
}

func nameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
