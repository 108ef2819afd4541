package service

import (
	"context"
	"fmt"
	"log"
	"slices"

	"netlayers/internal/codec"
	"netlayers/internal/discovery"
	"netlayers/internal/domain"
	"netlayers/internal/layout"
	"netlayers/internal/validation"
)

// Version is reported by show_about
var Version = "dev"

// Command names an editor action
type Command string

const (
	CmdNewProject     Command = "new_project"
	CmdOpenProject    Command = "open_project"
	CmdSaveProject    Command = "save_project"
	CmdSaveProjectAs  Command = "save_project_as"
	CmdExportYAML     Command = "export_yaml"
	CmdAddNode        Command = "add_node"
	CmdAddConnection  Command = "add_connection"
	CmdDeleteSelected Command = "delete_selected"
	CmdAutoLayout     Command = "auto_layout"
	CmdScanNetwork    Command = "scan_network"
	CmdCancelScan     Command = "cancel_scan"
	CmdShowAbout      Command = "show_about"
)

// CommandRequest carries the arguments any command may need. Each command
// reads only its own fields.
type CommandRequest struct {
	Layer domain.Layer `json:"layer,omitempty"`
	Path  string       `json:"path,omitempty"`
	Name  string       `json:"name,omitempty"`

	Node       *domain.NodeSpec   `json:"node,omitempty"`
	Source     int                `json:"source,omitempty"`
	Target     int                `json:"target,omitempty"`
	Connection *domain.Connection `json:"connection,omitempty"`

	SelectedNodes       []int            `json:"selected_nodes,omitempty"`
	SelectedConnections []domain.PairKey `json:"selected_connections,omitempty"`

	Layout    layout.Options     `json:"layout"`
	Discovery *discovery.Request `json:"discovery,omitempty"`
}

// CommandResult is what a command hands back to the caller
type CommandResult struct {
	Command Command `json:"command"`
	Message string  `json:"message"`
	Data    any     `json:"data,omitempty"`
}

// About describes the running editor
type About struct {
	Name       string         `json:"name"`
	Version    string         `json:"version"`
	Layers     []domain.Layer `json:"layers"`
	Algorithms []string       `json:"algorithms"`
	Document   string         `json:"document_version"`
}

// ProducerSource resolves a discovery producer by name; "" picks the best
// available one
type ProducerSource interface {
	Producer(ctx context.Context, name string) (discovery.Producer, error)
}

type commandFunc func(ctx context.Context, req CommandRequest) (*CommandResult, error)

// Commander dispatches editor commands through a lookup table
type Commander struct {
	project   *ProjectService
	layout    *layout.Engine
	discovery *discovery.Manager
	producers ProducerSource

	defaultTarget string

	table map[Command]commandFunc
}

// NewCommander wires the command table. discovery and producers may be nil
// when scanning is not configured; the scan commands then fail.
func NewCommander(project *ProjectService, engine *layout.Engine, mgr *discovery.Manager, producers ProducerSource) *Commander {
	c := &Commander{
		project:   project,
		layout:    engine,
		discovery: mgr,
		producers: producers,
	}
	c.table = map[Command]commandFunc{
		CmdNewProject:     c.newProject,
		CmdOpenProject:    c.openProject,
		CmdSaveProject:    c.saveProject,
		CmdSaveProjectAs:  c.saveProjectAs,
		CmdExportYAML:     c.exportYAML,
		CmdAddNode:        c.addNode,
		CmdAddConnection:  c.addConnection,
		CmdDeleteSelected: c.deleteSelected,
		CmdAutoLayout:     c.autoLayout,
		CmdScanNetwork:    c.scanNetwork,
		CmdCancelScan:     c.cancelScan,
		CmdShowAbout:      c.showAbout,
	}
	return c
}

// WithDefaultTarget sets the range scanned when a scan request names none
func (c *Commander) WithDefaultTarget(target string) *Commander {
	c.defaultTarget = target
	return c
}

// Commands lists the known command names, sorted
func (c *Commander) Commands() []Command {
	names := make([]Command, 0, len(c.table))
	for name := range c.table {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Execute runs one command. Unknown names fail with a NotFoundError.
func (c *Commander) Execute(ctx context.Context, name Command, req CommandRequest) (*CommandResult, error) {
	fn, ok := c.table[name]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "command", Key: string(name)}
	}
	res, err := fn(ctx, req)
	if err != nil {
		log.Printf("Command %s failed: %v", name, err)
		return nil, err
	}
	res.Command = name
	return res, nil
}

func (c *Commander) layer(req CommandRequest) (domain.Layer, error) {
	if req.Layer == "" {
		return domain.LayerPhysical, nil
	}
	return domain.ParseLayer(string(req.Layer))
}

func (c *Commander) newProject(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	st := c.project.New(req.Name)
	return &CommandResult{Message: fmt.Sprintf("New project %q", st.Name), Data: st}, nil
}

func (c *Commander) openProject(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	res, err := c.project.Open(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return &CommandResult{Message: fmt.Sprintf("Opened %s", res.State.Path), Data: res}, nil
}

func (c *Commander) saveProject(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	if c.project.State().Path == "" && req.Path != "" {
		return c.saveProjectAs(ctx, req)
	}
	st, err := c.project.Save(ctx)
	if err != nil {
		return nil, err
	}
	return &CommandResult{Message: fmt.Sprintf("Saved %s", st.Path), Data: st}, nil
}

func (c *Commander) saveProjectAs(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	st, err := c.project.SaveAs(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return &CommandResult{Message: fmt.Sprintf("Saved %s", st.Path), Data: st}, nil
}

// exportYAML writes a YAML copy to req.Path, or returns the text when no
// path is given. The current file is not changed.
func (c *Commander) exportYAML(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	if req.Path == "" {
		data, err := c.project.ExportYAMLBytes()
		if err != nil {
			return nil, err
		}
		return &CommandResult{Message: "Exported YAML", Data: string(data)}, nil
	}
	if _, ok := codec.ForPath(req.Path).(*codec.YAMLCodec); !ok {
		return nil, &domain.ValidationError{Field: "path", Reason: "export path must end in .yaml or .yml"}
	}
	if err := codec.Save(c.project.Document(), req.Path); err != nil {
		return nil, err
	}
	return &CommandResult{Message: fmt.Sprintf("Exported %s", req.Path), Data: req.Path}, nil
}

func (c *Commander) addNode(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	var spec domain.NodeSpec
	if req.Node != nil {
		spec = *req.Node
	}
	id, err := c.project.Store().CreateNode(spec)
	if err != nil {
		return nil, err
	}
	node, err := c.project.Store().Node(id)
	if err != nil {
		return nil, err
	}
	return &CommandResult{Message: fmt.Sprintf("Added %s", node.Name), Data: node}, nil
}

func (c *Commander) addConnection(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	layer, err := c.layer(req)
	if err != nil {
		return nil, err
	}
	overlay, err := c.project.Store().Overlay(layer)
	if err != nil {
		return nil, err
	}
	conn, err := overlay.Connect(req.Source, req.Target, req.Connection)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Message: fmt.Sprintf("Connected %d and %d on %s", req.Source, req.Target, layer.Title()),
		Data:    conn,
	}, nil
}

// deleteSelected removes the selected connections of the layer, then the
// selected nodes with their connections in every layer. Entries that are
// already gone are counted as missing.
func (c *Commander) deleteSelected(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	if len(req.SelectedNodes) == 0 && len(req.SelectedConnections) == 0 {
		return nil, &domain.ValidationError{Field: "selection", Reason: "nothing selected"}
	}
	layer, err := c.layer(req)
	if err != nil {
		return nil, err
	}
	overlay, err := c.project.Store().Overlay(layer)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{"nodes": 0, "connections": 0, "missing": 0}
	for _, key := range req.SelectedConnections {
		if overlay.RemoveConnection(domain.NewPairKey(key.A, key.B)) {
			counts["connections"]++
		} else {
			counts["missing"]++
		}
	}
	for _, id := range req.SelectedNodes {
		if err := c.project.Store().DeleteNode(id); err != nil {
			counts["missing"]++
			continue
		}
		counts["nodes"]++
	}
	return &CommandResult{
		Message: fmt.Sprintf("Deleted %d nodes and %d connections", counts["nodes"], counts["connections"]),
		Data:    counts,
	}, nil
}

func (c *Commander) autoLayout(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	layer, err := c.layer(req)
	if err != nil {
		return nil, err
	}
	res, err := c.layout.Apply(ctx, layer, req.Layout)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Message: fmt.Sprintf("Laid out %d nodes on %s", res.Applied, layer.Title()),
		Data:    res,
	}, nil
}

// scanNetwork starts a background discovery session. The session outlives
// ctx; cancel_scan stops it.
func (c *Commander) scanNetwork(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	if c.discovery == nil || c.producers == nil {
		return nil, &domain.NotFoundError{Kind: "discovery", Key: "not configured"}
	}
	if req.Discovery == nil {
		return nil, &domain.ValidationError{Field: "discovery", Reason: "required"}
	}
	if req.Discovery.Target == "" {
		req.Discovery.Target = c.defaultTarget
	}
	if err := validation.Struct(req.Discovery); err != nil {
		return nil, err
	}
	producer, err := c.producers.Producer(ctx, req.Discovery.Producer)
	if err != nil {
		return nil, err
	}
	id, err := c.discovery.Start(context.WithoutCancel(ctx), *req.Discovery, producer)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Message: fmt.Sprintf("Scanning %s with %s", req.Discovery.Target, producer.Name()),
		Data:    map[string]string{"id": id, "producer": producer.Name()},
	}, nil
}

func (c *Commander) cancelScan(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	if c.discovery == nil || !c.discovery.Cancel() {
		return &CommandResult{Message: "No scan running", Data: false}, nil
	}
	return &CommandResult{Message: "Scan cancelled", Data: true}, nil
}

func (c *Commander) showAbout(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	about := About{
		Name:       "netlayers",
		Version:    Version,
		Layers:     domain.AllLayers,
		Algorithms: c.layout.Algorithms(),
		Document:   domain.DocumentVersion,
	}
	return &CommandResult{Message: fmt.Sprintf("netlayers %s", Version), Data: about}, nil
}
