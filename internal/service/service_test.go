package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"netlayers/internal/codec"
	"netlayers/internal/discovery"
	"netlayers/internal/domain"
	"netlayers/internal/layout"
	"netlayers/internal/repository/sqlite"
	"netlayers/internal/topology"
)

func newTestProject(t *testing.T) *ProjectService {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := topology.NewStore(topology.NewEventBus(), topology.WithSeed(7))
	svc := NewProjectService(store, repo)
	t.Cleanup(svc.Close)
	return svc
}

func mustCreate(t *testing.T, store *topology.Store, ip string) int {
	t.Helper()
	id, err := store.CreateNode(domain.NodeSpec{L3: &domain.L3Attrs{IP: ip, Mask: domain.DefaultMask}})
	if err != nil {
		t.Fatalf("CreateNode(%s): %v", ip, err)
	}
	return id
}

func mustConnect(t *testing.T, store *topology.Store, layer domain.Layer, a, b int) {
	t.Helper()
	o, err := store.Overlay(layer)
	if err != nil {
		t.Fatalf("Overlay(%s): %v", layer, err)
	}
	if !o.AddConnection(a, b, nil) {
		t.Fatalf("AddConnection(%d, %d) on %s refused", a, b, layer)
	}
}

func TestProjectDirtyTracking(t *testing.T) {
	svc := newTestProject(t)
	path := filepath.Join(t.TempDir(), "lab.json")

	st := svc.New("lab")
	if st.Dirty || st.Name != "lab" || st.Path != "" {
		t.Fatalf("unexpected state after New: %+v", st)
	}

	mustCreate(t, svc.Store(), "10.0.0.1")
	if !svc.State().Dirty {
		t.Error("expected dirty after creating a node")
	}

	if _, err := svc.SaveAs(context.Background(), path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if svc.State().Dirty {
		t.Error("expected clean after save")
	}

	svc.SetAutoLayout(false)
	if !svc.State().Dirty {
		t.Error("expected dirty after changing settings")
	}
}

func TestSaveRequiresPath(t *testing.T) {
	svc := newTestProject(t)

	_, err := svc.Save(context.Background())
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.SaveAs(context.Background(), filepath.Join(t.TempDir(), "lab.txt"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for .txt, got %v", err)
	}
}

func TestSaveOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestProject(t)
	path := filepath.Join(t.TempDir(), "site.yaml")

	svc.New("site")
	a := mustCreate(t, svc.Store(), "10.0.0.1")
	b := mustCreate(t, svc.Store(), "10.0.0.2")
	mustConnect(t, svc.Store(), domain.LayerDataLink, a, b)

	if _, err := svc.SaveAs(ctx, path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	svc.New("scratch")
	if svc.Store().NodeCount() != 0 {
		t.Fatalf("expected empty store after New")
	}

	res, err := svc.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if res.Loaded.Nodes != 2 || res.Loaded.Connections != 1 {
		t.Errorf("expected 2 nodes and 1 connection, got %+v", res.Loaded)
	}
	if res.State.Name != "site" || res.State.Path != path {
		t.Errorf("unexpected state %+v", res.State)
	}
	if len(res.Defaulted) != 0 || len(res.Issues) != 0 {
		t.Errorf("expected a clean load, got defaulted=%v issues=%v", res.Defaulted, res.Issues)
	}

	recent, err := svc.RecentFiles(ctx)
	if err != nil {
		t.Fatalf("RecentFiles: %v", err)
	}
	if len(recent) != 1 || recent[0].Path != path {
		t.Errorf("expected %s as the only recent file, got %+v", path, recent)
	}

	snaps, err := svc.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].NodeCount != 2 {
		t.Errorf("expected one snapshot with 2 nodes, got %+v", snaps)
	}
}

func TestOpenDefaultsMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	body := `{"metadata":{"name":"old","version":"1.0"},"nodes":[{"id":1,"name":"Device-1"}],"topologies":{"l1":{"connections":[]}}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := newTestProject(t)
	res, err := svc.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(res.Defaulted) != 2 {
		t.Errorf("expected l2 and l3 defaulted, got %v", res.Defaulted)
	}
	if svc.Store().NodeCount() != 1 {
		t.Errorf("expected 1 node, got %d", svc.Store().NodeCount())
	}
}

func TestSummary(t *testing.T) {
	svc := newTestProject(t)
	a := mustCreate(t, svc.Store(), "10.0.0.1")
	b := mustCreate(t, svc.Store(), "10.0.0.2")
	mustConnect(t, svc.Store(), domain.LayerDataLink, a, b)

	tests := []struct {
		layer domain.Layer
		want  string
	}{
		{domain.LayerPhysical, "Level: L1 | Nodes: 2 | Links: 0"},
		{domain.LayerDataLink, "Level: L2 | Nodes: 2 | Links: 1"},
		{domain.LayerNetwork, "Level: L3 | Nodes: 2 | Links: 0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.layer), func(t *testing.T) {
			if got := svc.Summary(tt.layer); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestReload(t *testing.T) {
	ctx := context.Background()
	svc := newTestProject(t)
	path := filepath.Join(t.TempDir(), "lab.json")

	mustCreate(t, svc.Store(), "10.0.0.1")
	if _, err := svc.SaveAs(ctx, path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	t.Run("own save is skipped", func(t *testing.T) {
		reloaded, err := svc.Reload(ctx)
		if err != nil || reloaded {
			t.Fatalf("expected no reload, got %v, %v", reloaded, err)
		}
	})

	external := svc.Document()
	extra := domain.NewNode(2)
	extra.L3.IP = "10.0.0.2"
	external.Nodes = append(external.Nodes, *extra)
	if err := codec.Save(external, path); err != nil {
		t.Fatalf("external save: %v", err)
	}

	t.Run("unsaved edits are kept", func(t *testing.T) {
		mustCreate(t, svc.Store(), "10.0.0.9")
		_, err := svc.Reload(ctx)
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("external change is loaded", func(t *testing.T) {
		svc.dirty.Store(false)
		reloaded, err := svc.Reload(ctx)
		if err != nil || !reloaded {
			t.Fatalf("expected reload, got %v, %v", reloaded, err)
		}
		if svc.Store().NodeCount() != 2 {
			t.Errorf("expected 2 nodes, got %d", svc.Store().NodeCount())
		}
	})
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	other := domain.NewDocument("branch")
	n1, n2 := domain.NewNode(1), domain.NewNode(2)
	n1.L3.IP, n2.L3.IP = "172.16.0.1", "172.16.0.2"
	other.Nodes = []domain.Node{*n1, *n2}
	other.Topologies.L3.Connections = []domain.Connection{*domain.NewConnection(domain.LayerNetwork, 1, 2)}
	otherPath := filepath.Join(dir, "branch.json")
	if err := codec.Save(other, otherPath); err != nil {
		t.Fatalf("save other: %v", err)
	}

	svc := newTestProject(t)
	mustCreate(t, svc.Store(), "10.0.0.1")

	res, err := svc.Import(ctx, otherPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.NodesAdded != 2 || res.Connections != 1 {
		t.Errorf("expected 2 nodes and 1 connection added, got %+v", res)
	}
	if res.IDMap[1] != 2 || res.IDMap[2] != 3 {
		t.Errorf("expected ids renumbered to 2 and 3, got %v", res.IDMap)
	}
	if !svc.State().Dirty {
		t.Error("expected dirty after import")
	}
	if got := svc.Store().ConnectionCount(domain.LayerNetwork); got != 1 {
		t.Errorf("expected 1 L3 connection, got %d", got)
	}
}

func TestImportKeepsDeletedIDsRetired(t *testing.T) {
	ctx := context.Background()
	emptyPath := filepath.Join(t.TempDir(), "empty.json")
	if err := codec.Save(domain.NewDocument("empty"), emptyPath); err != nil {
		t.Fatalf("save empty: %v", err)
	}

	svc := newTestProject(t)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		mustCreate(t, svc.Store(), ip)
	}
	if err := svc.Store().DeleteNode(3); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	if _, err := svc.Import(ctx, emptyPath); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if id := mustCreate(t, svc.Store(), "10.0.0.4"); id == 3 {
		t.Errorf("id 3 issued again after import")
	} else if id != 4 {
		t.Errorf("expected id 4, got %d", id)
	}
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	svc := newTestProject(t)
	path := filepath.Join(t.TempDir(), "lab.json")

	mustCreate(t, svc.Store(), "10.0.0.1")
	if _, err := svc.SaveAs(ctx, path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if _, err := svc.Backup(ctx); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	mustCreate(t, svc.Store(), "10.0.0.2")
	if _, err := svc.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res, err := svc.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Loaded.Nodes != 1 {
		t.Errorf("expected the one-node backup restored, got %d nodes", res.Loaded.Nodes)
	}
}

type staticProducers struct {
	producer discovery.Producer
}

func (s staticProducers) Producer(ctx context.Context, name string) (discovery.Producer, error) {
	if name != "" && name != s.producer.Name() {
		return nil, &domain.NotFoundError{Kind: "adapter", Key: name}
	}
	return s.producer, nil
}

type listProducer struct {
	hosts []domain.DiscoveredHost
}

func (p listProducer) Name() string { return "list" }

func (p listProducer) Discover(ctx context.Context, req discovery.Request, out discovery.Reporter) error {
	for i, h := range p.hosts {
		out.Found(h)
		out.Progress(i+1, len(p.hosts))
	}
	return nil
}

func newTestCommander(t *testing.T, hosts ...domain.DiscoveredHost) (*Commander, *ProjectService, *discovery.Manager) {
	t.Helper()
	svc := newTestProject(t)
	store := svc.Store()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	merger := discovery.NewMerger(store, 0, 1)
	go merger.Run(ctx)
	mgr := discovery.NewManager(merger, store.Events())

	cmd := NewCommander(svc, layout.NewEngine(store, 1), mgr, staticProducers{listProducer{hosts}})
	return cmd, svc, mgr
}

func TestCommanderTable(t *testing.T) {
	cmd, _, _ := newTestCommander(t)

	if got := len(cmd.Commands()); got != 12 {
		t.Errorf("expected 12 commands, got %d", got)
	}

	_, err := cmd.Execute(context.Background(), Command("format_disk"), CommandRequest{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown command, got %v", err)
	}

	res, err := cmd.Execute(context.Background(), CmdShowAbout, CommandRequest{})
	if err != nil {
		t.Fatalf("show_about: %v", err)
	}
	about, ok := res.Data.(About)
	if !ok || about.Document != domain.DocumentVersion || len(about.Algorithms) == 0 {
		t.Errorf("unexpected about data %+v", res.Data)
	}
	if res.Command != CmdShowAbout {
		t.Errorf("expected command echoed, got %s", res.Command)
	}
}

func TestCommanderEditing(t *testing.T) {
	ctx := context.Background()
	cmd, svc, _ := newTestCommander(t)

	ip1, ip2 := "10.1.0.1", "10.1.0.2"
	var ids []int
	for _, ip := range []string{ip1, ip2} {
		res, err := cmd.Execute(ctx, CmdAddNode, CommandRequest{Node: &domain.NodeSpec{L3: &domain.L3Attrs{IP: ip, Mask: domain.DefaultMask}}})
		if err != nil {
			t.Fatalf("add_node: %v", err)
		}
		ids = append(ids, res.Data.(*domain.Node).ID)
	}

	_, err := cmd.Execute(ctx, CmdAddConnection, CommandRequest{Layer: domain.LayerPhysical, Source: ids[0], Target: ids[1]})
	if err != nil {
		t.Fatalf("add_connection: %v", err)
	}
	_, err = cmd.Execute(ctx, CmdAddConnection, CommandRequest{Layer: domain.LayerPhysical, Source: ids[1], Target: ids[0]})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict for repeated pair, got %v", err)
	}

	res, err := cmd.Execute(ctx, CmdAutoLayout, CommandRequest{Layer: domain.LayerPhysical})
	if err != nil {
		t.Fatalf("auto_layout: %v", err)
	}
	if lr := res.Data.(*layout.Result); lr.Applied != 2 {
		t.Errorf("expected 2 positions applied, got %d", lr.Applied)
	}

	_, err = cmd.Execute(ctx, CmdDeleteSelected, CommandRequest{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for empty selection, got %v", err)
	}

	res, err = cmd.Execute(ctx, CmdDeleteSelected, CommandRequest{
		Layer:               domain.LayerPhysical,
		SelectedConnections: []domain.PairKey{{A: ids[1], B: ids[0]}},
		SelectedNodes:       []int{ids[0], 99},
	})
	if err != nil {
		t.Fatalf("delete_selected: %v", err)
	}
	counts := res.Data.(map[string]int)
	if counts["nodes"] != 1 || counts["connections"] != 1 || counts["missing"] != 1 {
		t.Errorf("unexpected delete counts %v", counts)
	}
	if got := svc.Summary(domain.LayerPhysical); got != "Level: L1 | Nodes: 1 | Links: 0" {
		t.Errorf("unexpected summary %q", got)
	}

	res, err = cmd.Execute(ctx, CmdExportYAML, CommandRequest{})
	if err != nil {
		t.Fatalf("export_yaml: %v", err)
	}
	if !strings.Contains(res.Data.(string), ip2) {
		t.Errorf("expected exported YAML to mention %s", ip2)
	}
	_, err = cmd.Execute(ctx, CmdExportYAML, CommandRequest{Path: filepath.Join(t.TempDir(), "out.json")})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for json export path, got %v", err)
	}
}

func TestCommanderProjectFlow(t *testing.T) {
	ctx := context.Background()
	cmd, svc, _ := newTestCommander(t)
	path := filepath.Join(t.TempDir(), "flow.json")

	if _, err := cmd.Execute(ctx, CmdNewProject, CommandRequest{Name: "flow"}); err != nil {
		t.Fatalf("new_project: %v", err)
	}
	if _, err := cmd.Execute(ctx, CmdAddNode, CommandRequest{}); err != nil {
		t.Fatalf("add_node: %v", err)
	}
	if _, err := cmd.Execute(ctx, CmdSaveProject, CommandRequest{Path: path}); err != nil {
		t.Fatalf("save_project with path: %v", err)
	}
	if svc.State().Path != path {
		t.Errorf("expected current path %s, got %s", path, svc.State().Path)
	}
	if _, err := cmd.Execute(ctx, CmdNewProject, CommandRequest{}); err != nil {
		t.Fatalf("new_project: %v", err)
	}
	res, err := cmd.Execute(ctx, CmdOpenProject, CommandRequest{Path: path})
	if err != nil {
		t.Fatalf("open_project: %v", err)
	}
	if res.Data.(*OpenResult).Loaded.Nodes != 1 {
		t.Errorf("expected 1 node after open")
	}
}

func TestCommanderScan(t *testing.T) {
	hosts := []domain.DiscoveredHost{
		{IP: "10.0.0.5", Ports: []int{22}},
		{IP: "10.0.0.5"},
		{IP: "10.0.0.6", Name: "printer"},
	}
	cmd, svc, mgr := newTestCommander(t, hosts...)
	ctx := context.Background()

	_, err := cmd.Execute(ctx, CmdScanNetwork, CommandRequest{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error without a request, got %v", err)
	}

	res, err := cmd.Execute(ctx, CmdScanNetwork, CommandRequest{Discovery: &discovery.Request{Target: "10.0.0.0/24"}})
	if err != nil {
		t.Fatalf("scan_network: %v", err)
	}
	if res.Data.(map[string]string)["producer"] != "list" {
		t.Errorf("unexpected scan data %v", res.Data)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mgr.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	st := mgr.Status()
	if st.State != discovery.StateCompleted || st.Created != 2 || st.Skipped != 1 {
		t.Errorf("unexpected session status %+v", st)
	}
	if svc.Store().NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", svc.Store().NodeCount())
	}

	res, err = cmd.Execute(ctx, CmdCancelScan, CommandRequest{})
	if err != nil {
		t.Fatalf("cancel_scan: %v", err)
	}
	if res.Data.(bool) {
		t.Error("expected nothing to cancel")
	}
}

func TestCommanderScanDefaultTarget(t *testing.T) {
	cmd, _, mgr := newTestCommander(t, domain.DiscoveredHost{IP: "10.1.0.9"})

	_, err := cmd.Execute(context.Background(), CmdScanNetwork, CommandRequest{Discovery: &discovery.Request{}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error without any target, got %v", err)
	}

	cmd.WithDefaultTarget("10.1.0.0/24")
	if _, err := cmd.Execute(context.Background(), CmdScanNetwork, CommandRequest{Discovery: &discovery.Request{}}); err != nil {
		t.Fatalf("scan with default target: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := mgr.Status().Target; got != "10.1.0.0/24" {
		t.Errorf("expected default target, got %q", got)
	}
}
