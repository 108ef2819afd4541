package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"netlayers/internal/adapter"
	"netlayers/internal/config"
	"netlayers/internal/discovery"
	"netlayers/internal/handler"
	"netlayers/internal/hub"
	"netlayers/internal/icon"
	"netlayers/internal/layout"
	"netlayers/internal/metrics"
	"netlayers/internal/repository/sqlite"
	"netlayers/internal/service"
	"netlayers/internal/topology"
	"netlayers/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "Config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	project := flag.String("project", "", "Project file to open at startup (overrides config)")
	writeConfig := flag.Bool("write-config", false, "Write the effective config to -config or the user config dir, then exit")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting netlayers server...")

	cfg, cfgPath, err := loadConfig(*configPath, *writeConfig)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *project != "" {
		cfg.Project.Path = *project
	}
	if *writeConfig {
		target := *configPath
		if target == "" {
			target = config.DefaultConfigPath()
		}
		if err := cfg.Save(target); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		log.Printf("Config written: %s", target)
		return
	}
	if cfgPath != "" {
		log.Printf("Config loaded: %s", cfgPath)
	} else {
		log.Printf("No config file found, using defaults (searched %s)", strings.Join(config.SearchPaths(), ", "))
	}
	for _, line := range strings.Split(strings.TrimSpace(cfg.Summary()), "\n") {
		log.Print(line)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	bus := topology.NewEventBus()
	store := topology.NewStore(bus, topology.WithSeed(cfg.Layout.Seed))
	projectSvc := service.NewProjectService(store, repo)
	defer projectSvc.Close()

	engine := layout.NewEngine(store, cfg.Layout.Seed)

	merger := discovery.NewMerger(store, cfg.Discovery.QueueSize, cfg.Layout.Seed)
	go merger.Run(ctx)
	manager := discovery.NewManager(merger, bus)

	registry := buildRegistry(cfg)
	defaultTarget := cfg.Discovery.DefaultTarget
	if defaultTarget == "" {
		if targets := adapter.LocalTargets(); len(targets) > 0 {
			defaultTarget = targets[0]
			log.Printf("Default scan target: %s (local network)", defaultTarget)
		}
	}
	commander := service.NewCommander(projectSvc, engine, manager, registry).
		WithDefaultTarget(defaultTarget)

	var reg *metrics.Registry
	if cfg.Enabled("metrics") {
		reg = metrics.NewRegistry()
		reg.RegisterStore(store)
		defer reg.Attach(bus)()
	}

	sseHub := hub.New(allowOrigin(cfg.Server.AllowedOrigins))
	go sseHub.Run(ctx)
	go sseHub.Forward(ctx, bus)

	icons := icon.NewCache(nil)
	if cfg.Project.IconDir != "" {
		icons = icon.NewCache(os.DirFS(cfg.Project.IconDir))
	}

	if cfg.Project.Path != "" {
		if _, err := projectSvc.Open(ctx, cfg.Project.Path); err != nil {
			log.Printf("Warning: failed to open %s: %v", cfg.Project.Path, err)
		}
	}

	if cfg.Enabled("watcher") {
		if err := startWatcher(ctx, cfg, projectSvc, bus, icons); err != nil {
			log.Printf("Warning: file watching disabled: %v", err)
		}
	}

	api := handler.NewAPI(handler.Deps{
		Project:   projectSvc,
		Commander: commander,
		Layout:    engine,
		Discovery: manager,
		Merger:    merger,
		Adapters:  registry,
		Icons:     icons,
		Metrics:   reg,
		Events:    sseHub,
	})

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     api.Handler(cfg.Server.AllowedOrigins),
		ReadTimeout: 10 * time.Second,
		// WriteTimeout stays zero so SSE streams are not cut off
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	if manager.Cancel() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := manager.Wait(waitCtx); err != nil {
			log.Printf("Discovery shutdown error: %v", err)
		}
		cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// loadConfig reads path, or searches the standard locations when it is
// empty. A missing path is allowed when the file is about to be written.
func loadConfig(path string, allowMissing bool) (*config.Config, string, error) {
	if path != "" {
		if _, err := os.Stat(path); allowMissing && errors.Is(err, os.ErrNotExist) {
			return config.DefaultConfig(), "", nil
		}
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// allowOrigin picks the single origin the SSE endpoint advertises
func allowOrigin(origins []string) string {
	if len(origins) == 1 {
		return origins[0]
	}
	return "*"
}

// buildRegistry registers the discovery adapters and enrichers the config
// enables, with timing taken from the posture
func buildRegistry(cfg *config.Config) *adapter.Registry {
	behavior := cfg.EffectiveBehavior()
	registry := adapter.NewRegistry()
	prio := cfg.Discovery.Priorities

	if cfg.Enabled("scanner") {
		scanner := adapter.NewScannerAdapter(adapter.ScannerConfig{
			DiscoveryPorts: cfg.Discovery.SweepPorts,
			Timeout:        behavior.ProbeTimeout,
			MaxConcurrent:  behavior.MaxConcurrentProbes,
		})
		if err := registry.Register(scanner, adapter.AdapterConfig{Enabled: true, Priority: prio["scanner"]}); err != nil {
			log.Printf("Failed to register scanner: %v", err)
		}
	}

	if cfg.Enabled("nmap") {
		opts := []adapter.NmapOption{
			adapter.WithTimeout(behavior.ScanTimeout),
			adapter.WithServiceDetection(cfg.Discovery.ServiceScan),
			adapter.WithSkipHostDiscovery(cfg.Discovery.SkipPing),
		}
		if cfg.Discovery.NmapPorts != "" {
			opts = append(opts, adapter.WithPortRange(cfg.Discovery.NmapPorts))
		}
		if err := registry.Register(adapter.NewNmapAdapter(opts...), adapter.AdapterConfig{Enabled: true, Priority: prio["nmap"]}); err != nil {
			log.Printf("Failed to register nmap: %v", err)
		}
	}

	if cfg.Enabled("ssh_probe") {
		probeCfg, err := sshProbeConfig(cfg.SSH)
		if err != nil {
			log.Printf("Warning: SSH hostname probe disabled: %v", err)
		} else {
			registry.AddEnricher(adapter.NewSSHHostnameProbe(probeCfg))
		}
	}

	return registry
}

// sshProbeConfig reads the credential files named in the config
func sshProbeConfig(c config.SSHConfig) (adapter.SSHProbeConfig, error) {
	out := adapter.SSHProbeConfig{
		Username:    c.Username,
		Port:        c.Port,
		OnlyUnnamed: c.OnlyUnnamed,
	}
	if c.Username == "" {
		return out, fmt.Errorf("ssh.username is not set")
	}
	if c.KeyPath != "" {
		key, err := os.ReadFile(c.KeyPath)
		if err != nil {
			return out, fmt.Errorf("read ssh key: %w", err)
		}
		out.PrivateKey = string(key)
	}
	if c.PasswordFile != "" {
		pw, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return out, fmt.Errorf("read ssh password: %w", err)
		}
		out.Password = strings.TrimSpace(string(pw))
	}
	return out, nil
}

// startWatcher reloads the open project when its file changes on disk and
// drops cached icons when the icon directory changes. The watch follows the
// project as it is opened or saved elsewhere.
func startWatcher(ctx context.Context, cfg *config.Config, project *service.ProjectService, bus *topology.EventBus, icons *icon.Cache) error {
	w, err := watcher.New()
	if err != nil {
		return err
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			log.Printf("Watcher stopped: %v", err)
		}
	}()

	if cfg.Project.IconDir != "" {
		err := w.WatchDir(cfg.Project.IconDir, func(path string) {
			n := icons.InvalidateAll()
			log.Printf("Watcher: %s changed, dropped %d cached icons", filepath.Base(path), n)
		})
		if err != nil {
			log.Printf("Warning: cannot watch icon dir %s: %v", cfg.Project.IconDir, err)
		}
	}

	if !cfg.Project.Watch {
		return nil
	}

	reload := func(path string) {
		reloaded, err := project.Reload(ctx)
		switch {
		case err != nil:
			log.Printf("Watcher: not reloading %s: %v", path, err)
		case reloaded:
			log.Printf("Watcher: reloaded %s", path)
		}
	}

	watched := ""
	follow := func() {
		path := project.State().Path
		if path == watched {
			return
		}
		if watched != "" {
			w.Unwatch(watched)
		}
		watched = ""
		if path == "" {
			return
		}
		if err := w.WatchFile(path, reload); err != nil {
			log.Printf("Warning: cannot watch %s: %v", path, err)
			return
		}
		watched = path
	}
	follow()

	events := make(chan topology.Event, 16)
	unsubscribe := bus.Subscribe(events)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				if e.Type == topology.EventProjectOpened || e.Type == topology.EventProjectSaved {
					follow()
				}
			}
		}
	}()
	return nil
}
