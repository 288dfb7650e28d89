package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/healthsource"
	"github.com/hpungsan/glyco/internal/kv"
	"github.com/hpungsan/glyco/internal/logging"
	"github.com/hpungsan/glyco/internal/mcp"
	"github.com/hpungsan/glyco/internal/share"
	"github.com/hpungsan/glyco/internal/store"
	"github.com/hpungsan/glyco/internal/viewmodel"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"add-insulin": true, "add-glucose": true, "scan": true, "say": true,
	"delete": true, "delete-all": true, "list": true, "summary": true,
	"sync": true, "connect": true, "report": true, "unit": true,
	"serve": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
        _
   __ _| |_  _ __ ___
  / _' | | || / _/ _ \
  \__, |_|\_, \__\___/
  |___/   |__/

  Glucose and insulin log

  Usage: glyco <command> [options]
         glyco --help

  MCP server mode requires piped input.`)
}

// app is the composition root shared by the CLI, MCP and web surfaces.
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	baseDir    string
	exportsDir string
	location   *time.Location
	clock      func() time.Time

	kv        kv.Store
	registry  *prometheus.Registry
	store     *store.Store
	syncer    *healthsource.Syncer // nil when no health source is configured
	publisher share.Publisher
	settings  *viewmodel.Settings
}

// openApp wires storage, the record store, the health source and the
// settings model from cfg.
func openApp(ctx context.Context, baseDir string, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{
		cfg:        cfg,
		log:        log,
		baseDir:    baseDir,
		exportsDir: filepath.Join(baseDir, "exports"),
		location:   time.Local,
		clock:      time.Now,
		registry:   prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	backend, err := kv.Open(ctx, cfg, baseDir)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}
	a.kv = backend

	a.store, err = store.Open(ctx, backend,
		store.WithLogger(log),
		store.WithRegisterer(a.registry),
		store.WithClock(a.clock),
	)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("open record store: %w", err)
	}

	if src := newHealthSource(cfg, log); src != nil {
		timeout := time.Duration(cfg.AuthTimeoutSeconds) * time.Second
		a.syncer = healthsource.NewSyncer(src, a.store, timeout, log)
	}

	a.publisher, err = share.Open(ctx, cfg, filepath.Join(baseDir, "shared"))
	if err != nil {
		// Sharing is optional; exports still work without it
		log.Warn("share target unavailable", zap.Error(err))
		a.publisher = nil
	}

	deps := viewmodel.SettingsDeps{
		Store:      a.store,
		KV:         backend,
		Syncer:     a.syncer,
		Publisher:  a.publisher,
		Config:     cfg,
		ExportsDir: a.exportsDir,
		Location:   a.location,
		Log:        log,
		Clock:      a.clock,
	}
	a.settings, err = viewmodel.NewSettings(ctx, deps)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return a, nil
}

// newHealthSource picks Nightscout when a URL is configured, else the JSONL
// file source, else none.
func newHealthSource(cfg *config.Config, log *zap.Logger) healthsource.Source {
	switch {
	case cfg.NightscoutURL != "":
		return healthsource.NewNightscout(cfg.NightscoutURL, cfg.NightscoutSecret, cfg.NightscoutToken, log)
	case cfg.HealthFile != "":
		return healthsource.NewFile(cfg.HealthFile, log)
	default:
		return nil
	}
}

// Close releases the settings subscription and the storage backend.
func (a *app) Close() {
	if a.settings != nil {
		a.settings.Close()
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.log.Warn("close storage", zap.Error(err))
		}
	}
}

// mcpHandlers builds the MCP tool handlers over the app.
func (a *app) mcpHandlers() *mcp.Handlers {
	return mcp.NewHandlers(mcp.Deps{
		Store:    a.store,
		Settings: a.settings,
		Config:   a.cfg,
		Location: a.location,
		Clock:    a.clock,
		Log:      a.log,
	})
}

func main() {
	os.Exit(run())
}

func run() int {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Handle --help/--version before storage init (no storage needed)
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		return 1
	}
	baseDir := filepath.Join(homeDir, ".glyco")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log_level %q: %v\n", cfg.LogLevel, err)
		return 1
	}
	defer logging.Flush(log)

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'glyco --help' for usage.\n")
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, baseDir, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer a.Close()

	// CLI mode: known subcommand
	if isCLIMode() {
		if err := newCLIApp(a).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// MCP server mode (default)
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	h := a.mcpHandlers()
	defer h.Close()
	if err := mcp.Run(h, Version); err != nil {
		log.Error("mcp server stopped", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
