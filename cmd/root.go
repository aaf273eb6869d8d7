package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/superbrain/gateway/internal/asynccli"
	"github.com/superbrain/gateway/internal/bus"
	"github.com/superbrain/gateway/internal/classify"
	"github.com/superbrain/gateway/internal/config"
	"github.com/superbrain/gateway/internal/delivery"
	"github.com/superbrain/gateway/internal/enrich"
	"github.com/superbrain/gateway/internal/flows"
	"github.com/superbrain/gateway/internal/gating"
	"github.com/superbrain/gateway/internal/kv"
	"github.com/superbrain/gateway/internal/mcp"
	"github.com/superbrain/gateway/internal/pipeline"
	"github.com/superbrain/gateway/internal/providers"
	"github.com/superbrain/gateway/internal/ptymux"
	"github.com/superbrain/gateway/internal/router"
	"github.com/superbrain/gateway/internal/sandbox"
	"github.com/superbrain/gateway/internal/store"
	"github.com/superbrain/gateway/internal/store/pg"
	"github.com/superbrain/gateway/internal/store/sqlitestore"
	"github.com/superbrain/gateway/internal/tempstore"
	"github.com/superbrain/gateway/internal/tools"
	"github.com/superbrain/gateway/internal/tracing"
	"github.com/superbrain/gateway/internal/workspace"
	"github.com/superbrain/gateway/pkg/protocol"
)

// Version is set at build time via -ldflags "-X github.com/superbrain/gateway/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Multi-platform conversational orchestrator",
	Long:  "gateway runs the message pipeline, intent router, provider failover, and async CLI execution manager behind a single process.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGateway(); err != nil {
			slog.Error("gateway exited", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $GATEWAY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(migrateCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gateway %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("GATEWAY_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runGateway loads configuration and wires every collaborator the message
// pipeline needs, then blocks until interrupted.
func runGateway() error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Gateway.LogLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.Gateway.LogLevel)); err == nil {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
		}
	}

	watcher, err := config.NewWatcher(resolveConfigPath(), cfg)
	if err != nil {
		slog.Warn("config hot-reload watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := tracing.Init(ctx, cfg.Telemetry)
		if err != nil {
			slog.Warn("tracing init failed, continuing without it", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	dataStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	kvStore, err := openKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}

	wsMgr, err := workspace.New(cfg.Workspace.Root, cfg.Workspace.RestrictToWorkspace)
	if err != nil {
		return fmt.Errorf("init workspace manager: %w", err)
	}
	cleanup := workspace.NewCleanupScheduler(wsMgr, cfg.Cron.WorkspaceCleanupExpr, time.Duration(cfg.Cron.CleanupOlderThanDays)*24*time.Hour)
	go cleanup.Run(ctx)

	sandboxMgr, err := sandbox.NewDockerManager(cfg.Sandbox)
	if err != nil {
		return fmt.Errorf("init sandbox manager: %w", err)
	}
	defer sandboxMgr.Shutdown(context.Background())

	msgBus := bus.NewHub()

	var tempStore tempstore.Service
	if bucket := os.Getenv("GATEWAY_TEMPSTORE_BUCKET"); bucket != "" {
		if s3, err := tempstore.NewS3Service(ctx, bucket); err != nil {
			slog.Warn("tempstore unavailable, generated files won't be uploaded", "error", err)
		} else {
			tempStore = s3
		}
	}

	deliveryQueue := delivery.NewQueue(ctx, delivery.NewBusSender(msgBus), 4, 256, 3, time.Second)

	asyncMgr := asynccli.NewManager(dataStore, sandboxMgr, msgBus, 3,
		asynccli.WithTempStore(tempStore),
		asynccli.WithDeliveryQueue(deliveryQueue),
	)

	failoverRouter, _, providerRegistry := buildFailoverRouter(ctx, cfg, asyncMgr)

	toolsRegistry := registerTools(cfg, wsMgr, sandboxMgr, providerRegistry)

	mcpMgr := mcp.NewManager(toolsRegistry, cfg.Tools.McpServers)
	if err := mcpMgr.Start(ctx); err != nil {
		slog.Warn("one or more mcp servers failed to connect", "error", err)
	}
	defer mcpMgr.Stop()

	gatingChain := gating.NewChain([]gating.Gate{
		gating.NewEchoGate(kvStore),
		gating.NewGroupAllowlistGate(kvStore),
		gating.NewMentionGate(kvStore),
		gating.NewRateLimitGate(kvStore, time.Minute, 30),
		gating.NewContentGate(cfg.Gateway.ContentMinLength, cfg.Gateway.BlockMediaOnly),
		gating.NewBlocklistGate(kvStore),
		gating.NewMutedGate(kvStore),
		gating.NewQuietHoursGate(kvStore, time.Now),
		gating.NewPlanGate(kvStore),
	}, time.Duration(cfg.Gateway.GatingCacheTTLSec)*time.Second)

	classifier := classify.New()
	enrichers := enrich.NewChain(
		enrich.NewDocumentEnricher(),
		enrich.NewImageEnricher(nil, nil),
		enrich.NewVoiceEnricher(nil),
	)

	intentRouter := router.New(dataStore.(router.SettingsStore), dataStore.(router.HistoryStore), toolsRegistry, failoverRouter)

	pl := pipeline.New(
		gatingChain,
		classifier,
		enrichers,
		dataStore.(flows.Store),
		nil, // flowEngine: no automated flow-execution backend wired yet
		intentRouter,
		nil, // swarm: no auto-respond agent directory wired yet
		nil, // toolIDs: falls back to the router's own enabled-tool resolution
		failoverRouter,
		nil, // ingestion: no passive knowledge-ingestion sink wired yet
		nil, // builtins: built-in /help /status commands not wired yet
	)

	cliAuth := newCLIAuthHandlers(ptymux.NewFakeMultiplexer(), dataStore)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", ingestHandler(pl))
	mux.HandleFunc("/v1/events", msgBus.ServeHTTP)
	mux.HandleFunc("/v1/cli-auth/start", cliAuth.start)
	mux.HandleFunc("/v1/cli-auth/status", cliAuth.status)

	addr := cfg.Gateway.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("http listener starting", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http listener failed", "error", err)
		}
	}()

	slog.Info("gateway started", "database_mode", cfg.Database.Mode, "sandbox_mode", cfg.Sandbox.Mode)

	<-ctx.Done()
	slog.Info("gateway shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.IsManagedMode() {
		return pg.New(ctx, cfg.Database.PostgresDSN)
	}
	return sqlitestore.Open("gateway.db")
}

func openKV(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	if addr := os.Getenv("GATEWAY_REDIS_ADDR"); addr != "" {
		return kv.NewRedisStore(ctx, addr, os.Getenv("GATEWAY_REDIS_PASSWORD"), 0)
	}
	return kv.NewMemoryStore(10000), nil
}

func registerTools(cfg *config.Config, wsMgr *workspace.Manager, sandboxMgr sandbox.Manager, providerRegistry *providers.Registry) *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.NewSandboxedReadFileTool(wsMgr.Root(), cfg.Workspace.RestrictToWorkspace, sandboxMgr))
	reg.Register(tools.NewSandboxedExecTool(wsMgr.Root(), cfg.Workspace.RestrictToWorkspace, sandboxMgr))
	reg.Register(tools.NewWebFetchTool(tools.WebFetchConfig{}))
	reg.Register(tools.NewWebSearchTool(tools.WebSearchConfig{}))
	reg.Register(tools.NewCreateImageTool(providerRegistry))
	reg.Register(tools.NewReadImageTool(providerRegistry))
	return reg
}
