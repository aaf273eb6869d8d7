package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			MaxMessageChars:   32000,
			DedupeWindowMs:    5000,
			GatingCacheTTLSec: 60,
			ContentMinLength:  2,
			LogLevel:          "info",
		},
		Providers: ProvidersConfig{
			HealthTick: "60s",
		},
		Database: DatabaseConfig{Mode: "standalone"},
		Sandbox:  SandboxConfig{Mode: "off"},
		Cron: CronConfig{
			WorkspaceCleanupExpr: "0 3 * * *",
			CleanupOlderThanDays: 30,
		},
		Workspace: WorkspaceConfig{
			Root:                "~/.superbrain/workspaces",
			RestrictToWorkspace: true,
		},
	}
}

// Load reads a JSON5 config file (comments and trailing commas allowed,
// matching the gateway's own config format) and overlays secrets from the
// environment. A missing file is not an error — Default() is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvSecrets(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnvSecrets(cfg)
	return cfg, nil
}

func applyEnvSecrets(cfg *Config) {
	cfg.Database.PostgresDSN = os.Getenv("SUPERBRAIN_POSTGRES_DSN")
	cfg.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Providers.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
}

// Watcher reloads Config from disk whenever the backing file changes,
// swapping the shared Config's fields in place via ReplaceFrom so holders of
// the pointer observe the update without re-wiring dependents.
type Watcher struct {
	path string
	cfg  *Config
	fsw  *fsnotify.Watcher

	mu      sync.Mutex
	onReload []func(*Config)
}

// NewWatcher starts watching path for changes and applies them to cfg.
func NewWatcher(path string, cfg *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		slog.Warn("config hot-reload disabled: cannot watch file", "path", path, "error", err)
	}
	w := &Watcher{path: path, cfg: cfg, fsw: fsw}
	go w.loop()
	return w, nil
}

// OnReload registers a callback invoked after each successful reload.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

func (w *Watcher) loop() {
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(250 * time.Millisecond)
		case <-debounce.C:
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		slog.Error("config reload failed, keeping previous config", "error", err)
		return
	}
	w.cfg.ReplaceFrom(next)
	slog.Info("config reloaded", "path", w.path)

	w.mu.Lock()
	callbacks := append([]func(*Config){}, w.onReload...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(w.cfg)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
