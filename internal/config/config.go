// Package config holds the process-wide static configuration for the
// gateway: providers, sandbox, cron, telemetry and storage wiring. Per-user
// and per-agent behavioral records (gating thresholds, tool settings,
// failover chains) are owned by the packages that use them and loaded from
// internal/store at request time — config.Config only carries what is fixed
// for the life of the process.
package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON, matching
// upstream clients that serialize numeric IDs inconsistently.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the gateway process.
type Config struct {
	Providers ProvidersConfig `json:"providers"`
	Gateway   GatewayConfig   `json:"gateway"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Sandbox   SandboxConfig   `json:"sandbox,omitempty"`
	Cron      CronConfig      `json:"cron,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Workspace WorkspaceConfig `json:"workspace,omitempty"`
	Tools     ToolsConfig     `json:"tools,omitempty"`

	mu sync.RWMutex
}

// ToolsConfig is the global tool-access policy evaluated by
// tools.PolicyEngine.
type ToolsConfig struct {
	Profile      string                        `json:"profile,omitempty"`
	Allow        FlexibleStringSlice           `json:"allow,omitempty"`
	Deny         FlexibleStringSlice           `json:"deny,omitempty"`
	AlsoAllow    FlexibleStringSlice           `json:"also_allow,omitempty"`
	ByProvider   map[string]ProviderToolPolicy `json:"by_provider,omitempty"`
	AutoSendMode string                        `json:"auto_send_mode,omitempty"` // "" (open) or "restricted"
	McpServers   map[string]*MCPServerConfig   `json:"mcp_servers,omitempty"`    // external MCP server connections
}

// MCPServerConfig configures a single external MCP server connection.
type MCPServerConfig struct {
	Transport  string            `json:"transport"`             // "stdio", "sse", "streamable-http"
	Command    string            `json:"command,omitempty"`     // stdio: command to spawn
	Args       []string          `json:"args,omitempty"`        // stdio: command arguments
	Env        map[string]string `json:"env,omitempty"`         // stdio: extra environment variables
	URL        string            `json:"url,omitempty"`         // sse/http: server URL
	Headers    map[string]string `json:"headers,omitempty"`     // sse/http: extra HTTP headers
	Enabled    *bool             `json:"enabled,omitempty"`     // default true
	ToolPrefix string            `json:"tool_prefix,omitempty"` // prefix for tool names (avoids collisions)
	TimeoutSec int               `json:"timeout_sec,omitempty"` // per-tool-call timeout in seconds (default 60)
}

// IsEnabled returns whether this MCP server is enabled (default true).
func (c *MCPServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ProviderToolPolicy overrides the global tool policy for one provider tag.
type ProviderToolPolicy struct {
	Profile string              `json:"profile,omitempty"`
	Allow   FlexibleStringSlice `json:"allow,omitempty"`
}

// ToolPolicySpec is a per-agent tool policy override, layered on top of
// ToolsConfig by the policy engine's steps 5-6.
type ToolPolicySpec struct {
	Allow      FlexibleStringSlice           `json:"allow,omitempty"`
	Deny       FlexibleStringSlice           `json:"deny,omitempty"`
	AlsoAllow  FlexibleStringSlice           `json:"also_allow,omitempty"`
	ByProvider map[string]ProviderToolPolicy `json:"by_provider,omitempty"`
}

// GatewayConfig configures inbound entrypoint defaults.
type GatewayConfig struct {
	MaxMessageChars   int    `json:"max_message_chars,omitempty"`
	DedupeWindowMs    int    `json:"dedupe_window_ms,omitempty"`
	GatingCacheTTLSec int    `json:"gating_cache_ttl_sec,omitempty"`
	ContentMinLength  int    `json:"content_min_length,omitempty"`
	BlockMediaOnly    bool   `json:"block_media_only,omitempty"`
	LogLevel          string `json:"log_level,omitempty"`
	ListenAddr        string `json:"listen_addr,omitempty"`
}

// DatabaseConfig configures Postgres. PostgresDSN is never read from the
// config file (secret) — only from env SUPERBRAIN_POSTGRES_DSN.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
	Mode        string `json:"mode,omitempty"` // "standalone" (embedded sqlite) or "managed" (postgres)
}

// ProvidersConfig configures the provider router.
type ProvidersConfig struct {
	Anthropic  ProviderCreds       `json:"anthropic,omitempty"`
	OpenAI     ProviderCreds       `json:"openai,omitempty"`
	Gemini     ProviderCreds       `json:"gemini,omitempty"`
	LocalBase  string              `json:"local_base_url,omitempty"` // Ollama-compatible OpenAI endpoint
	HealthTick string              `json:"health_tick,omitempty"`    // duration string, default "60s"
	Failover   map[string][]string `json:"failover,omitempty"`       // tier -> ordered provider tags; not read when building chains, which always use the built-in per-tier orderings
}

// ProviderCreds holds API credentials. APIKey is never persisted to the
// config file — only read from environment.
type ProviderCreds struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// SandboxConfig configures Docker-based isolation for async CLI executions.
type SandboxConfig struct {
	Mode           string  `json:"mode,omitempty"` // "off" (default), "all"
	Image          string  `json:"image,omitempty"`
	MemoryMB       int     `json:"memory_mb,omitempty"`
	CPUs           float64 `json:"cpus,omitempty"`
	NetworkEnabled bool    `json:"network_enabled,omitempty"`
	User           string  `json:"user,omitempty"` // e.g. "1000:1000" for uid/gid drop
}

// CronConfig configures the maintenance scheduler (workspace cleanup sweeps).
type CronConfig struct {
	WorkspaceCleanupExpr string `json:"workspace_cleanup_expr,omitempty"` // gronx expression, default "0 3 * * *"
	CleanupOlderThanDays int    `json:"cleanup_older_than_days,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export for traces.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // "grpc" or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// WorkspaceConfig configures the per-agent sandbox directory root.
type WorkspaceConfig struct {
	Root                string `json:"root,omitempty"` // default "~/.superbrain/workspaces"
	RestrictToWorkspace bool   `json:"restrict_to_workspace,omitempty"`
}

// IsManagedMode reports whether the gateway is backed by Postgres rather
// than the embedded standalone store.
func (c *Config) IsManagedMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// ReplaceFrom atomically swaps in a reloaded configuration, preserving c's
// mutex so concurrent readers never observe a torn struct.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Providers = src.Providers
	c.Gateway = src.Gateway
	c.Database = src.Database
	c.Sandbox = src.Sandbox
	c.Cron = src.Cron
	c.Telemetry = src.Telemetry
	c.Workspace = src.Workspace
	c.Tools = src.Tools
}

// Snapshot returns a copy of the config safe to read without holding c's lock.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}
