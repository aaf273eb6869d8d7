package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/superbrain/gateway/internal/asynccli"
	"github.com/superbrain/gateway/internal/config"
	"github.com/superbrain/gateway/internal/providers"
	"github.com/superbrain/gateway/internal/providers/anthropicsdk"
	"github.com/superbrain/gateway/internal/providers/clibridge"
	"github.com/superbrain/gateway/internal/providers/geminisdk"
	"github.com/superbrain/gateway/internal/providers/openaisdk"
)

// providerRoles buckets every configured provider under the role names the
// tier default orderings are written in terms of ("local", "remote-free",
// "cli-claude", "cli-gemini", "cli-opencode"), so each tier's chain can be
// assembled by walking its role order and flattening whatever providers
// ended up in each bucket.
type providerRoles struct {
	local       []providers.Provider
	remoteFree  []providers.Provider
	cliClaude   []providers.Provider
	cliGemini   []providers.Provider
	cliOpencode []providers.Provider
}

// buildProviderRoles constructs every provider whichever credentials are
// configured allow, SDK-backed clients preferred over the hand-rolled
// raw-HTTP implementations for the same vendor, and registers every entry
// with health for failover to skip.
func buildProviderRoles(ctx context.Context, cfg *config.Config, health *providers.HealthMonitor, registry *providers.Registry, asyncMgr *asynccli.Manager) providerRoles {
	var roles providerRoles

	add := func(p providers.Provider) {
		health.Register(p)
		registry.Register(p)
		slog.Info("registered provider", "name", p.Name())
	}

	// Anthropic has no "local"/"remote-free" role of its own in the default
	// tables; its SDK and raw-HTTP clients back the cli-claude role alongside
	// the clibridge CLI process, so a CLI-less deployment still gets the
	// model the "claude" CLI would have used.
	if cfg.Providers.Anthropic.APIKey != "" {
		model := cfg.Providers.Anthropic.Model
		p := anthropicsdk.New(cfg.Providers.Anthropic.APIKey, model)
		add(p)
		roles.cliClaude = append(roles.cliClaude, p)
		// Raw-HTTP fallback behind the SDK client: if the SDK call fails for
		// a reason specific to the SDK transport, the hand-rolled client is
		// a second independent implementation of the same API to fail over to.
		rawOpts := []providers.AnthropicOption{}
		if model != "" {
			rawOpts = append(rawOpts, providers.WithAnthropicModel(model))
		}
		raw := providers.NewAnthropicProvider(cfg.Providers.Anthropic.APIKey, rawOpts...)
		add(raw)
		roles.cliClaude = append(roles.cliClaude, raw)
	}
	if cfg.Providers.OpenAI.APIKey != "" {
		model := cfg.Providers.OpenAI.Model
		p := openaisdk.New(cfg.Providers.OpenAI.APIKey, model)
		add(p)
		roles.remoteFree = append(roles.remoteFree, p)
	}
	if cfg.Providers.Gemini.APIKey != "" {
		model := cfg.Providers.Gemini.Model
		p, err := geminisdk.New(ctx, cfg.Providers.Gemini.APIKey, model)
		if err != nil {
			slog.Warn("failed to initialize gemini provider", "error", err)
		} else {
			add(p)
			roles.remoteFree = append(roles.remoteFree, p)
			roles.cliGemini = append(roles.cliGemini, p)
		}
	}
	if cfg.Providers.LocalBase != "" {
		p := providers.NewOpenAIProvider("local", "", cfg.Providers.LocalBase, "local")
		add(p)
		roles.local = append(roles.local, p)
	}
	// DashScope has no dedicated config block (no product surface asks for
	// one yet); its key rides on a bare env var like the Redis/S3 settings
	// in root.go rather than growing config.ProvidersConfig for a single vendor.
	// Its free usage tier makes it a natural fit for the remote-free role.
	if key := os.Getenv("GATEWAY_DASHSCOPE_API_KEY"); key != "" {
		p := providers.NewDashScopeProvider(key, os.Getenv("GATEWAY_DASHSCOPE_BASE_URL"), os.Getenv("GATEWAY_DASHSCOPE_MODEL"))
		add(p)
		roles.remoteFree = append(roles.remoteFree, p)
	}

	if asyncMgr != nil {
		claude := clibridge.New(asyncMgr, "claude", cfg.Workspace.Root, "router")
		add(claude)
		roles.cliClaude = append(roles.cliClaude, claude)

		gemini := clibridge.New(asyncMgr, "gemini", cfg.Workspace.Root, "router")
		add(gemini)
		roles.cliGemini = append(roles.cliGemini, gemini)

		opencode := clibridge.New(asyncMgr, "opencode", cfg.Workspace.Root, "router")
		add(opencode)
		roles.cliOpencode = append(roles.cliOpencode, opencode)
	}

	return roles
}

// tierChain assembles one tier's ordered chain by walking its role order
// and flattening whatever concrete providers ended up in each role, so a
// role with no configured credentials just contributes nothing instead of
// leaving a gap.
func tierChain(roles providerRoles, roleOrder ...[]providers.Provider) []providers.Provider {
	var chain []providers.Provider
	for _, role := range roleOrder {
		chain = append(chain, role...)
	}
	return chain
}

// buildFailoverRouter wires the provider chain, task classifier, and health
// monitor into the Provider Failover Router, starting the
// monitor's background probe tick. asyncMgr may be nil before the async CLI
// manager exists yet; clibridge providers are then skipped.
func buildFailoverRouter(ctx context.Context, cfg *config.Config, asyncMgr *asynccli.Manager) (*providers.FailoverRouter, *providers.HealthMonitor, *providers.Registry) {
	healthTick := 60 * time.Second
	if cfg.Providers.HealthTick != "" {
		if d, err := time.ParseDuration(cfg.Providers.HealthTick); err == nil {
			healthTick = d
		}
	}
	health := providers.NewHealthMonitor(3, 2*time.Minute, healthTick)
	registry := providers.NewRegistry()
	roles := buildProviderRoles(ctx, cfg, health, registry, asyncMgr)

	// Five distinct default orderings, one per tier.
	chains := map[providers.TaskTier][]providers.Provider{
		providers.TierTrivial:  tierChain(roles, roles.local, roles.remoteFree, roles.cliOpencode),
		providers.TierSimple:   tierChain(roles, roles.remoteFree, roles.local, roles.cliOpencode),
		providers.TierModerate: tierChain(roles, roles.remoteFree, roles.cliOpencode, roles.cliGemini),
		providers.TierComplex:  tierChain(roles, roles.cliClaude, roles.cliGemini, roles.cliOpencode, roles.remoteFree),
		providers.TierCritical: tierChain(roles, roles.cliClaude, roles.cliGemini, roles.cliOpencode, roles.remoteFree),
	}
	router := providers.NewFailoverRouter(chains, providers.NewTaskClassifier(), health)

	go health.Run(ctx, func(probeCtx context.Context, p providers.Provider) error {
		if strings.HasPrefix(p.Name(), "clibridge:") {
			// CLI-backed providers shell out a real process per call; a
			// liveness ping would spawn one every tick for no signal worth
			// having, so they're always treated as healthy here.
			return nil
		}
		_, err := p.Chat(probeCtx, providers.ChatRequest{
			Messages: []providers.Message{{Role: "user", Content: "ping"}},
			Model:    p.DefaultModel(),
		})
		return err
	})

	return router, health, registry
}
