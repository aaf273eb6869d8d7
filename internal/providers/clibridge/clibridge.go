// Package clibridge implements providers.Provider on top of a CLI coding
// agent (claude, gemini, opencode) run via internal/asynccli, letting the
// failover router treat "shell out to a CLI and read its final answer" as
// just another provider tier for requests that benefit from a tool-using
// agent loop instead of a single completion call.
package clibridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/superbrain/gateway/internal/asynccli"
	"github.com/superbrain/gateway/internal/providers"
)

// Provider shells a prompt out to a CLI tool and waits synchronously for
// its terminal output, adapting asynccli.Manager's tracking-ID lifecycle
// into a single blocking call the way providers.Provider expects.
type Provider struct {
	mgr           *asynccli.Manager
	cliType       string
	workspaceRoot string
	agentID       string
	timeout       string
}

// New builds a Provider that drives cliType (e.g. "claude", "gemini",
// "opencode") through mgr.
func New(mgr *asynccli.Manager, cliType, workspaceRoot, agentID string) *Provider {
	return &Provider{mgr: mgr, cliType: cliType, workspaceRoot: workspaceRoot, agentID: agentID}
}

func (p *Provider) Name() string         { return "clibridge:" + p.cliType }
func (p *Provider) DefaultModel() string { return "" }

func (p *Provider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	prompt := renderPrompt(req)

	trackingID, err := p.mgr.Start(ctx, p.cliType, cliCommand(p.cliType, prompt), p.workspaceRoot, p.agentID)
	if err != nil {
		return nil, fmt.Errorf("clibridge: start %s: %w", p.cliType, err)
	}

	result, err := p.mgr.Wait(ctx, trackingID)
	if err != nil {
		return nil, fmt.Errorf("clibridge: wait %s: %w", p.cliType, err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("clibridge: %s exited %d: %s", p.cliType, result.ExitCode, result.Stderr)
	}

	return &providers.ChatResponse{Content: strings.TrimSpace(result.Stdout), FinishReason: "stop"}, nil
}

// ChatStream has no incremental output channel for CLI-backed runs — it
// delegates to Chat and emits the full content as a single chunk.
func (p *Provider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	onChunk(providers.StreamChunk{Content: resp.Content})
	onChunk(providers.StreamChunk{Done: true})
	return resp, nil
}

func renderPrompt(req providers.ChatRequest) string {
	var b strings.Builder
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	return b.String()
}

func cliCommand(cliType, prompt string) string {
	switch cliType {
	case "claude":
		return fmt.Sprintf("claude -p %q", prompt)
	case "gemini":
		return fmt.Sprintf("gemini -p %q", prompt)
	case "opencode":
		return fmt.Sprintf("opencode run %q", prompt)
	default:
		return fmt.Sprintf("%s %q", cliType, prompt)
	}
}
