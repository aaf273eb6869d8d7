package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/superbrain/gateway/internal/providers"
)

// Tool is the uniform interface every gateway tool implements, whether it
// wraps a builtin (exec, read_file) or a messaging side effect (sendEmail).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// AsyncCallback lets a tool hand back a later result once a long-running
// operation (an async CLI run, a queued delivery) completes.
type AsyncCallback func(trackingID string, result *Result)

// Registry holds every tool instance known to the process, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get looks up a tool by its canonical name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Unregister removes a tool by name, used by the MCP manager to tear down a
// server's tools on disconnect or reload.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// List returns every registered tool name, sorted for deterministic policy
// evaluation.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToProviderDef converts a Tool into the provider-facing function schema.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

// Invoke resolves a requested tool call by name (applying aliases) and
// executes it, returning a structured error result rather than panicking
// when the tool is unknown — the router surfaces this to the model as a
// normal tool failure so it can retry with a different call.
func (r *Registry) Invoke(ctx context.Context, call providers.ToolCall) *Result {
	canonical := resolveAlias(call.Name)
	t, ok := r.Get(canonical)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool %q", call.Name))
	}
	return t.Execute(ctx, call.Arguments)
}
