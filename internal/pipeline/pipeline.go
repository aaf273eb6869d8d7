// Package pipeline implements the Message Pipeline: the fixed
// sequence every inbound message passes through from normalization to a
// terminal Result, short-circuiting at the first step that has enough
// information to decide the outcome.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/superbrain/gateway/internal/classify"
	"github.com/superbrain/gateway/internal/enrich"
	"github.com/superbrain/gateway/internal/flows"
	"github.com/superbrain/gateway/internal/gating"
	"github.com/superbrain/gateway/internal/message"
	"github.com/superbrain/gateway/internal/providers"
)

// IngestionSink receives PASSIVE-classified messages for asynchronous
// knowledge ingestion; the pipeline fires this and does not wait on it.
type IngestionSink interface {
	Ingest(ctx context.Context, msg *message.Unified) error
}

// SwarmAgent is one auto-respond agent the swarm check can delegate to.
type SwarmAgent struct {
	AgentID  string
	Keywords []string
}

// SwarmStore looks up the auto-respond agents configured for an account.
type SwarmStore interface {
	ListAutoRespondAgents(ctx context.Context, accountID string) ([]SwarmAgent, error)
}

// ToolIDsSource resolves which tool IDs are enabled for an agent, folded
// into the classifier's cache key.
type ToolIDsSource interface {
	EnabledToolIDs(ctx context.Context, agentID string) ([]string, error)
}

// AIClient is the direct-fallback call surface (step 11); satisfied by
// providers.FailoverRouter without this package importing anything beyond
// the provider request/response types.
type AIClient interface {
	Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error)
}

// BuiltinCommands answers the pipeline's `/help`, `/status`, `/flows`,
// `/agents` built-in commands (step 8).
type BuiltinCommands interface {
	Help(ctx context.Context, rc *message.RequestContext) (string, error)
	Status(ctx context.Context, rc *message.RequestContext) (string, error)
	ListFlows(ctx context.Context, rc *message.RequestContext) (string, error)
	ListAgents(ctx context.Context, rc *message.RequestContext) (string, error)
}

// Pipeline wires together every collaborator behind the
// single Process entrypoint.
type Pipeline struct {
	gates      *gating.Chain
	classifier *classify.Classifier
	enrichers  *enrich.Chain
	flowStore  flows.Store
	flowEngine flows.Engine
	router     Router
	swarm      SwarmStore
	toolIDs    ToolIDsSource
	ai         AIClient
	ingestion  IngestionSink
	builtins   BuiltinCommands

	dedup *deduper
}

// New builds a Pipeline. Optional collaborators (flowEngine, swarm,
// builtins, ingestion) may be nil; the corresponding step becomes a no-op.
func New(
	gates *gating.Chain,
	classifier *classify.Classifier,
	enrichers *enrich.Chain,
	flowStore flows.Store,
	flowEngine flows.Engine,
	router Router,
	swarm SwarmStore,
	toolIDs ToolIDsSource,
	ai AIClient,
	ingestion IngestionSink,
	builtins BuiltinCommands,
) *Pipeline {
	return &Pipeline{
		gates:      gates,
		classifier: classifier,
		enrichers:  enrichers,
		flowStore:  flowStore,
		flowEngine: flowEngine,
		router:     router,
		swarm:      swarm,
		toolIDs:    toolIDs,
		ai:         ai,
		ingestion:  ingestion,
		builtins:   builtins,
		dedup:      newDeduper(),
	}
}

// Process runs msg through the fixed pipeline and always returns a Result;
// it never panics outward and never returns a nil Result with a nil error.
func (p *Pipeline) Process(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (res *Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = &Result{Type: ResultError, Metadata: map[string]interface{}{"panic": fmt.Sprint(r)}}
			err = nil
		}
		p.logCompletion(msg, rc, res, time.Since(start))
	}()

	p.normalize(msg)

	if !p.dedup.markIfNew(msg.Fingerprint()) {
		return noAction("duplicate"), nil
	}

	if p.gates != nil {
		decision := p.gates.Evaluate(ctx, msg, rc)
		if !decision.Allow {
			return noAction(fmt.Sprintf("gated:%s:%s", decision.Gate, decision.Reason)), nil
		}
	}

	enabledToolIDs := p.enabledToolIDs(ctx, rc)
	classification := p.classifier.Classify(msg.Content, enabledToolIDs)
	switch classification.Intent {
	case classify.IntentSkip:
		return noAction("skip:" + classification.Reason), nil
	case classify.IntentPassive:
		p.ingestAsync(msg)
		return &Result{Type: ResultPassiveIngested, Metadata: map[string]interface{}{"reason": classification.Reason}}, nil
	}

	pendingAnalysis := ""
	if p.enrichers != nil {
		before := msg.Content
		if err := p.enrichers.Run(ctx, msg); err != nil {
			slog.Warn("pipeline: media enrichment failed", "error", err, "message_id", msg.ID)
		} else if msg.Content != before {
			pendingAnalysis = msg.Content
		}
	}

	if p.flowStore != nil {
		accountID := rc.AccountID
		if accountID == "" {
			accountID = rc.UserID
		}
		matches, err := flows.MatchAll(ctx, p.flowStore, accountID, msg)
		if err != nil {
			slog.Warn("pipeline: flow trigger lookup failed", "error", err)
		} else if len(matches) > 0 {
			if p.flowEngine != nil {
				if err := p.flowEngine.Execute(ctx, matches[0].Trigger.FlowID, msg, rc); err != nil {
					return &Result{Type: ResultError, Metadata: map[string]interface{}{"flow_id": matches[0].Trigger.FlowID, "error": err.Error()}}, nil
				}
			}
			return &Result{Type: ResultFlowExecuted, Metadata: map[string]interface{}{"flow_id": matches[0].Trigger.FlowID}}, nil
		}
	}

	if pendingAnalysis != "" {
		return &Result{Type: ResultAIResponse, Response: pendingAnalysis, Metadata: map[string]interface{}{"source": "media_enrichment"}}, nil
	}

	if res := p.handleBuiltinCommand(ctx, msg, rc); res != nil {
		return res, nil
	}

	if p.router != nil {
		routed, err := p.router.Route(ctx, msg, rc.UserID, rc.SessionID, rc)
		if err != nil {
			return &Result{Type: ResultError, Metadata: map[string]interface{}{"error": err.Error()}}, nil
		}
		if routed.Type != ResultNoAction {
			return routed, nil
		}
	}

	if p.swarm != nil {
		accountID := rc.AccountID
		if accountID == "" {
			accountID = rc.UserID
		}
		agents, err := p.swarm.ListAutoRespondAgents(ctx, accountID)
		if err != nil {
			slog.Warn("pipeline: swarm lookup failed", "error", err)
		} else if agentID, ok := matchSwarmKeywords(agents, msg.Content); ok {
			return &Result{Type: ResultSwarmDelegated, Metadata: map[string]interface{}{"agent_id": agentID}}, nil
		}
	}

	if p.ai == nil {
		return noAction("no_ai_configured"), nil
	}
	resp, err := p.ai.Chat(ctx, providers.ChatRequest{Messages: []providers.Message{{Role: "user", Content: msg.Content}}})
	if err != nil {
		return &Result{Type: ResultError, Metadata: map[string]interface{}{"error": err.Error()}}, nil
	}
	if isSilentReply(resp.Content) {
		return &Result{Type: ResultSilent}, nil
	}
	return &Result{Type: ResultAIResponse, Response: resp.Content}, nil
}

func (p *Pipeline) normalize(msg *message.Unified) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
}

func (p *Pipeline) enabledToolIDs(ctx context.Context, rc *message.RequestContext) []string {
	if p.toolIDs == nil {
		return nil
	}
	ids, err := p.toolIDs.EnabledToolIDs(ctx, rc.AgentID)
	if err != nil {
		slog.Warn("pipeline: failed to load enabled tool ids", "error", err)
		return nil
	}
	return ids
}

func (p *Pipeline) ingestAsync(msg *message.Unified) {
	if p.ingestion == nil {
		return
	}
	cp := *msg
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("pipeline: ingestion sink panicked", "panic", fmt.Sprint(r))
			}
		}()
		if err := p.ingestion.Ingest(context.Background(), &cp); err != nil {
			slog.Warn("pipeline: passive ingestion failed", "error", err, "message_id", cp.ID)
		}
	}()
}

func (p *Pipeline) handleBuiltinCommand(ctx context.Context, msg *message.Unified, rc *message.RequestContext) *Result {
	trimmed := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(trimmed, "/") || p.builtins == nil {
		return nil
	}
	fields := strings.Fields(trimmed)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))

	var (
		text string
		err  error
	)
	switch cmd {
	case "help":
		text, err = p.builtins.Help(ctx, rc)
	case "status":
		text, err = p.builtins.Status(ctx, rc)
	case "flows":
		text, err = p.builtins.ListFlows(ctx, rc)
	case "agents":
		text, err = p.builtins.ListAgents(ctx, rc)
	default:
		return nil
	}
	if err != nil {
		return &Result{Type: ResultError, Metadata: map[string]interface{}{"command": cmd, "error": err.Error()}}
	}
	return &Result{Type: ResultAIResponse, Response: text, Metadata: map[string]interface{}{"builtin_command": cmd}}
}

func matchSwarmKeywords(agents []SwarmAgent, content string) (string, bool) {
	lower := strings.ToLower(content)
	for _, a := range agents {
		for _, kw := range a.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				return a.AgentID, true
			}
		}
	}
	return "", false
}

func (p *Pipeline) logCompletion(msg *message.Unified, rc *message.RequestContext, res *Result, elapsed time.Duration) {
	if res == nil {
		return
	}
	attrs := []any{
		"message_id", "",
		"result_type", res.Type,
		"elapsed_ms", elapsed.Milliseconds(),
	}
	if msg != nil {
		attrs[1] = msg.ID
	}
	if rc != nil {
		attrs = append(attrs, "user_id", rc.UserID, "agent_id", rc.AgentID)
	}
	slog.Info("pipeline: process completed", attrs...)
}
