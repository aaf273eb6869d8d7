// Package router implements the Intent Router: AI-driven tool
// selection with caching, access control, placeholder-chained execution,
// and response formatting, returning a pipeline.Result the Message
// Pipeline can propagate unchanged.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/superbrain/gateway/internal/message"
	"github.com/superbrain/gateway/internal/pipeline"
	"github.com/superbrain/gateway/internal/providers"
	"github.com/superbrain/gateway/internal/tools"
)

const (
	cacheTTL                = 5 * time.Minute
	defaultConfidenceThresh = 0.70
	cacheConfidenceFloor    = 0.80
	historyDepth            = 10
	summaryMaxWords         = 500
)

// UserToolSettings is the per-user routing configuration loaded at step 1.
type UserToolSettings struct {
	AIRouterMode        string // "" (enabled) or "disabled"
	ClassifyOnly        bool
	EnabledToolIDs      []string
	ConfidenceThreshold float64 // 0 means use defaultConfidenceThresh
	AutoSendMode        string  // "" (open) or "restricted"
}

// SettingsStore loads per-user routing configuration.
type SettingsStore interface {
	LoadToolSettings(ctx context.Context, userID string) (UserToolSettings, error)
}

// Exchange is one turn of prior conversation injected into the routing
// prompt for context.
type Exchange struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// HistoryStore maintains the per-conversation exchange ring buffer (step
// 13).
type HistoryStore interface {
	Recent(ctx context.Context, conversationID string, n int) ([]Exchange, error)
	Append(ctx context.Context, conversationID string, e Exchange) error
}

// AIClient is the call surface the router uses for both tool selection and
// file-summary generation; providers.FailoverRouter satisfies it.
type AIClient interface {
	Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error)
}

// ToolInvocation is one parsed tool call the model asked for.
type ToolInvocation struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
}

type cacheEntry struct {
	invocations []ToolInvocation
	confidence  float64
	reasoning   string
	expires     time.Time
}

// Router implements pipeline.Router.
type Router struct {
	settings SettingsStore
	history  HistoryStore
	registry *tools.Registry
	ai       AIClient

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New builds a Router.
func New(settings SettingsStore, history HistoryStore, registry *tools.Registry, ai AIClient) *Router {
	return &Router{
		settings: settings,
		history:  history,
		registry: registry,
		ai:       ai,
		cache:    make(map[string]cacheEntry),
	}
}

// Route implements tool selection, access control, and execution.
func (r *Router) Route(ctx context.Context, msg *message.Unified, userID, sessionID string, rc *message.RequestContext) (*pipeline.Result, error) {
	settings, err := r.settings.LoadToolSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("router: load tool settings: %w", err)
	}
	if settings.AIRouterMode == "disabled" {
		return &pipeline.Result{Type: pipeline.ResultNoAction, Metadata: map[string]interface{}{"skipped": true}}, nil
	}

	threshold := settings.ConfidenceThreshold
	if threshold <= 0 {
		threshold = defaultConfidenceThresh
	}

	fingerprint := routeFingerprint(msg.Content, settings.EnabledToolIDs)
	invocations, confidence, reasoning, fromCache := r.lookupCache(fingerprint)

	if !fromCache {
		invocations, confidence, reasoning, err = r.classify(ctx, msg, sessionID, settings)
		if err != nil {
			return nil, fmt.Errorf("router: classify: %w", err)
		}
		if confidence < threshold {
			return r.clarify(ctx, msg, reasoning), nil
		}
		if confidence >= cacheConfidenceFloor {
			r.storeCache(fingerprint, invocations, confidence, reasoning)
		}
	}

	invocations = applyAutoSwitches(invocations, msg.Content)

	if settings.ClassifyOnly {
		return classifyOnlyResult(invocations, confidence, reasoning), nil
	}

	outcome, err := r.execute(ctx, invocations, settings, rc)
	if err != nil {
		return nil, err
	}

	if r.history != nil {
		_ = r.history.Append(ctx, rc.ConversationID, Exchange{Role: "user", Content: msg.Content, Timestamp: time.Now()})
		_ = r.history.Append(ctx, rc.ConversationID, Exchange{Role: "assistant", Content: outcome, Timestamp: time.Now()})
	}

	return &pipeline.Result{Type: pipeline.ResultToolExecuted, Response: outcome, Metadata: map[string]interface{}{
		"confidence": confidence,
		"reasoning":  reasoning,
		"tools":      toolNames(invocations),
	}}, nil
}

func (r *Router) lookupCache(fingerprint string) ([]ToolInvocation, float64, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[fingerprint]
	if !ok || time.Now().After(e.expires) {
		return nil, 0, "", false
	}
	return e.invocations, e.confidence, e.reasoning, true
}

func (r *Router) storeCache(fingerprint string, invocations []ToolInvocation, confidence float64, reasoning string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[fingerprint] = cacheEntry{invocations: invocations, confidence: confidence, reasoning: reasoning, expires: time.Now().Add(cacheTTL)}
}

func routeFingerprint(content string, enabledToolIDs []string) string {
	sorted := append([]string(nil), enabledToolIDs...)
	sort.Strings(sorted)
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	h := sha256.Sum256([]byte(normalized + "\x00" + strings.Join(sorted, ",")))
	return hex.EncodeToString(h[:])
}

// classify composes the tool-selection prompt and calls the provider
// router with a low-temperature, JSON-only contract.
func (r *Router) classify(ctx context.Context, msg *message.Unified, conversationID string, settings UserToolSettings) ([]ToolInvocation, float64, string, error) {
	systemPrompt := r.buildSystemPrompt(settings.EnabledToolIDs)

	messages := []providers.Message{{Role: "system", Content: systemPrompt}}
	if r.history != nil {
		if exchanges, err := r.history.Recent(ctx, conversationID, historyDepth); err == nil {
			for _, e := range exchanges {
				messages = append(messages, providers.Message{Role: e.Role, Content: e.Content})
			}
		}
	}
	messages = append(messages, providers.Message{Role: "user", Content: msg.Content})

	resp, err := r.ai.Chat(ctx, providers.ChatRequest{
		Messages: messages,
		Options:  map[string]interface{}{"temperature": 0.3, "response_format": "json"},
	})
	if err != nil {
		return nil, 0, "", err
	}

	invocations, confidence, reasoning, perr := parseRouterResponse(resp.Content)
	if perr != nil {
		return nil, 0, perr.Error(), nil
	}
	return invocations, confidence, reasoning, nil
}

func (r *Router) buildSystemPrompt(enabledToolIDs []string) string {
	var b strings.Builder
	b.WriteString("You are a tool-routing assistant. Choose zero or more tools to satisfy the user's request.\n")
	b.WriteString("Available tools:\n")
	for _, id := range enabledToolIDs {
		if t, ok := r.registry.Get(id); ok {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		}
	}
	b.WriteString("Respond with JSON only: either {\"tool\":...,\"parameters\":{...},\"confidence\":0-1,\"reasoning\":\"...\"} ")
	b.WriteString("or {\"tools\":[{\"tool\":...,\"parameters\":{...}}],\"confidence\":0-1,\"reasoning\":\"...\"}.")
	return b.String()
}

var codeFencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

type singleToolResponse struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
	Confidence float64                `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
}

type multiToolResponse struct {
	Tools      []ToolInvocation `json:"tools"`
	Confidence float64          `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
}

// parseRouterResponse accepts either single-tool or multi-tool shapes,
// stripping a surrounding code fence first.
func parseRouterResponse(raw string) ([]ToolInvocation, float64, string, error) {
	trimmed := strings.TrimSpace(raw)
	if m := codeFencePattern.FindStringSubmatch(trimmed); m != nil {
		trimmed = strings.TrimSpace(m[1])
	}

	var multi multiToolResponse
	if err := json.Unmarshal([]byte(trimmed), &multi); err == nil && len(multi.Tools) > 0 {
		return multi.Tools, multi.Confidence, multi.Reasoning, nil
	}

	var single singleToolResponse
	if err := json.Unmarshal([]byte(trimmed), &single); err == nil && single.Tool != "" {
		return []ToolInvocation{{Tool: single.Tool, Parameters: single.Parameters}}, single.Confidence, single.Reasoning, nil
	}

	return nil, 0, "", fmt.Errorf("router: could not parse tool-selection response")
}

func (r *Router) clarify(ctx context.Context, msg *message.Unified, reason string) *pipeline.Result {
	clarifyInvocation := ToolInvocation{Tool: "clarify", Parameters: map[string]interface{}{"question": "Could you clarify what you'd like me to do?"}}
	return &pipeline.Result{
		Type:     pipeline.ResultClarification,
		Response: clarifyInvocation.Parameters["question"].(string),
		Metadata: map[string]interface{}{"reason": reason},
	}
}

// ecommerceURLPattern matches marketplace domains that should be routed to
// a JS-rendering fetch variant instead of the plain fetch tool (step 6).
var ecommerceURLPattern = regexp.MustCompile(`(?i)(shopee|lazada|amazon|tokopedia|alibaba|taobao|ebay|zalora)\.`)
var bareURLPattern = regexp.MustCompile(`https?://\S+`)

func applyAutoSwitches(invocations []ToolInvocation, content string) []ToolInvocation {
	isEcommerce := ecommerceURLPattern.MatchString(content)
	bareURL := bareURLPattern.FindString(content)

	for i := range invocations {
		if isEcommerce && invocations[i].Tool == "web_fetch" {
			invocations[i].Tool = "web_fetch_js"
		}
		if bareURL != "" && isChatTool(invocations[i].Tool) {
			if invocations[i].Parameters == nil {
				invocations[i].Parameters = map[string]interface{}{}
			}
			invocations[i].Parameters["prefetch_url"] = bareURL
		}
	}
	return invocations
}

func isChatTool(name string) bool {
	return name == "message" || name == "sendWhatsApp" || name == "sendTelegram" || name == "sendEmail"
}

func classifyOnlyResult(invocations []ToolInvocation, confidence float64, reasoning string) *pipeline.Result {
	records := make([]map[string]interface{}, 0, len(invocations))
	for _, inv := range invocations {
		records = append(records, map[string]interface{}{
			"tool":  inv.Tool,
			"error": "Not executed (classify_only mode)",
		})
	}
	return &pipeline.Result{
		Type: pipeline.ResultNoAction,
		Metadata: map[string]interface{}{
			"classify_only": true,
			"confidence":    confidence,
			"reasoning":     reasoning,
			"tools":         records,
		},
	}
}

func toolNames(invocations []ToolInvocation) []string {
	names := make([]string, len(invocations))
	for i, inv := range invocations {
		names[i] = inv.Tool
	}
	return names
}

var fileSummaryTools = map[string]bool{
	"readPdf": true, "readExcel": true, "readDocx": true, "readText": true, "readCsv": true,
}

// execute runs steps 7-12: access control, placeholder resolution,
// sequential execution, file-tool summarization, and formatting.
func (r *Router) execute(ctx context.Context, invocations []ToolInvocation, settings UserToolSettings, rc *message.RequestContext) (string, error) {
	enabled := make(map[string]bool, len(settings.EnabledToolIDs))
	for _, id := range settings.EnabledToolIDs {
		enabled[id] = true
	}

	values := tools.PlaceholderValues{}
	var blockedNotices []string
	var lastResult *tools.Result
	var lastTool string

	for _, inv := range invocations {
		if !enabled[inv.Tool] {
			blockedNotices = append(blockedNotices, fmt.Sprintf("%s: not in enabled tool set", inv.Tool))
			continue
		}
		if isChatTool(inv.Tool) && settings.AutoSendMode == "restricted" {
			blockedNotices = append(blockedNotices, fmt.Sprintf("%s: blocked by auto-send restriction", inv.Tool))
			continue
		}

		args := tools.ResolvePlaceholders(inv.Parameters, values)
		result := r.registry.Invoke(ctx, providers.ToolCall{Name: inv.Tool, Arguments: args})
		lastResult = result
		lastTool = inv.Tool

		if result.IsError {
			slog.Warn("router: tool call failed, stopping chain", "tool", inv.Tool, "error", result.ForLLM)
			break
		}

		values.PreviousOutput = result.ForLLM
		switch {
		case strings.Contains(strings.ToLower(inv.Tool), "search"):
			values.SearchResults = result.ForLLM
		case strings.Contains(strings.ToLower(inv.Tool), "fetch"), strings.Contains(strings.ToLower(inv.Tool), "scrape"):
			values.ScrapedData = result.ForLLM
		}
	}

	summary := ""
	if lastResult != nil && !lastResult.IsError && fileSummaryTools[lastTool] {
		if s, err := r.summarize(ctx, lastResult.ForLLM); err == nil {
			summary = s
		} else {
			slog.Warn("router: file-tool summarization failed", "error", err)
		}
	}

	formatted := formatResponse(lastResult, summary)
	for _, notice := range blockedNotices {
		formatted += "\n(blocked: " + notice + ")"
	}
	return formatted, nil
}

func (r *Router) summarize(ctx context.Context, content string) (string, error) {
	resp, err := r.ai.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: fmt.Sprintf("Summarize the following in at most %d words, plain text.", summaryMaxWords)},
			{Role: "user", Content: content},
		},
		Options: map[string]interface{}{"temperature": 0.3, "max_tokens": 1500},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// formatResponse picks the first applicable presentation per step 11:
// summary, then a well-known field, then a tabular preview for row-shaped
// JSON, then pretty-printed JSON.
func formatResponse(result *tools.Result, summary string) string {
	if summary != "" {
		return summary
	}
	if result == nil {
		return ""
	}
	if result.ForUser != "" {
		return result.ForUser
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(result.ForLLM), &rows); err == nil && len(rows) > 0 {
		return renderTable(rows)
	}

	var generic interface{}
	if err := json.Unmarshal([]byte(result.ForLLM), &generic); err == nil {
		if pretty, err := json.MarshalIndent(generic, "", "  "); err == nil {
			return string(pretty)
		}
	}

	return result.ForLLM
}
