package router

import (
	"context"
	"strings"
	"testing"

	"github.com/superbrain/gateway/internal/message"
	"github.com/superbrain/gateway/internal/pipeline"
	"github.com/superbrain/gateway/internal/providers"
	"github.com/superbrain/gateway/internal/tools"
)

type fakeTool struct {
	name   string
	result *tools.Result
	calls  []map[string]interface{}
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool " + f.name }
func (f *fakeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{}
}
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	f.calls = append(f.calls, args)
	return f.result
}

func newRegistry(ts ...*fakeTool) *tools.Registry {
	r := tools.NewRegistry()
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

type fakeSettings struct {
	settings UserToolSettings
	err      error
}

func (f *fakeSettings) LoadToolSettings(ctx context.Context, userID string) (UserToolSettings, error) {
	return f.settings, f.err
}

type fakeAI struct {
	content string
	err     error
	calls   int
}

func (f *fakeAI) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &providers.ChatResponse{Content: f.content}, nil
}

func TestParseRouterResponse_SingleTool(t *testing.T) {
	raw := `{"tool":"web_search","parameters":{"query":"go"},"confidence":0.9,"reasoning":"user asked to search"}`
	invocations, confidence, reasoning, err := parseRouterResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invocations) != 1 || invocations[0].Tool != "web_search" {
		t.Fatalf("got %+v", invocations)
	}
	if confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", confidence)
	}
	if reasoning != "user asked to search" {
		t.Errorf("reasoning = %q", reasoning)
	}
}

func TestParseRouterResponse_MultiTool(t *testing.T) {
	raw := `{"tools":[{"tool":"read_file","parameters":{"path":"a.txt"}},{"tool":"exec","parameters":{}}],"confidence":0.8,"reasoning":"chain"}`
	invocations, confidence, _, err := parseRouterResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invocations) != 2 {
		t.Fatalf("got %d invocations, want 2", len(invocations))
	}
	if invocations[0].Tool != "read_file" || invocations[1].Tool != "exec" {
		t.Errorf("got %+v", invocations)
	}
	if confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", confidence)
	}
}

func TestParseRouterResponse_StripsCodeFence(t *testing.T) {
	raw := "```json\n{\"tool\":\"exec\",\"parameters\":{},\"confidence\":0.5,\"reasoning\":\"r\"}\n```"
	invocations, _, _, err := parseRouterResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invocations) != 1 || invocations[0].Tool != "exec" {
		t.Fatalf("got %+v", invocations)
	}
}

func TestParseRouterResponse_Unparseable(t *testing.T) {
	_, _, _, err := parseRouterResponse("not json at all")
	if err == nil {
		t.Fatal("expected an error for unparseable response")
	}
}

func TestParseRouterResponse_EmptyToolsIsUnparseable(t *testing.T) {
	_, _, _, err := parseRouterResponse(`{"tools":[],"confidence":0.9}`)
	if err == nil {
		t.Fatal("expected an error when neither shape has a usable tool")
	}
}

func TestApplyAutoSwitches_EcommerceURLSwitchesFetchVariant(t *testing.T) {
	invocations := []ToolInvocation{{Tool: "web_fetch", Parameters: map[string]interface{}{}}}
	got := applyAutoSwitches(invocations, "check this out https://shopee.sg/item/123")
	if got[0].Tool != "web_fetch_js" {
		t.Errorf("Tool = %q, want web_fetch_js", got[0].Tool)
	}
}

func TestApplyAutoSwitches_NonEcommerceLeavesFetchAlone(t *testing.T) {
	invocations := []ToolInvocation{{Tool: "web_fetch", Parameters: map[string]interface{}{}}}
	got := applyAutoSwitches(invocations, "check this out https://example.com/page")
	if got[0].Tool != "web_fetch" {
		t.Errorf("Tool = %q, want unchanged web_fetch", got[0].Tool)
	}
}

func TestApplyAutoSwitches_BareURLInjectedIntoChatTool(t *testing.T) {
	invocations := []ToolInvocation{{Tool: "sendTelegram", Parameters: nil}}
	got := applyAutoSwitches(invocations, "send them https://example.com/article please")
	if got[0].Parameters["prefetch_url"] != "https://example.com/article" {
		t.Errorf("prefetch_url = %v", got[0].Parameters["prefetch_url"])
	}
}

func TestApplyAutoSwitches_NoURLLeavesParametersUntouched(t *testing.T) {
	invocations := []ToolInvocation{{Tool: "sendTelegram", Parameters: map[string]interface{}{"text": "hi"}}}
	got := applyAutoSwitches(invocations, "just say hi")
	if _, ok := got[0].Parameters["prefetch_url"]; ok {
		t.Error("did not expect prefetch_url to be injected")
	}
}

func TestIsChatTool(t *testing.T) {
	for _, name := range []string{"message", "sendWhatsApp", "sendTelegram", "sendEmail"} {
		if !isChatTool(name) {
			t.Errorf("isChatTool(%q) = false, want true", name)
		}
	}
	if isChatTool("exec") {
		t.Error("isChatTool(\"exec\") = true, want false")
	}
}

func TestToolNames(t *testing.T) {
	got := toolNames([]ToolInvocation{{Tool: "a"}, {Tool: "b"}})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v", got)
	}
}

func TestClassifyOnlyResult(t *testing.T) {
	res := classifyOnlyResult([]ToolInvocation{{Tool: "exec"}}, 0.95, "because")
	if res.Type != pipeline.ResultNoAction {
		t.Errorf("Type = %v, want ResultNoAction", res.Type)
	}
	if res.Metadata["classify_only"] != true {
		t.Error("expected classify_only metadata to be true")
	}
	records, ok := res.Metadata["tools"].([]map[string]interface{})
	if !ok || len(records) != 1 || records[0]["tool"] != "exec" {
		t.Errorf("got %+v", res.Metadata["tools"])
	}
}

func TestRouteFingerprint_OrderIndependentOfToolIDs(t *testing.T) {
	a := routeFingerprint("Hello World", []string{"b", "a"})
	b := routeFingerprint("hello   world", []string{"a", "b"})
	if a != b {
		t.Error("expected normalized content and sorted tool ids to produce the same fingerprint")
	}
}

func TestRouteFingerprint_DifferentContentDiffers(t *testing.T) {
	a := routeFingerprint("hello", nil)
	b := routeFingerprint("goodbye", nil)
	if a == b {
		t.Error("expected different content to produce different fingerprints")
	}
}

func TestFormatResponse_SummaryWins(t *testing.T) {
	got := formatResponse(&tools.Result{ForLLM: `{"a":1}`}, "a short summary")
	if got != "a short summary" {
		t.Errorf("got %q", got)
	}
}

func TestFormatResponse_NilResultNoSummary(t *testing.T) {
	if got := formatResponse(nil, ""); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestFormatResponse_ForUserWins(t *testing.T) {
	got := formatResponse(&tools.Result{ForLLM: "raw", ForUser: "nice for user"}, "")
	if got != "nice for user" {
		t.Errorf("got %q", got)
	}
}

func TestFormatResponse_RowShapedJSONRendersTable(t *testing.T) {
	got := formatResponse(&tools.Result{ForLLM: `[{"name":"a"},{"name":"bb"}]`}, "")
	if !strings.Contains(got, "name") || !strings.Contains(got, "a") || !strings.Contains(got, "bb") {
		t.Errorf("got %q, expected a rendered table", got)
	}
}

func TestFormatResponse_GenericJSONPrettyPrinted(t *testing.T) {
	got := formatResponse(&tools.Result{ForLLM: `{"ok":true}`}, "")
	if !strings.Contains(got, "\"ok\": true") {
		t.Errorf("got %q, expected pretty-printed JSON", got)
	}
}

func TestFormatResponse_PlainTextFallsThrough(t *testing.T) {
	got := formatResponse(&tools.Result{ForLLM: "just plain text"}, "")
	if got != "just plain text" {
		t.Errorf("got %q", got)
	}
}

func TestRouter_Route_DisabledModeSkips(t *testing.T) {
	r := New(&fakeSettings{settings: UserToolSettings{AIRouterMode: "disabled"}}, nil, newRegistry(), &fakeAI{})
	res, err := r.Route(context.Background(), &message.Unified{Content: "hi"}, "u1", "s1", &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != pipeline.ResultNoAction {
		t.Errorf("Type = %v, want ResultNoAction", res.Type)
	}
	if res.Metadata["skipped"] != true {
		t.Error("expected skipped metadata")
	}
}

func TestRouter_Route_LowConfidenceClarifies(t *testing.T) {
	ai := &fakeAI{content: `{"tool":"exec","parameters":{},"confidence":0.1,"reasoning":"unsure"}`}
	r := New(&fakeSettings{settings: UserToolSettings{EnabledToolIDs: []string{"exec"}}}, nil, newRegistry(), ai)
	res, err := r.Route(context.Background(), &message.Unified{Content: "do something vague"}, "u1", "s1", &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != pipeline.ResultClarification {
		t.Errorf("Type = %v, want ResultClarification", res.Type)
	}
}

func TestRouter_Route_ExecutesToolAboveThreshold(t *testing.T) {
	execTool := &fakeTool{name: "exec", result: tools.NewResult("done")}
	ai := &fakeAI{content: `{"tool":"exec","parameters":{},"confidence":0.95,"reasoning":"clear"}`}
	r := New(&fakeSettings{settings: UserToolSettings{EnabledToolIDs: []string{"exec"}}}, nil, newRegistry(execTool), ai)
	res, err := r.Route(context.Background(), &message.Unified{Content: "run it"}, "u1", "s1", &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != pipeline.ResultToolExecuted {
		t.Errorf("Type = %v, want ResultToolExecuted", res.Type)
	}
	if res.Response != "done" {
		t.Errorf("Response = %q, want done", res.Response)
	}
	if len(execTool.calls) != 1 {
		t.Errorf("expected exec tool to be invoked once, got %d", len(execTool.calls))
	}
}

func TestRouter_Route_ClassifyOnlySkipsExecution(t *testing.T) {
	execTool := &fakeTool{name: "exec", result: tools.NewResult("done")}
	ai := &fakeAI{content: `{"tool":"exec","parameters":{},"confidence":0.95,"reasoning":"clear"}`}
	r := New(&fakeSettings{settings: UserToolSettings{EnabledToolIDs: []string{"exec"}, ClassifyOnly: true}}, nil, newRegistry(execTool), ai)
	res, err := r.Route(context.Background(), &message.Unified{Content: "run it"}, "u1", "s1", &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Metadata["classify_only"] != true {
		t.Error("expected classify_only result")
	}
	if len(execTool.calls) != 0 {
		t.Error("expected the tool not to actually run in classify_only mode")
	}
}

func TestRouter_Route_CachesHighConfidenceResult(t *testing.T) {
	execTool := &fakeTool{name: "exec", result: tools.NewResult("done")}
	ai := &fakeAI{content: `{"tool":"exec","parameters":{},"confidence":0.95,"reasoning":"clear"}`}
	r := New(&fakeSettings{settings: UserToolSettings{EnabledToolIDs: []string{"exec"}}}, nil, newRegistry(execTool), ai)

	ctx := context.Background()
	msg := &message.Unified{Content: "run it"}
	if _, err := r.Route(ctx, msg, "u1", "s1", &message.RequestContext{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Route(ctx, msg, "u1", "s1", &message.RequestContext{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ai.calls != 1 {
		t.Errorf("expected the second identical route to hit the cache, AI was called %d times", ai.calls)
	}
	if len(execTool.calls) != 2 {
		t.Errorf("expected the tool to run both times even though classification was cached, got %d calls", len(execTool.calls))
	}
}

func TestRouter_Route_BlockedToolNotInEnabledSet(t *testing.T) {
	execTool := &fakeTool{name: "exec", result: tools.NewResult("done")}
	ai := &fakeAI{content: `{"tool":"exec","parameters":{},"confidence":0.95,"reasoning":"clear"}`}
	r := New(&fakeSettings{settings: UserToolSettings{EnabledToolIDs: []string{}}}, nil, newRegistry(execTool), ai)
	res, err := r.Route(context.Background(), &message.Unified{Content: "run it"}, "u1", "s1", &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Response, "not in enabled tool set") {
		t.Errorf("Response = %q, want a blocked notice", res.Response)
	}
	if len(execTool.calls) != 0 {
		t.Error("expected the blocked tool never to run")
	}
}

func TestRouter_Route_RestrictedAutoSendBlocksChatTools(t *testing.T) {
	sendTool := &fakeTool{name: "sendTelegram", result: tools.NewResult("sent")}
	ai := &fakeAI{content: `{"tool":"sendTelegram","parameters":{},"confidence":0.95,"reasoning":"clear"}`}
	r := New(&fakeSettings{settings: UserToolSettings{EnabledToolIDs: []string{"sendTelegram"}, AutoSendMode: "restricted"}}, nil, newRegistry(sendTool), ai)
	res, err := r.Route(context.Background(), &message.Unified{Content: "tell them"}, "u1", "s1", &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Response, "blocked by auto-send restriction") {
		t.Errorf("Response = %q", res.Response)
	}
	if len(sendTool.calls) != 0 {
		t.Error("expected the chat tool never to run under restricted auto-send")
	}
}

func TestRouter_Route_RecordsHistory(t *testing.T) {
	execTool := &fakeTool{name: "exec", result: tools.NewResult("done")}
	ai := &fakeAI{content: `{"tool":"exec","parameters":{},"confidence":0.95,"reasoning":"clear"}`}
	h := &memoryHistory{}
	r := New(&fakeSettings{settings: UserToolSettings{EnabledToolIDs: []string{"exec"}}}, h, newRegistry(execTool), ai)
	_, err := r.Route(context.Background(), &message.Unified{Content: "run it"}, "u1", "s1", &message.RequestContext{ConversationID: "c1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.entries) != 2 {
		t.Fatalf("expected 2 history entries (user + assistant), got %d", len(h.entries))
	}
	if h.entries[0].Role != "user" || h.entries[1].Role != "assistant" {
		t.Errorf("got %+v", h.entries)
	}
}

type memoryHistory struct {
	entries []Exchange
}

func (m *memoryHistory) Recent(ctx context.Context, conversationID string, n int) ([]Exchange, error) {
	return nil, nil
}

func (m *memoryHistory) Append(ctx context.Context, conversationID string, e Exchange) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestRouter_Route_SettingsLoadErrorPropagates(t *testing.T) {
	r := New(&fakeSettings{err: context.DeadlineExceeded}, nil, newRegistry(), &fakeAI{})
	_, err := r.Route(context.Background(), &message.Unified{Content: "hi"}, "u1", "s1", &message.RequestContext{})
	if err == nil {
		t.Fatal("expected an error when settings fail to load")
	}
}
