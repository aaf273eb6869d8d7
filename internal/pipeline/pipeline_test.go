package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/superbrain/gateway/internal/classify"
	"github.com/superbrain/gateway/internal/gating"
	"github.com/superbrain/gateway/internal/message"
	"github.com/superbrain/gateway/internal/providers"
)

type fakeGate struct {
	allow  bool
	reason string
}

func (g *fakeGate) Name() string { return "fake" }
func (g *fakeGate) Evaluate(context.Context, *message.Unified, *message.RequestContext) (bool, string, error) {
	return g.allow, g.reason, nil
}

type fakeRouter struct {
	result *Result
	err    error
	calls  int
}

func (r *fakeRouter) Route(ctx context.Context, msg *message.Unified, userID, sessionID string, rc *message.RequestContext) (*Result, error) {
	r.calls++
	return r.result, r.err
}

type fakeAI struct {
	content string
	err     error
}

func (a *fakeAI) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &providers.ChatResponse{Content: a.content}, nil
}

type fakeIngestion struct {
	mu       sync.Mutex
	ingested []string
	done     chan struct{}
}

func (f *fakeIngestion) Ingest(ctx context.Context, msg *message.Unified) error {
	f.mu.Lock()
	f.ingested = append(f.ingested, msg.ID)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return nil
}

type fakeBuiltins struct{}

func (fakeBuiltins) Help(ctx context.Context, rc *message.RequestContext) (string, error) {
	return "help text", nil
}
func (fakeBuiltins) Status(ctx context.Context, rc *message.RequestContext) (string, error) {
	return "status text", nil
}
func (fakeBuiltins) ListFlows(ctx context.Context, rc *message.RequestContext) (string, error) {
	return "flows text", nil
}
func (fakeBuiltins) ListAgents(ctx context.Context, rc *message.RequestContext) (string, error) {
	return "agents text", nil
}

func newTestPipeline(gates []gating.Gate, router Router, ai AIClient, ingestion IngestionSink, builtins BuiltinCommands) *Pipeline {
	var gateChain *gating.Chain
	if gates != nil {
		gateChain = gating.NewChain(gates, time.Second)
	}
	return New(gateChain, classify.New(), nil, nil, nil, router, nil, nil, ai, ingestion, builtins)
}

func testMsg(id, content string) *message.Unified {
	return &message.Unified{ID: id, Platform: "telegram", From: "user-1", Content: content}
}

func TestPipeline_DuplicateMessageIsSkipped(t *testing.T) {
	p := newTestPipeline(nil, nil, nil, nil, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	msg := testMsg("dup-1", "hello?")
	first, err := p.Process(context.Background(), msg, rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Type == ResultNoAction && first.Metadata["reason"] == "duplicate" {
		t.Fatal("expected the first sighting to not be flagged a duplicate")
	}

	second, err := p.Process(context.Background(), testMsg("dup-1", "hello?"), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Type != ResultNoAction || second.Metadata["reason"] != "duplicate" {
		t.Errorf("expected duplicate NO_ACTION, got %+v", second)
	}
}

func TestPipeline_GatedMessageIsBlocked(t *testing.T) {
	p := newTestPipeline([]gating.Gate{&fakeGate{allow: false, reason: "muted"}}, nil, nil, nil, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m1", "hello?"), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != ResultNoAction {
		t.Fatalf("expected NO_ACTION, got %+v", res)
	}
	if reason, _ := res.Metadata["reason"].(string); reason == "" {
		t.Error("expected a gating reason to be recorded")
	}
}

func TestPipeline_SkipIntentOnEmptyContent(t *testing.T) {
	p := newTestPipeline(nil, nil, nil, nil, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m2", ""), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != ResultNoAction {
		t.Errorf("expected NO_ACTION for empty content, got %+v", res)
	}
}

func TestPipeline_PassiveIntentTriggersAsyncIngestion(t *testing.T) {
	done := make(chan struct{}, 1)
	ingestion := &fakeIngestion{done: done}
	p := newTestPipeline(nil, nil, nil, ingestion, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m3", "thanks a lot"), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != ResultPassiveIngested {
		t.Fatalf("expected PASSIVE_INGESTED, got %+v", res)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async ingestion")
	}
}

func TestPipeline_RouterResultIsReturned(t *testing.T) {
	router := &fakeRouter{result: &Result{Type: ResultToolExecuted, Response: "done"}}
	p := newTestPipeline(nil, router, nil, nil, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m4", "please do the thing"), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != ResultToolExecuted || res.Response != "done" {
		t.Errorf("expected router result to pass through, got %+v", res)
	}
	if router.calls != 1 {
		t.Errorf("expected router to be called once, got %d", router.calls)
	}
}

func TestPipeline_RouterNoActionFallsThroughToAI(t *testing.T) {
	router := &fakeRouter{result: &Result{Type: ResultNoAction}}
	ai := &fakeAI{content: "an AI reply"}
	p := newTestPipeline(nil, router, ai, nil, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m5", "please help"), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != ResultAIResponse || res.Response != "an AI reply" {
		t.Errorf("expected AI fallback response, got %+v", res)
	}
}

func TestPipeline_NoAIConfiguredReturnsNoAction(t *testing.T) {
	p := newTestPipeline(nil, nil, nil, nil, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m6", "please help"), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != ResultNoAction || res.Metadata["reason"] != "no_ai_configured" {
		t.Errorf("expected no_ai_configured NO_ACTION, got %+v", res)
	}
}

func TestPipeline_AIErrorReturnsErrorResult(t *testing.T) {
	ai := &fakeAI{err: errors.New("provider down")}
	p := newTestPipeline(nil, nil, ai, nil, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m7", "please help"), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != ResultError {
		t.Errorf("expected ERROR result, got %+v", res)
	}
}

func TestPipeline_SilentReplyFromAI(t *testing.T) {
	ai := &fakeAI{content: "  <<SILENT>>  "}
	p := newTestPipeline(nil, nil, ai, nil, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m8", "please help"), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != ResultSilent {
		t.Errorf("expected SILENT result, got %+v", res)
	}
}

func TestPipeline_BuiltinCommandShortCircuits(t *testing.T) {
	router := &fakeRouter{result: &Result{Type: ResultToolExecuted}}
	p := newTestPipeline(nil, router, nil, nil, fakeBuiltins{})
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m9", "/status"), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != ResultAIResponse || res.Response != "status text" {
		t.Errorf("expected builtin status response, got %+v", res)
	}
	if router.calls != 0 {
		t.Error("expected the router to be bypassed by a builtin command")
	}
}

func TestPipeline_RecoversFromPanic(t *testing.T) {
	p := newTestPipeline(nil, panicRouter{}, nil, nil, nil)
	rc := &message.RequestContext{UserID: "user-1"}

	res, err := p.Process(context.Background(), testMsg("m10", "please help"), rc)
	if err != nil {
		t.Fatalf("Process should never return an error on panic recovery, got %v", err)
	}
	if res.Type != ResultError {
		t.Errorf("expected ERROR result after panic recovery, got %+v", res)
	}
}

type panicRouter struct{}

func (panicRouter) Route(ctx context.Context, msg *message.Unified, userID, sessionID string, rc *message.RequestContext) (*Result, error) {
	panic("boom")
}
