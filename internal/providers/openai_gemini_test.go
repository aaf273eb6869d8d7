package providers

import "testing"

func TestCollapseToolCallsWithoutSig_NoToolCallsIsNoop(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	got := collapseToolCallsWithoutSig(msgs)
	if len(got) != 2 {
		t.Fatalf("expected unchanged length 2, got %d", len(got))
	}
}

func TestCollapseToolCallsWithoutSig_AllSignedIsNoop(t *testing.T) {
	msgs := []Message{
		{Role: "assistant", ToolCalls: []ToolCall{
			{ID: "tc-1", Name: "search", Metadata: map[string]string{"thought_signature": "sig"}},
		}},
		{Role: "tool", ToolCallID: "tc-1", Content: "results"},
	}
	got := collapseToolCallsWithoutSig(msgs)
	if len(got) != 2 {
		t.Fatalf("expected unchanged length 2, got %d: %+v", len(got), got)
	}
}

func TestCollapseToolCallsWithoutSig_DropsUnsignedCallAndItsResult(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "do it"},
		{Role: "assistant", ToolCalls: []ToolCall{
			{ID: "tc-1", Name: "search"}, // no thought_signature
		}},
		{Role: "tool", ToolCallID: "tc-1", Content: "stale results"},
		{Role: "assistant", Content: "here you go"},
	}
	got := collapseToolCallsWithoutSig(msgs)

	for _, m := range got {
		if m.Role == "tool" {
			t.Errorf("expected the orphaned tool result to be dropped, got %+v", m)
		}
		if len(m.ToolCalls) > 0 {
			t.Errorf("expected tool_calls to be stripped, got %+v", m)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected [user, assistant-final], got %d messages: %+v", len(got), got)
	}
	if got[1].Content != "here you go" {
		t.Errorf("got[1].Content = %q, want %q", got[1].Content, "here you go")
	}
}

func TestCollapseToolCallsWithoutSig_PreservesAssistantTextWhenStrippingCalls(t *testing.T) {
	msgs := []Message{
		{Role: "assistant", Content: "let me check that", ToolCalls: []ToolCall{
			{ID: "tc-1", Name: "search"},
		}},
		{Role: "tool", ToolCallID: "tc-1", Content: "result"},
	}
	got := collapseToolCallsWithoutSig(msgs)
	if len(got) != 1 {
		t.Fatalf("expected only the stripped assistant message to survive, got %+v", got)
	}
	if got[0].Content != "let me check that" || len(got[0].ToolCalls) != 0 {
		t.Errorf("got %+v", got[0])
	}
}

func TestCollapseToolCallsWithoutSig_MultipleToolCallsInOneTurn(t *testing.T) {
	msgs := []Message{
		{Role: "assistant", ToolCalls: []ToolCall{
			{ID: "tc-1", Name: "search", Metadata: map[string]string{"thought_signature": "sig"}},
			{ID: "tc-2", Name: "fetch"}, // unsigned — collapses the whole turn
		}},
		{Role: "tool", ToolCallID: "tc-1", Content: "a"},
		{Role: "tool", ToolCallID: "tc-2", Content: "b"},
	}
	got := collapseToolCallsWithoutSig(msgs)
	if len(got) != 0 {
		t.Errorf("expected the whole turn to collapse since one call lacked a signature, got %+v", got)
	}
}
