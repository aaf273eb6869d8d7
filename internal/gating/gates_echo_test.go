package gating

import (
	"context"
	"testing"

	"github.com/superbrain/gateway/internal/kv"
	"github.com/superbrain/gateway/internal/message"
)

func TestEchoGate_FromMe(t *testing.T) {
	g := NewEchoGate(kv.NewMemoryStore(10))
	msg := &message.Unified{Platform: "wa", From: "+1@c.us", FromMe: true, Content: "hello"}

	allow, reason, err := g.Evaluate(context.Background(), msg, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allow {
		t.Fatal("expected a fromMe message to be denied")
	}
	if reason != "fromMe" {
		t.Errorf("reason = %q, want %q", reason, "fromMe")
	}
}

func TestEchoGate_BotIdentifier(t *testing.T) {
	store := kv.NewMemoryStore(10)
	store.SetBotIdentifier("telegram", "bot-1", true)
	g := NewEchoGate(store)

	allow, reason, err := g.Evaluate(context.Background(), &message.Unified{Platform: "telegram", From: "bot-1"}, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allow {
		t.Fatal("expected a message from a registered bot identifier to be denied")
	}
	if reason == "" {
		t.Error("expected a non-empty deny reason")
	}
}

func TestEchoGate_RegularSenderPasses(t *testing.T) {
	g := NewEchoGate(kv.NewMemoryStore(10))
	allow, _, err := g.Evaluate(context.Background(), &message.Unified{Platform: "telegram", From: "user-1"}, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allow {
		t.Error("expected a regular sender to pass")
	}
}

func TestGroupAllowlistGate_DirectMessagePasses(t *testing.T) {
	g := NewGroupAllowlistGate(kv.NewMemoryStore(10))
	allow, _, err := g.Evaluate(context.Background(), &message.Unified{IsGroup: false}, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allow {
		t.Error("expected a direct message to pass regardless of the allowlist")
	}
}

func TestGroupAllowlistGate_UnlistedGroupDenied(t *testing.T) {
	g := NewGroupAllowlistGate(kv.NewMemoryStore(10))
	msg := &message.Unified{IsGroup: true, Platform: "wa", GroupID: "g1"}
	allow, reason, err := g.Evaluate(context.Background(), msg, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allow {
		t.Fatal("expected an unlisted group to be denied")
	}
	if reason == "" {
		t.Error("expected a non-empty deny reason")
	}
}

func TestGroupAllowlistGate_ListedGroupAllowed(t *testing.T) {
	store := kv.NewMemoryStore(10)
	store.SetGroupAllowed("wa", "g1", true)
	g := NewGroupAllowlistGate(store)
	msg := &message.Unified{IsGroup: true, Platform: "wa", GroupID: "g1"}

	allow, _, err := g.Evaluate(context.Background(), msg, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allow {
		t.Error("expected an allowlisted group to pass")
	}
}

func TestMentionGate_DirectMessagePasses(t *testing.T) {
	g := NewMentionGate(kv.NewMemoryStore(10))
	allow, _, err := g.Evaluate(context.Background(), &message.Unified{IsGroup: false, Content: "no mention here"}, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allow {
		t.Error("expected a direct message to pass regardless of mentions")
	}
}

func TestMentionGate_GroupWithoutMentionDenied(t *testing.T) {
	store := kv.NewMemoryStore(10)
	store.SetBotNames([]string{"Assistant"})
	g := NewMentionGate(store)
	msg := &message.Unified{IsGroup: true, Content: "what's for lunch"}

	allow, reason, err := g.Evaluate(context.Background(), msg, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allow {
		t.Fatal("expected a group message with no mention or reply to be denied")
	}
	if reason == "" {
		t.Error("expected a non-empty deny reason")
	}
}

func TestMentionGate_GroupWithNameMentionAllowed(t *testing.T) {
	store := kv.NewMemoryStore(10)
	store.SetBotNames([]string{"Assistant"})
	g := NewMentionGate(store)
	msg := &message.Unified{IsGroup: true, Content: "hey @assistant can you help"}

	allow, _, err := g.Evaluate(context.Background(), msg, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allow {
		t.Error("expected a group message mentioning the bot by name to pass")
	}
}

func TestMentionGate_GroupReplyToBotAllowed(t *testing.T) {
	store := kv.NewMemoryStore(10)
	store.SetBotNames([]string{"Assistant"})
	g := NewMentionGate(store)
	msg := &message.Unified{IsGroup: true, Content: "sounds good", IsReplyToBot: true}

	allow, _, err := g.Evaluate(context.Background(), msg, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allow {
		t.Error("expected a reply to the bot to pass even without naming it")
	}
}

func TestContentGate_EmptyTextDenied(t *testing.T) {
	g := NewContentGate(0, false)
	allow, reason, err := g.Evaluate(context.Background(), &message.Unified{Content: "   "}, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allow {
		t.Fatal("expected empty text to be denied")
	}
	if reason == "" {
		t.Error("expected a non-empty deny reason")
	}
}

func TestContentGate_ShorterThanMinLengthDenied(t *testing.T) {
	g := NewContentGate(5, false)
	allow, _, err := g.Evaluate(context.Background(), &message.Unified{Content: "hi"}, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allow {
		t.Error("expected text shorter than min_length to be denied")
	}
}

func TestContentGate_MeetsMinLengthPasses(t *testing.T) {
	g := NewContentGate(5, false)
	allow, _, err := g.Evaluate(context.Background(), &message.Unified{Content: "hello there"}, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allow {
		t.Error("expected text at least min_length to pass")
	}
}

func TestContentGate_MediaWithoutCaptionDeniedWhenConfigured(t *testing.T) {
	g := NewContentGate(0, true)
	msg := &message.Unified{ContentType: message.ContentImage, Content: ""}
	allow, reason, err := g.Evaluate(context.Background(), msg, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allow {
		t.Fatal("expected captionless media to be denied when block_media_only is set")
	}
	if reason == "" {
		t.Error("expected a non-empty deny reason")
	}
}

func TestContentGate_MediaWithoutCaptionAllowedByDefault(t *testing.T) {
	g := NewContentGate(0, false)
	msg := &message.Unified{ContentType: message.ContentImage, Content: ""}
	allow, _, err := g.Evaluate(context.Background(), msg, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allow {
		t.Error("expected captionless media to pass when block_media_only is not set")
	}
}

func TestContentGate_MediaWithCaptionAlwaysPasses(t *testing.T) {
	g := NewContentGate(0, true)
	msg := &message.Unified{ContentType: message.ContentImage, Content: "look at this"}
	allow, _, err := g.Evaluate(context.Background(), msg, &message.RequestContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allow {
		t.Error("expected captioned media to pass")
	}
}

// TestChain_EchoScenario verifies a fromMe message produces a gate decision
// that composes to reason "gated:echo:fromMe".
func TestChain_EchoScenario(t *testing.T) {
	chain := NewChain([]Gate{NewEchoGate(kv.NewMemoryStore(10))}, 0)
	msg := &message.Unified{Platform: "wa", From: "+1@c.us", FromMe: true, Content: "hello"}

	decision := chain.Evaluate(context.Background(), msg, &message.RequestContext{})
	if decision.Allow {
		t.Fatal("expected the echo gate to deny a fromMe message")
	}
	if got := "gated:" + decision.Gate + ":" + decision.Reason; got != "gated:echo:fromMe" {
		t.Errorf("got %q, want %q", got, "gated:echo:fromMe")
	}
}
