package tools

import (
	"sort"
	"testing"

	"github.com/superbrain/gateway/internal/config"
	"github.com/superbrain/gateway/internal/providers"
)

func newPolicyRegistry() *Registry {
	r := NewRegistry()
	for _, name := range []string{
		"exec", "read_file", "write_file", "web_search", "web_fetch",
		"sessions_list", "sessions_send", "session_status",
		"sendWhatsApp", "sendTelegram", "sendEmail", "memory_search", "create_image",
	} {
		r.Register(&fakeTool{name: name, result: NewResult("ok")})
	}
	return r
}

func defNames(defs []providers.ToolDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Function.Name)
	}
	sort.Strings(names)
	return names
}

func TestPolicyEngine_FullProfileAllowsEverything(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{})

	got := defNames(pe.FilterTools(reg, "agent-1", "openai", nil, nil, false, false))
	if len(got) != len(reg.List()) {
		t.Errorf("expected all %d tools allowed under empty profile, got %d: %v", len(reg.List()), len(got), got)
	}
}

func TestPolicyEngine_ProfileRestrictsToMembers(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{Profile: "messaging"})

	got := defNames(pe.FilterTools(reg, "agent-1", "openai", nil, nil, false, false))
	for _, want := range []string{"sendWhatsApp", "sendTelegram", "sendEmail", "sessions_list", "sessions_send", "session_status"} {
		if !contains(got, want) {
			t.Errorf("expected messaging profile to allow %q, got %v", want, got)
		}
	}
	if contains(got, "exec") {
		t.Errorf("expected messaging profile to exclude exec, got %v", got)
	}
}

func TestPolicyEngine_ProviderProfileOverridesGlobal(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{
		Profile: "full",
		ByProvider: map[string]config.ProviderToolPolicy{
			"anthropic": {Profile: "minimal"},
		},
	})

	got := defNames(pe.FilterTools(reg, "agent-1", "anthropic", nil, nil, false, false))
	if len(got) != 1 || got[0] != "session_status" {
		t.Errorf("expected anthropic override to restrict to [session_status], got %v", got)
	}

	gotOpenAI := defNames(pe.FilterTools(reg, "agent-1", "openai", nil, nil, false, false))
	if len(gotOpenAI) != len(reg.List()) {
		t.Errorf("expected openai to keep the full profile, got %v", gotOpenAI)
	}
}

func TestPolicyEngine_GlobalAllowListIntersects(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{Allow: config.FlexibleStringSlice{"exec", "read_file"}})

	got := defNames(pe.FilterTools(reg, "agent-1", "openai", nil, nil, false, false))
	want := []string{"exec", "read_file"}
	if !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPolicyEngine_ProviderAllowOverride(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{
		Allow: config.FlexibleStringSlice{"exec", "read_file", "web_search"},
		ByProvider: map[string]config.ProviderToolPolicy{
			"anthropic": {Allow: config.FlexibleStringSlice{"exec"}},
		},
	})

	got := defNames(pe.FilterTools(reg, "agent-1", "anthropic", nil, nil, false, false))
	if !equalStrings(got, []string{"exec"}) {
		t.Errorf("got %v, want [exec]", got)
	}
}

func TestPolicyEngine_PerAgentAllow(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{})

	agentPolicy := &config.ToolPolicySpec{Allow: config.FlexibleStringSlice{"exec"}}
	got := defNames(pe.FilterTools(reg, "agent-1", "openai", agentPolicy, nil, false, false))
	if !equalStrings(got, []string{"exec"}) {
		t.Errorf("got %v, want [exec]", got)
	}
}

func TestPolicyEngine_PerAgentPerProviderAllow(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{})

	agentPolicy := &config.ToolPolicySpec{
		Allow: config.FlexibleStringSlice{"exec", "read_file"},
		ByProvider: map[string]config.ProviderToolPolicy{
			"anthropic": {Allow: config.FlexibleStringSlice{"read_file"}},
		},
	}
	got := defNames(pe.FilterTools(reg, "agent-1", "anthropic", agentPolicy, nil, false, false))
	if !equalStrings(got, []string{"read_file"}) {
		t.Errorf("got %v, want [read_file]", got)
	}
}

func TestPolicyEngine_GroupToolAllow(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{})

	got := defNames(pe.FilterTools(reg, "agent-1", "openai", nil, []string{"group:web"}, false, false))
	if !equalStrings(got, []string{"web_fetch", "web_search"}) {
		t.Errorf("got %v, want [web_fetch web_search]", got)
	}
}

func TestPolicyEngine_GlobalDenySubtracts(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{
		Allow: config.FlexibleStringSlice{"exec", "read_file", "write_file"},
		Deny:  config.FlexibleStringSlice{"write_file"},
	})

	got := defNames(pe.FilterTools(reg, "agent-1", "openai", nil, nil, false, false))
	if !equalStrings(got, []string{"exec", "read_file"}) {
		t.Errorf("got %v, want [exec read_file]", got)
	}
}

func TestPolicyEngine_AgentDenySubtracts(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{Allow: config.FlexibleStringSlice{"exec", "read_file"}})

	agentPolicy := &config.ToolPolicySpec{Deny: config.FlexibleStringSlice{"exec"}}
	got := defNames(pe.FilterTools(reg, "agent-1", "openai", agentPolicy, nil, false, false))
	if !equalStrings(got, []string{"read_file"}) {
		t.Errorf("got %v, want [read_file]", got)
	}
}

func TestPolicyEngine_AlsoAllowAddsBack(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{
		Allow:     config.FlexibleStringSlice{"exec"},
		AlsoAllow: config.FlexibleStringSlice{"session_status"},
	})

	got := defNames(pe.FilterTools(reg, "agent-1", "openai", nil, nil, false, false))
	if !equalStrings(got, []string{"exec", "session_status"}) {
		t.Errorf("got %v, want [exec session_status]", got)
	}
}

func TestPolicyEngine_AgentAlsoAllowAddsBack(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{Allow: config.FlexibleStringSlice{"exec"}})

	agentPolicy := &config.ToolPolicySpec{AlsoAllow: config.FlexibleStringSlice{"create_image"}}
	got := defNames(pe.FilterTools(reg, "agent-1", "openai", agentPolicy, nil, false, false))
	if !equalStrings(got, []string{"create_image", "exec"}) {
		t.Errorf("got %v, want [create_image exec]", got)
	}
}

func TestPolicyEngine_AutoSendRestrictedRequiresExplicitAgentAllow(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{
		Profile:      "messaging",
		AutoSendMode: "restricted",
	})

	// No agent policy at all: sendWhatsApp/sendTelegram/sendEmail are
	// inherited from the messaging profile but not explicitly allowed
	// by the agent, so they're stripped.
	got := defNames(pe.FilterTools(reg, "agent-1", "openai", nil, nil, false, false))
	for _, denied := range []string{"sendWhatsApp", "sendTelegram", "sendEmail"} {
		if contains(got, denied) {
			t.Errorf("expected restricted autoSendMode to strip %q, got %v", denied, got)
		}
	}
	if !contains(got, "sessions_list") {
		t.Errorf("expected non-messaging-send tools to survive, got %v", got)
	}
}

func TestPolicyEngine_AutoSendRestrictedAllowsExplicitAgentAllow(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{
		Profile:      "messaging",
		AutoSendMode: "restricted",
	})

	agentPolicy := &config.ToolPolicySpec{Allow: config.FlexibleStringSlice{"group:messaging", "sessions_list", "sessions_send", "session_status"}}
	got := defNames(pe.FilterTools(reg, "agent-1", "openai", agentPolicy, nil, false, false))
	if !contains(got, "sendWhatsApp") {
		t.Errorf("expected explicit agent allow to permit sendWhatsApp, got %v", got)
	}
}

func TestPolicyEngine_SubagentDenyListApplied(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{})

	got := defNames(pe.FilterTools(reg, "sub-1", "openai", nil, nil, true, false))
	if contains(got, "exec") {
		t.Errorf("expected subagent deny list to strip exec, got %v", got)
	}
	if contains(got, "memory_search") {
		t.Errorf("expected subagent deny list to strip memory_search, got %v", got)
	}
	if !contains(got, "read_file") {
		t.Errorf("expected non-denied tools to remain for subagents, got %v", got)
	}
}

func TestPolicyEngine_LeafSubagentDenyListApplied(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{})

	got := defNames(pe.FilterTools(reg, "sub-1", "openai", nil, nil, true, true))
	for _, denied := range []string{"sessions_list", "sessions_send"} {
		if contains(got, denied) {
			t.Errorf("expected leaf subagent deny list to strip %q, got %v", denied, got)
		}
	}
}

func TestPolicyEngine_UnknownProfileFallsBackToFull(t *testing.T) {
	reg := newPolicyRegistry()
	pe := NewPolicyEngine(&config.ToolsConfig{Profile: "nonexistent"})

	got := defNames(pe.FilterTools(reg, "agent-1", "openai", nil, nil, false, false))
	if len(got) != len(reg.List()) {
		t.Errorf("expected unknown profile to fall back to full access, got %v", got)
	}
}

func TestResolveAlias(t *testing.T) {
	if got := resolveAlias("bash"); got != "exec" {
		t.Errorf("resolveAlias(bash) = %q, want exec", got)
	}
	if got := resolveAlias("apply-patch"); got != "apply_patch" {
		t.Errorf("resolveAlias(apply-patch) = %q, want apply_patch", got)
	}
	if got := resolveAlias("exec"); got != "exec" {
		t.Errorf("resolveAlias(exec) = %q, want exec unchanged", got)
	}
}

func TestExpandSpec_ExpandsGroupsAndFiltersAvailable(t *testing.T) {
	available := []string{"web_search", "web_fetch", "exec", "unrelated"}
	got := expandSpec(available, []string{"group:web", "exec"})
	want := []string{"web_search", "web_fetch", "exec"}
	if !equalStrings(got, want) {
		t.Errorf("expandSpec got %v, want %v (order-insensitive)", got, want)
	}
}

func TestIntersectWithSpec(t *testing.T) {
	current := []string{"exec", "read_file", "web_search"}
	got := intersectWithSpec(current, []string{"exec", "read_file"})
	if !equalStrings(got, []string{"exec", "read_file"}) {
		t.Errorf("got %v, want [exec read_file]", got)
	}
}

func TestSubtractSpec_ExpandsGroups(t *testing.T) {
	current := []string{"exec", "web_search", "web_fetch"}
	got := subtractSpec(current, []string{"group:web"})
	if !equalStrings(got, []string{"exec"}) {
		t.Errorf("got %v, want [exec]", got)
	}
}

func TestSubtractSet_ExactNamesOnly(t *testing.T) {
	current := []string{"exec", "web_search"}
	got := subtractSet(current, []string{"exec"})
	if !equalStrings(got, []string{"web_search"}) {
		t.Errorf("got %v, want [web_search]", got)
	}
}

func TestUnionWithSpec_AddsWithoutDuplicating(t *testing.T) {
	allTools := []string{"exec", "read_file", "web_search"}
	current := []string{"exec"}
	got := unionWithSpec(current, allTools, []string{"exec", "read_file"})
	sort.Strings(got)
	if !equalStrings(got, []string{"exec", "read_file"}) {
		t.Errorf("got %v, want [exec read_file]", got)
	}
}

func TestCopySlice_IsIndependent(t *testing.T) {
	src := []string{"a", "b"}
	cp := copySlice(src)
	cp[0] = "z"
	if src[0] != "a" {
		t.Error("expected copySlice to return an independent slice")
	}
}

func contains(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

func equalStrings(got, want []string) bool {
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
