package tools

import (
	"reflect"
	"testing"
)

func TestResolvePlaceholders_TopLevelString(t *testing.T) {
	args := map[string]interface{}{"query": "summarize {PREVIOUS_OUTPUT}"}
	got := ResolvePlaceholders(args, PlaceholderValues{PreviousOutput: "the search results"})
	if got["query"] != "summarize the search results" {
		t.Errorf("got %q", got["query"])
	}
}

func TestResolvePlaceholders_NestedMapsAndSlices(t *testing.T) {
	args := map[string]interface{}{
		"nested": map[string]interface{}{
			"body": "{SCRAPED_DATA}",
		},
		"list": []interface{}{"{SEARCH_RESULTS}", 42, "plain"},
	}
	got := ResolvePlaceholders(args, PlaceholderValues{ScrapedData: "page text", SearchResults: "hits"})

	nested, ok := got["nested"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected nested map to survive, got %T", got["nested"])
	}
	if nested["body"] != "page text" {
		t.Errorf("nested body = %q, want %q", nested["body"], "page text")
	}

	list, ok := got["list"].([]interface{})
	if !ok {
		t.Fatalf("expected list to survive, got %T", got["list"])
	}
	if list[0] != "hits" {
		t.Errorf("list[0] = %v, want hits", list[0])
	}
	if list[1] != 42 {
		t.Errorf("list[1] = %v, want 42 (unchanged)", list[1])
	}
	if list[2] != "plain" {
		t.Errorf("list[2] = %v, want plain (unchanged)", list[2])
	}
}

func TestResolvePlaceholders_UnsetValueLeavesEmptyString(t *testing.T) {
	args := map[string]interface{}{"x": "{AI_GENERATED}"}
	got := ResolvePlaceholders(args, PlaceholderValues{})
	if got["x"] != "" {
		t.Errorf("got %q, want empty string", got["x"])
	}
}

func TestResolvePlaceholders_DoesNotMutateInput(t *testing.T) {
	args := map[string]interface{}{"query": "{PREVIOUS_OUTPUT}"}
	_ = ResolvePlaceholders(args, PlaceholderValues{PreviousOutput: "resolved"})
	if args["query"] != "{PREVIOUS_OUTPUT}" {
		t.Error("expected ResolvePlaceholders to leave the input map untouched")
	}
}

func TestContainsUnresolvedPlaceholder(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"plain text", false},
		{"has {PREVIOUS_OUTPUT} token", true},
		{"has {SEARCH_RESULTS} token", true},
		{"has {SCRAPED_DATA} token", true},
		{"has {AI_GENERATED} token", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := ContainsUnresolvedPlaceholder(tt.s); got != tt.want {
			t.Errorf("ContainsUnresolvedPlaceholder(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestResolvePlaceholders_EmptyArgs(t *testing.T) {
	got := ResolvePlaceholders(map[string]interface{}{}, PlaceholderValues{})
	if !reflect.DeepEqual(got, map[string]interface{}{}) {
		t.Errorf("got %v, want empty map", got)
	}
}
