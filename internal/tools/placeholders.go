package tools

import "strings"

// Placeholder tokens the intent router resolves inside tool arguments before
// dispatch, letting one model turn reference the output
// of an earlier tool call or enrichment step without re-stating it.
const (
	PlaceholderPreviousOutput = "{PREVIOUS_OUTPUT}"
	PlaceholderSearchResults  = "{SEARCH_RESULTS}"
	PlaceholderScrapedData    = "{SCRAPED_DATA}"
	PlaceholderAIGenerated    = "{AI_GENERATED}"
)

// PlaceholderValues holds the values available for substitution during one
// routing pass. A field left empty replaces its placeholder with the empty
// string, so no known token survives resolution.
type PlaceholderValues struct {
	PreviousOutput string
	SearchResults  string
	ScrapedData    string
	AIGenerated    string
}

func (v PlaceholderValues) replacer() *strings.Replacer {
	return strings.NewReplacer(
		PlaceholderPreviousOutput, v.PreviousOutput,
		PlaceholderSearchResults, v.SearchResults,
		PlaceholderScrapedData, v.ScrapedData,
		PlaceholderAIGenerated, v.AIGenerated,
	)
}

// ResolvePlaceholders rewrites every string argument (recursively, through
// nested maps and slices) by substituting known placeholder tokens.
// Non-string values pass through unchanged.
func ResolvePlaceholders(args map[string]interface{}, values PlaceholderValues) map[string]interface{} {
	r := values.replacer()
	return resolveMap(args, r)
}

func resolveMap(m map[string]interface{}, r *strings.Replacer) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = resolveValue(v, r)
	}
	return out
}

func resolveValue(v interface{}, r *strings.Replacer) interface{} {
	switch val := v.(type) {
	case string:
		return r.Replace(val)
	case map[string]interface{}:
		return resolveMap(val, r)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, r)
		}
		return out
	default:
		return v
	}
}

// ContainsUnresolvedPlaceholder reports whether s contains a known
// placeholder token. The router does not call it before dispatch.
func ContainsUnresolvedPlaceholder(s string) bool {
	for _, tok := range []string{
		PlaceholderPreviousOutput,
		PlaceholderSearchResults,
		PlaceholderScrapedData,
		PlaceholderAIGenerated,
	} {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
