package providers

import (
	"fmt"
	"strings"
)

// TaskTier names a complexity bucket the failover router picks a provider
// chain for: cheap/fast models for routine turns, frontier models for
// anything that looks like real reasoning work.
type TaskTier string

const (
	TierTrivial  TaskTier = "trivial"
	TierSimple   TaskTier = "simple"
	TierModerate TaskTier = "moderate"
	TierComplex  TaskTier = "complex"
	TierCritical TaskTier = "critical"
)

// criticalMarkers push a request straight to CRITICAL regardless of length —
// production-impacting or urgent language.
var criticalMarkers = []string{
	"production down", "production is down", "security incident", "data loss",
	"critical bug", "urgent", "outage", "breach",
}

// complexMarkers are substrings in the latest user turn that push a request
// into COMPLEX — code generation, multi-step planning, and anything
// explicitly asking for deep analysis.
var complexMarkers = []string{
	"write a function", "refactor", "debug", "analyze", "step by step",
	"architecture", "design a", "implement", "optimize",
}

// reasoningVerbs are weaker signals than complexMarkers — they nudge a
// request toward MODERATE without being decisive on their own.
var reasoningVerbs = []string{
	"compare", "evaluate", "explain why", "plan", "summarize and", "review",
}

// Classification is the TaskClassifier's output: the bucket plus enough
// detail to audit or override the decision.
type Classification struct {
	Tier       TaskTier
	Confidence float64
	Analysis   string
}

// TaskClassifier buckets a ChatRequest into a TaskTier using message count
// and content heuristics, with no external call — this is a pre-routing
// decision, not the conversational intent classifier.
type TaskClassifier struct{}

func NewTaskClassifier() *TaskClassifier { return &TaskClassifier{} }

// Classify returns the tier ChatRequest.ForceTier names, bypassing the
// heuristic entirely, when the caller set one.
func (c *TaskClassifier) Classify(req ChatRequest) Classification {
	if req.ForceTier != "" {
		return Classification{Tier: req.ForceTier, Confidence: 1.0, Analysis: "forced by caller"}
	}

	last := lastUserContent(req.Messages)
	lower := strings.ToLower(last)
	instructionCount := countInstructions(last)
	hasCodeFence := strings.Contains(last, "```")

	for _, marker := range criticalMarkers {
		if strings.Contains(lower, marker) {
			return Classification{
				Tier:       TierCritical,
				Confidence: 0.9,
				Analysis:   fmt.Sprintf("matched critical marker %q", marker),
			}
		}
	}

	if len(req.Tools) > 3 {
		return Classification{
			Tier:       TierComplex,
			Confidence: 0.75,
			Analysis:   fmt.Sprintf("%d tools requested, above the simple-tool-use threshold", len(req.Tools)),
		}
	}

	for _, marker := range complexMarkers {
		if strings.Contains(lower, marker) {
			conf := 0.8
			analysis := fmt.Sprintf("matched complexity marker %q", marker)
			if hasCodeFence {
				conf = 0.9
				analysis += "; contains a code fence"
			}
			return Classification{Tier: TierComplex, Confidence: conf, Analysis: analysis}
		}
	}

	if hasCodeFence {
		return Classification{Tier: TierComplex, Confidence: 0.65, Analysis: "contains a code fence"}
	}

	moderateSignal := 0
	var reasons []string
	if len(last) > 800 {
		moderateSignal++
		reasons = append(reasons, "long message body")
	}
	if len(req.Messages) > 12 {
		moderateSignal++
		reasons = append(reasons, "long conversation history")
	}
	if instructionCount > 2 {
		moderateSignal++
		reasons = append(reasons, fmt.Sprintf("%d distinct instructions", instructionCount))
	}
	for _, verb := range reasoningVerbs {
		if strings.Contains(lower, verb) {
			moderateSignal++
			reasons = append(reasons, fmt.Sprintf("matched reasoning verb %q", verb))
			break
		}
	}
	if moderateSignal > 0 {
		return Classification{
			Tier:       TierModerate,
			Confidence: 0.6 + 0.1*float64(moderateSignal),
			Analysis:   strings.Join(reasons, "; "),
		}
	}

	trimmedLast := strings.TrimSpace(last)
	if trimmedLast != "" && len(trimmedLast) <= 40 && len(req.Messages) <= 2 {
		return Classification{Tier: TierTrivial, Confidence: 0.7, Analysis: "short message, no prior context"}
	}

	return Classification{Tier: TierSimple, Confidence: 0.6, Analysis: "no complexity signals found"}
}

// countInstructions gives a rough count of separate asks in one message:
// numbered/bulleted list items plus "and"-joined clauses.
func countInstructions(content string) int {
	count := 0
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") {
			count++
			continue
		}
		if len(trimmed) > 2 && trimmed[0] >= '0' && trimmed[0] <= '9' {
			if trimmed[1] == '.' || trimmed[1] == ')' {
				count++
			}
		}
	}
	count += strings.Count(strings.ToLower(content), " and ")
	return count
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
