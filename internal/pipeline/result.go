package pipeline

import (
	"context"

	"github.com/superbrain/gateway/internal/message"
)

// ResultType names the terminal outcome of one Process call.
type ResultType string

const (
	ResultFlowExecuted    ResultType = "FLOW_EXECUTED"
	ResultToolExecuted    ResultType = "TOOL_EXECUTED"
	ResultAIResponse      ResultType = "AI_RESPONSE"
	ResultSwarmDelegated  ResultType = "SWARM_DELEGATED"
	ResultPassiveIngested ResultType = "PASSIVE_INGESTED"
	ResultSilent          ResultType = "SILENT"
	ResultNoAction        ResultType = "NO_ACTION"
	ResultClarification   ResultType = "CLARIFICATION"
	ResultError           ResultType = "ERROR"
)

// Result is the outcome the pipeline (or the router it delegates to)
// produces for one inbound message.
type Result struct {
	Type     ResultType             `json:"type"`
	Response string                 `json:"response,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func noAction(reason string) *Result {
	return &Result{Type: ResultNoAction, Metadata: map[string]interface{}{"reason": reason}}
}

// Router is the Intent Router contract the pipeline delegates step 9 to.
// internal/router.Router implements this; Pipeline depends only on the
// interface so the two packages don't import each other.
type Router interface {
	Route(ctx context.Context, msg *message.Unified, userID, sessionID string, rc *message.RequestContext) (*Result, error)
}
