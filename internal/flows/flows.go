// Package flows matches inbound messages against operator-authored
// automation triggers. Matching is pure filter evaluation over
// whatever flow definitions a Store returns; actually running a matched
// flow is out of scope here (authoring and executing workflows is a
// Non-goal) — Engine is a contract with no concrete implementation so the
// pipeline can call it once that subsystem exists elsewhere.
package flows

import (
	"context"

	"github.com/superbrain/gateway/internal/message"
)

// Trigger is one operator-defined condition a flow fires on.
type Trigger struct {
	ID        string
	FlowID    string
	Field     string // "content", "platform", "senderId", "isGroup"
	Operator  string // "contains", "equals", "matches" (regex), "startsWith"
	Value     string
	Enabled   bool
}

// Store looks up the triggers configured for an account. Concrete storage
// (internal/store/pg) backs this in production; tests can supply a slice-
// backed fake.
type Store interface {
	ListTriggers(ctx context.Context, accountID string) ([]Trigger, error)
}

// Match is a trigger that fired against a given message.
type Match struct {
	Trigger Trigger
}

// MatchAll evaluates every enabled trigger for the account against msg and
// returns the ones that fire, preserving trigger order.
func MatchAll(ctx context.Context, store Store, accountID string, msg *message.Unified) ([]Match, error) {
	triggers, err := store.ListTriggers(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, t := range triggers {
		if !t.Enabled {
			continue
		}
		if evaluate(t, msg) {
			matches = append(matches, Match{Trigger: t})
		}
	}
	return matches, nil
}

// Engine executes a matched flow. No concrete implementation ships in this
// repo (authoring/executing workflows is a Non-goal); callers that need one
// supply their own Engine and the pipeline invokes it through this
// interface.
type Engine interface {
	Execute(ctx context.Context, flowID string, msg *message.Unified, rc *message.RequestContext) error
}
