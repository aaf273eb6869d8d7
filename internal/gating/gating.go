// Package gating runs the fixed sequence of admission checks a message
// passes through after deduplication and before classification: echo, group
// allowlist, mention, rate limiting, content, plus the blocklist, mute,
// quiet-hours, and plan/entitlement checks layered on top. Every gate fails
// open — a gate that cannot reach its backing store lets the message
// through rather than silently dropping it, and logs the failure.
package gating

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/superbrain/gateway/internal/message"
)

// Decision is the outcome of one gate.
type Decision struct {
	Allow  bool
	Gate   string
	Reason string
}

// Gate is one admission check in the chain.
type Gate interface {
	Name() string
	Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) (bool, string, error)
}

// Chain runs gates in a fixed order and caches the aggregate decision per
// conversation for a short TTL, since most gates (rate limit excepted) are
// expensive to re-derive on every message in a fast-moving thread.
type Chain struct {
	gates []Gate
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	decision Decision
	expires  time.Time
}

// NewChain builds a chain that runs gates in the order given.
func NewChain(gates []Gate, ttl time.Duration) *Chain {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Chain{gates: gates, ttl: ttl, cache: make(map[string]cacheEntry)}
}

// Evaluate runs every gate in order, short-circuiting on the first deny.
// The aggregate decision is cached per conversation for the chain's TTL,
// rate-limit gates included: while a cached decision is fresh no gate runs,
// so the rate-limit counter is not incremented. No gate can opt out of the
// cache.
func (c *Chain) Evaluate(ctx context.Context, msg *message.Unified, rc *message.RequestContext) Decision {
	key := rc.ConversationID
	if key == "" {
		key = msg.From
	}

	c.mu.Lock()
	if e, ok := c.cache[key]; ok && time.Now().Before(e.expires) {
		c.mu.Unlock()
		return e.decision
	}
	c.mu.Unlock()

	decision := Decision{Allow: true, Gate: "", Reason: ""}
	for _, g := range c.gates {
		allow, reason, err := g.Evaluate(ctx, msg, rc)
		if err != nil {
			slog.Warn("gate evaluation failed, failing open", "gate", g.Name(), "error", err)
			continue
		}
		if !allow {
			decision = Decision{Allow: false, Gate: g.Name(), Reason: reason}
			break
		}
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{decision: decision, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return decision
}

// Invalidate drops any cached decision for a conversation, used when a gate
// input changes out of band (e.g. an operator unmutes a thread).
func (c *Chain) Invalidate(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, conversationID)
}
