package providers

import (
	"context"
	"fmt"
	"log/slog"
)

// FailoverRouter tries providers in tier order, moving to the next one on
// any error (rate limit, timeout, 5xx) and skipping providers the
// HealthMonitor has marked unhealthy. A chain is only as strong as its
// least healthy member, so health is checked before the call, not just
// reacted to after a failure.
type FailoverRouter struct {
	chains     map[TaskTier][]Provider
	classifier *TaskClassifier
	health     *HealthMonitor
}

// NewFailoverRouter builds a router over per-tier ordered provider chains.
func NewFailoverRouter(chains map[TaskTier][]Provider, classifier *TaskClassifier, health *HealthMonitor) *FailoverRouter {
	return &FailoverRouter{chains: chains, classifier: classifier, health: health}
}

// Chat classifies req, then calls providers in that tier's chain in order
// until one succeeds.
func (r *FailoverRouter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	classification := r.classifier.Classify(req)
	tier := classification.Tier
	chain := r.chains[tier]
	if len(chain) == 0 {
		return nil, fmt.Errorf("providers: no providers configured for tier %q", tier)
	}

	var lastErr error
	for _, p := range chain {
		if r.health != nil && !r.health.IsHealthy(p.Name()) {
			slog.Debug("failover: skipping unhealthy provider", "provider", p.Name(), "tier", tier)
			continue
		}
		resp, err := p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		slog.Warn("failover: provider call failed, trying next", "provider", p.Name(), "tier", tier, "error", err)
		if r.health != nil {
			r.health.RecordFailure(p.Name())
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("providers: every provider in tier %q is unhealthy", tier)
	}
	return nil, fmt.Errorf("providers: all providers in tier %q failed: %w", tier, lastErr)
}

// ChatStream mirrors Chat but for the streaming call path.
func (r *FailoverRouter) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	classification := r.classifier.Classify(req)
	tier := classification.Tier
	chain := r.chains[tier]
	if len(chain) == 0 {
		return nil, fmt.Errorf("providers: no providers configured for tier %q", tier)
	}

	var lastErr error
	for _, p := range chain {
		if r.health != nil && !r.health.IsHealthy(p.Name()) {
			continue
		}
		resp, err := p.ChatStream(ctx, req, onChunk)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		slog.Warn("failover: streaming provider call failed, trying next", "provider", p.Name(), "tier", tier, "error", err)
		if r.health != nil {
			r.health.RecordFailure(p.Name())
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("providers: every provider in tier %q is unhealthy", tier)
	}
	return nil, fmt.Errorf("providers: all streaming providers in tier %q failed: %w", tier, lastErr)
}
