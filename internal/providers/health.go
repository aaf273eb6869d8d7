package providers

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HealthMonitor tracks consecutive failures per provider and marks one
// unhealthy once it crosses a threshold, recovering it after a cooldown.
// Run's probe interval is config.ProvidersConfig.HealthTick when set
// (cmd.buildFailoverRouter parses it), defaulting to 60s otherwise.
type HealthMonitor struct {
	mu         sync.Mutex
	state      map[string]*providerHealth
	threshold  int
	cooldown   time.Duration
	probeEvery time.Duration
	providers  map[string]Provider
}

type providerHealth struct {
	consecutiveFailures int
	unhealthySince      time.Time
	healthy             bool
}

// NewHealthMonitor builds a monitor with the given failure threshold and
// cooldown before a failed provider is retried.
func NewHealthMonitor(threshold int, cooldown, probeEvery time.Duration) *HealthMonitor {
	return &HealthMonitor{
		state:      make(map[string]*providerHealth),
		threshold:  threshold,
		cooldown:   cooldown,
		probeEvery: probeEvery,
		providers:  make(map[string]Provider),
	}
}

// Register tracks p for periodic health probing via Run.
func (h *HealthMonitor) Register(p Provider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.providers[p.Name()] = p
	h.state[p.Name()] = &providerHealth{healthy: true}
}

// RecordFailure increments a provider's failure count, marking it unhealthy
// once it crosses the threshold.
func (h *HealthMonitor) RecordFailure(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stateFor(name)
	s.consecutiveFailures++
	if s.consecutiveFailures >= h.threshold && s.healthy {
		s.healthy = false
		s.unhealthySince = time.Now()
		slog.Warn("provider marked unhealthy", "provider", name, "consecutive_failures", s.consecutiveFailures)
	}
}

// RecordSuccess clears a provider's failure count and restores health.
func (h *HealthMonitor) RecordSuccess(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stateFor(name)
	s.consecutiveFailures = 0
	if !s.healthy {
		s.healthy = true
		slog.Info("provider recovered", "provider", name)
	}
}

// IsHealthy reports whether the provider should be tried. An unhealthy
// provider becomes eligible again after cooldown elapses, letting the
// failover router's next call act as a live probe.
func (h *HealthMonitor) IsHealthy(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stateFor(name)
	if s.healthy {
		return true
	}
	if time.Since(s.unhealthySince) >= h.cooldown {
		return true
	}
	return false
}

func (h *HealthMonitor) stateFor(name string) *providerHealth {
	s, ok := h.state[name]
	if !ok {
		s = &providerHealth{healthy: true}
		h.state[name] = s
	}
	return s
}

// Run periodically probes every registered provider with a minimal request
// until ctx is cancelled, keeping health state fresh even for providers no
// live traffic is currently exercising.
func (h *HealthMonitor) Run(ctx context.Context, probe func(context.Context, Provider) error) {
	ticker := time.NewTicker(h.probeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.Lock()
			targets := make([]Provider, 0, len(h.providers))
			for _, p := range h.providers {
				targets = append(targets, p)
			}
			h.mu.Unlock()

			for _, p := range targets {
				if err := probe(ctx, p); err != nil {
					h.RecordFailure(p.Name())
					continue
				}
				h.RecordSuccess(p.Name())
			}
		}
	}
}
