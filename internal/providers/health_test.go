package providers

import (
	"context"
	"testing"
	"time"
)

func TestHealthMonitor_RecordFailureCrossesThreshold(t *testing.T) {
	h := NewHealthMonitor(2, time.Minute, time.Hour)
	h.Register(&stubProvider{name: "p"})

	if !h.IsHealthy("p") {
		t.Fatal("expected freshly registered provider to be healthy")
	}

	h.RecordFailure("p")
	if !h.IsHealthy("p") {
		t.Error("one failure under threshold should still be healthy")
	}

	h.RecordFailure("p")
	if h.IsHealthy("p") {
		t.Error("two failures at threshold should be unhealthy")
	}
}

func TestHealthMonitor_RecordSuccessResets(t *testing.T) {
	h := NewHealthMonitor(1, time.Minute, time.Hour)
	h.Register(&stubProvider{name: "p"})

	h.RecordFailure("p")
	if h.IsHealthy("p") {
		t.Fatal("expected unhealthy after crossing threshold of 1")
	}

	h.RecordSuccess("p")
	if !h.IsHealthy("p") {
		t.Error("expected healthy again after RecordSuccess")
	}
}

func TestHealthMonitor_RecoversAfterCooldown(t *testing.T) {
	h := NewHealthMonitor(1, 10*time.Millisecond, time.Hour)
	h.Register(&stubProvider{name: "p"})

	h.RecordFailure("p")
	if h.IsHealthy("p") {
		t.Fatal("expected unhealthy immediately after crossing threshold")
	}

	time.Sleep(20 * time.Millisecond)
	if !h.IsHealthy("p") {
		t.Error("expected provider eligible again after cooldown elapses")
	}
}

func TestHealthMonitor_UnknownProviderDefaultsHealthy(t *testing.T) {
	h := NewHealthMonitor(1, time.Minute, time.Hour)
	if !h.IsHealthy("never-registered") {
		t.Error("an unregistered provider name should be treated as healthy")
	}
}

func TestHealthMonitor_Run(t *testing.T) {
	h := NewHealthMonitor(1, time.Hour, 5*time.Millisecond)
	h.Register(&stubProvider{name: "p"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	probed := make(chan struct{}, 8)
	h.Run(ctx, func(_ context.Context, _ Provider) error {
		select {
		case probed <- struct{}{}:
		default:
		}
		return nil
	})

	select {
	case <-probed:
	default:
		t.Error("expected Run to have invoked the probe at least once")
	}
}
