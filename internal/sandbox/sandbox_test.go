package sandbox

import (
	"context"
	"errors"
	"testing"

	"github.com/superbrain/gateway/internal/config"
)

func TestNewDockerManager_OffModeNeverDialsDocker(t *testing.T) {
	m, err := NewDockerManager(config.SandboxConfig{Mode: "off"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Get(context.Background(), "agent-1:ws", "/tmp/ws"); !errors.Is(err, ErrSandboxDisabled) {
		t.Errorf("got %v, want ErrSandboxDisabled", err)
	}
}

func TestNewDockerManager_EmptyModeDefaultsToDisabled(t *testing.T) {
	m, err := NewDockerManager(config.SandboxConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Get(context.Background(), "agent-1:ws", "/tmp/ws"); !errors.Is(err, ErrSandboxDisabled) {
		t.Errorf("got %v, want ErrSandboxDisabled", err)
	}
}

func TestDockerManager_ShutdownWithNoActiveContainersIsSafe(t *testing.T) {
	m, err := NewDockerManager(config.SandboxConfig{Mode: "off"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Shutdown(context.Background())
}
