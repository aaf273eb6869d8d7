package kv

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_Incr(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	n, err := s.Incr(ctx, "user:1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected first Incr to return 1, got %d", n)
	}

	n, err = s.Incr(ctx, "user:1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected second Incr to return 2, got %d", n)
	}
}

func TestMemoryStore_IncrResetsAfterWindow(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	if _, err := s.Incr(ctx, "user:1", 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	n, err := s.Incr(ctx, "user:1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected counter to reset after window expiry, got %d", n)
	}
}

func TestMemoryStore_EvictsOldestWhenFull(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	s.Incr(ctx, "a", time.Minute)
	s.Incr(ctx, "b", time.Minute)
	s.Incr(ctx, "c", time.Minute)

	if len(s.counters) > 2 {
		t.Errorf("expected store capped at 2 keys, got %d", len(s.counters))
	}
	if _, ok := s.counters["a"]; ok {
		t.Error("expected oldest key \"a\" to have been evicted")
	}
	if _, ok := s.counters["c"]; !ok {
		t.Error("expected newest key \"c\" to be present")
	}
}

func TestMemoryStore_Flags(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "blocked:u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected flag to be unset initially")
	}

	s.SetFlag("blocked:u1", true)
	exists, _ = s.Exists(ctx, "blocked:u1")
	if !exists {
		t.Error("expected flag to be set after SetFlag(true)")
	}

	s.SetFlag("blocked:u1", false)
	exists, _ = s.Exists(ctx, "blocked:u1")
	if exists {
		t.Error("expected flag to be cleared after SetFlag(false)")
	}
}

func TestMemoryStore_QuietHours(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	_, _, ok, err := s.GetQuietHours(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no quiet hours configured initially")
	}

	s.SetQuietHours("u1", 22, 7)
	start, end, ok, err := s.GetQuietHours(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || start != 22 || end != 7 {
		t.Errorf("expected (22, 7, true), got (%d, %d, %v)", start, end, ok)
	}
}

func TestMemoryStore_PlanActiveDefaultsTrue(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	active, err := s.IsPlanActive(ctx, "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active {
		t.Error("expected plan to default active when unset")
	}

	s.SetPlanActive("acct-1", false)
	active, _ = s.IsPlanActive(ctx, "acct-1")
	if active {
		t.Error("expected plan inactive after SetPlanActive(false)")
	}
}
