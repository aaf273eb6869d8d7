package pipeline

import (
	"fmt"
	"testing"
	"time"
)

func TestDeduper_MarkIfNew(t *testing.T) {
	d := newDeduper()
	if !d.markIfNew("fp-1") {
		t.Fatal("expected first sighting of a fingerprint to be new")
	}
	if d.markIfNew("fp-1") {
		t.Error("expected repeated fingerprint within the window to not be new")
	}
	if !d.markIfNew("fp-2") {
		t.Error("expected a distinct fingerprint to be new")
	}
}

func TestDeduper_ForgetsAfterWindowExpires(t *testing.T) {
	d := newDeduper()
	d.seen["fp-1"] = time.Now().Add(-dedupWindow - time.Second)
	if !d.markIfNew("fp-1") {
		t.Error("expected an entry older than the dedup window to be treated as new")
	}
}

func TestDeduper_EvictsExpiredEntriesWhenOverCapacity(t *testing.T) {
	d := newDeduper()
	d.seen["stale"] = time.Now().Add(-dedupWindow - time.Second)
	for i := 0; i < 4096; i++ {
		d.seen[fmt.Sprintf("fresh-%d", i)] = time.Now()
	}

	d.markIfNew("trigger-eviction-scan")

	if _, ok := d.seen["stale"]; ok {
		t.Error("expected the stale entry to be evicted once capacity is exceeded")
	}
	if _, ok := d.seen["fresh-0"]; !ok {
		t.Error("expected a fresh entry to survive the eviction scan")
	}
}
