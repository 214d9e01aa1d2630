// SPDX-License-Identifier: MIT

package presence

import (
	"testing"
	"time"
)

func TestTracker_CountsDistinctViewers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	tr.Heartbeat("v1", "203.0.113.7", "ua-a")
	tr.Heartbeat("v1", "203.0.113.7", "ua-a") // same viewer, counted once
	tr.Heartbeat("v1", "203.0.113.8", "ua-a")
	tr.Heartbeat("v2", "203.0.113.7", "ua-b")

	snap := tr.Snapshot()
	if snap["v1"] != 2 {
		t.Fatalf("v1 viewers = %d, want 2", snap["v1"])
	}
	if snap["v2"] != 1 {
		t.Fatalf("v2 viewers = %d, want 1", snap["v2"])
	}
}

func TestTracker_EvictsStaleViewers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	tr.Heartbeat("v1", "203.0.113.7", "ua-a")

	// A later heartbeat keeps one viewer alive past the first one's window.
	now = now.Add(20 * time.Second)
	tr.Heartbeat("v1", "203.0.113.8", "ua-a")

	now = now.Add(15 * time.Second) // first viewer now 35s old, second 15s
	snap := tr.Snapshot()
	if snap["v1"] != 1 {
		t.Fatalf("v1 viewers = %d, want 1 after eviction", snap["v1"])
	}

	now = now.Add(31 * time.Second)
	snap = tr.Snapshot()
	if _, ok := snap["v1"]; ok {
		t.Fatal("video with no active viewers should be absent from snapshot")
	}

	// Internal map for the video is dropped too.
	tr.mu.Lock()
	_, ok := tr.videos["v1"]
	tr.mu.Unlock()
	if ok {
		t.Fatal("empty viewer map should be removed")
	}
}
