// SPDX-License-Identifier: MIT

package progress

import (
	"errors"
	"testing"
	"time"
)

func newTestRegistry() (*Registry, *time.Time, *[]func()) {
	now := time.UnixMilli(1_700_000_000_000)
	pending := []func(){}
	r := NewRegistry()
	r.now = func() time.Time { return now }
	r.after = func(_ time.Duration, f func()) { pending = append(pending, f) }
	return r, &now, &pending
}

func TestPublish_PreservesCreatedAt(t *testing.T) {
	r, now, _ := newTestRegistry()

	r.Publish("u1", Update{Stage: StageInitializing, Status: StatusInitializing})
	first, ok := r.Get("u1")
	if !ok {
		t.Fatal("expected entry after publish")
	}

	*now = now.Add(5 * time.Second)
	r.Publish("u1", Update{Stage: StageReceiving, Status: StatusProcessing})

	second, _ := r.Get("u1")
	if second.CreatedAt != first.CreatedAt {
		t.Fatalf("CreatedAt changed on upsert: %d != %d", second.CreatedAt, first.CreatedAt)
	}
	if second.Stage != StageReceiving {
		t.Fatalf("Stage = %q, want %q", second.Stage, StageReceiving)
	}
}

func TestSnapshot_OrderedByCreation(t *testing.T) {
	r, now, _ := newTestRegistry()

	r.Publish("u1", Update{Stage: StageInitializing, Status: StatusInitializing})
	*now = now.Add(time.Second)
	r.Publish("u3", Update{Stage: StageInitializing, Status: StatusInitializing})
	*now = now.Add(time.Second)
	r.Publish("u2", Update{Stage: StageInitializing, Status: StatusInitializing})

	// Updating u1 must not move it to the back.
	*now = now.Add(time.Second)
	r.Publish("u1", Update{Stage: StageFFmpeg, Status: StatusProcessing})

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() returned %d entries, want 3", len(snap))
	}
	want := []string{"u1", "u3", "u2"}
	for i, id := range want {
		if snap[i].ID != id {
			t.Fatalf("Snapshot()[%d].ID = %q, want %q", i, snap[i].ID, id)
		}
	}
}

func TestCounts(t *testing.T) {
	r, _, _ := newTestRegistry()

	r.Publish("a", Update{Status: StatusInitializing})
	r.Publish("b", Update{Status: StatusProcessing})
	r.Publish("c", Update{Status: StatusCompleted})
	r.Publish("d", Update{Status: StatusFailed})
	r.Publish("e", Update{Status: StatusFailed})

	active, completed, failed := r.Counts()
	if active != 2 || completed != 1 || failed != 2 {
		t.Fatalf("Counts() = (%d, %d, %d), want (2, 1, 2)", active, completed, failed)
	}
}

func TestCancel(t *testing.T) {
	r, _, _ := newTestRegistry()

	if err := r.Cancel("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Cancel(missing) = %v, want ErrNotFound", err)
	}

	r.Publish("busy", Update{Stage: StageFFmpeg, Status: StatusProcessing})
	if err := r.Cancel("busy"); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("Cancel(busy) = %v, want ErrNotCancellable", err)
	}

	r.Publish("queued", Update{Stage: StageQueued, Status: StatusProcessing})
	if err := r.Cancel("queued"); err != nil {
		t.Fatalf("Cancel(queued) = %v, want nil", err)
	}
	e, _ := r.Get("queued")
	if e.Stage != StageCancelled || e.Status != StatusFailed || e.Error != "Cancelled by user" {
		t.Fatalf("unexpected entry after cancel: %+v", e)
	}
}

func TestScheduleCleanup(t *testing.T) {
	r, _, pending := newTestRegistry()

	r.Publish("done", Update{Stage: StageCompleted, Status: StatusCompleted})
	r.ScheduleCleanup("done")

	// Job restarted under the same ID before the timer fired.
	r.Publish("reused", Update{Stage: StageFailed, Status: StatusFailed})
	r.ScheduleCleanup("reused")
	r.Publish("reused", Update{Stage: StageReceiving, Status: StatusProcessing})

	for _, f := range *pending {
		f()
	}

	if _, ok := r.Get("done"); ok {
		t.Fatal("terminal entry should be removed after cleanup")
	}
	if _, ok := r.Get("reused"); !ok {
		t.Fatal("entry that went non-terminal again must survive cleanup")
	}
}
