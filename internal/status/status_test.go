package status_test

import (
	"testing"
	"time"

	"fieldsync/internal/queue"
	"fieldsync/internal/status"
	"fieldsync/internal/syncer"
)

var t0 = time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)

func sampleItems() []queue.Entry {
	return []queue.Entry{
		{LocalID: "a", Status: queue.StatusPending, CreatedAt: t0.Add(time.Hour)},
		{LocalID: "b", Status: queue.StatusPending, CreatedAt: t0},
		{LocalID: "c", Status: queue.StatusFailed, FailureKind: queue.FailureTransient},
		{LocalID: "d", Status: queue.StatusFailed, FailureKind: queue.FailurePermanent},
	}
}

func TestComputeCounts(t *testing.T) {
	snap := status.Compute(sampleItems(), true)
	if snap.Pending != 2 || snap.Failed != 1 || snap.Rejected != 1 || snap.Total != 4 {
		t.Fatalf("unexpected counts %+v", snap)
	}
	if !snap.OldestPending.Equal(t0) {
		t.Fatalf("unexpected oldest pending %v", snap.OldestPending)
	}
	if age := snap.OldestPendingAge(t0.Add(2 * time.Hour)); age != 2*time.Hour {
		t.Fatalf("unexpected age %v", age)
	}
}

func TestBanner(t *testing.T) {
	tests := []struct {
		snap status.Snapshot
		want string
	}{
		{status.Snapshot{Online: false, Pending: 3}, "Offline · 3 pending"},
		{status.Snapshot{Online: true, Pending: 2, Failed: 1}, "3 pending"},
		{status.Snapshot{Online: true, Pending: 1, Rejected: 2}, "1 pending · 2 rejected"},
		{status.Snapshot{Online: true, Rejected: 2}, "2 rejected"},
		{status.Snapshot{Online: true, Syncing: true, Pending: 4}, "Syncing · 4 pending"},
		{status.Snapshot{Online: true}, "All synced"},
	}
	for _, tt := range tests {
		if got := tt.snap.Banner(); got != tt.want {
			t.Errorf("Banner(%+v) = %q, want %q", tt.snap, got, tt.want)
		}
	}
}

type fakeQueue []queue.Entry

func (f fakeQueue) Items() []queue.Entry { return f }

type fakeOnline bool

func (f fakeOnline) Online() bool { return bool(f) }

type fakeSync struct {
	syncing bool
	last    *syncer.Result
}

func (f fakeSync) Syncing() bool { return f.syncing }

func (f fakeSync) LastResult() (syncer.Result, bool) {
	if f.last == nil {
		return syncer.Result{}, false
	}
	return *f.last, true
}

func TestSurfaceSnapshot(t *testing.T) {
	surface := status.NewSurface(fakeQueue(sampleItems()), nil, nil)
	if !surface.IsOnline() {
		t.Fatal("surface without a monitor should default to online")
	}
	if surface.PendingCount() != 2 {
		t.Fatalf("unexpected pending count %d", surface.PendingCount())
	}

	last := &syncer.Result{Synced: 5}
	surface = status.NewSurface(fakeQueue(nil), fakeOnline(false), fakeSync{syncing: true, last: last})
	snap := surface.Snapshot()
	if snap.Online || !snap.Syncing || snap.LastSync == nil || snap.LastSync.Synced != 5 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
