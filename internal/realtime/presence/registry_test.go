package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"artisanchat/internal/domain/user"
)

type recordingDirectory struct {
	mu    sync.Mutex
	calls []directoryCall
}

type directoryCall struct {
	id     user.ID
	online bool
}

func (d *recordingDirectory) SetPresence(_ context.Context, id user.ID, online bool, _ time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, directoryCall{id: id, online: online})
	return nil
}

func (d *recordingDirectory) snapshot() []directoryCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]directoryCall(nil), d.calls...)
}

func TestRegisterReportsOnlineTransitionOnce(t *testing.T) {
	dir := &recordingDirectory{}
	reg := NewRegistry(dir, nil)
	ctx := context.Background()

	if !reg.Register(ctx, "alice", 1) {
		t.Error("first connection should report an online transition")
	}
	if reg.Register(ctx, "alice", 2) {
		t.Error("second connection must not report a transition")
	}
	if !reg.IsOnline("alice") {
		t.Error("alice should be online")
	}

	calls := dir.snapshot()
	if len(calls) != 1 || !calls[0].online {
		t.Errorf("expected one online write-through, got %+v", calls)
	}
}

func TestUnregisterReportsOfflineOnLastConnection(t *testing.T) {
	dir := &recordingDirectory{}
	reg := NewRegistry(dir, nil)
	ctx := context.Background()

	reg.Register(ctx, "alice", 1)
	reg.Register(ctx, "alice", 2)

	if offline, _ := reg.Unregister(ctx, "alice", 1); offline {
		t.Error("identity with a remaining connection is still online")
	}
	if !reg.IsOnline("alice") {
		t.Error("alice should still be online")
	}
	offline, lastSeen := reg.Unregister(ctx, "alice", 2)
	if !offline {
		t.Error("closing the last connection should report offline")
	}
	if lastSeen.IsZero() {
		t.Error("offline transition must carry a last-seen time")
	}
	if reg.IsOnline("alice") {
		t.Error("alice should be offline")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	dir := &recordingDirectory{}
	reg := NewRegistry(dir, nil)
	ctx := context.Background()

	reg.Register(ctx, "alice", 1)
	reg.Unregister(ctx, "alice", 1)
	if offline, _ := reg.Unregister(ctx, "alice", 1); offline {
		t.Error("repeated unregister must not report another transition")
	}
	if offline, _ := reg.Unregister(ctx, "ghost", 9); offline {
		t.Error("unknown identity must not report a transition")
	}

	calls := dir.snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected exactly one online and one offline write-through, got %+v", calls)
	}
	if calls[1].online {
		t.Error("second write-through should be the offline transition")
	}
}

func TestSnapshotListsOnlineIdentitiesSorted(t *testing.T) {
	reg := NewRegistry(nil, nil)
	ctx := context.Background()

	reg.Register(ctx, "carol", 3)
	reg.Register(ctx, "alice", 1)
	reg.Register(ctx, "bob", 2)
	reg.Unregister(ctx, "bob", 2)

	entries := reg.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("expected 2 online identities, got %d", len(entries))
	}
	if entries[0].IdentityID != "alice" || entries[1].IdentityID != "carol" {
		t.Errorf("snapshot not sorted: %+v", entries)
	}
	for _, entry := range entries {
		if !entry.IsOnline {
			t.Errorf("snapshot entry should be online: %+v", entry)
		}
	}
}
