package typing

import (
	"context"
	"testing"
	"time"

	"artisanchat/internal/domain/chat"
	"artisanchat/internal/infra/storage/memory"
)

func newTrackedConversation(t *testing.T, store *memory.ConversationStore) *chat.Conversation {
	t.Helper()
	conversation, err := chat.NewPrivate(chat.NewPrivateParams{ID: "c1", A: "alice", B: "bob"})
	if err != nil {
		t.Fatalf("NewPrivate failed: %v", err)
	}
	if err := store.Create(context.Background(), conversation); err != nil {
		t.Fatalf("store create failed: %v", err)
	}
	return conversation
}

func TestStartRejectsNonParticipantSilently(t *testing.T) {
	store := memory.NewConversationStore()
	newTrackedConversation(t, store)
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	if tracker.Start(ctx, "c1", "mallory") {
		t.Error("non-participant must not record a typing entry")
	}
	if tracker.Start(ctx, "missing", "alice") {
		t.Error("unknown conversation must not record a typing entry")
	}
	if !tracker.Start(ctx, "c1", "alice") {
		t.Error("participant should record a typing entry")
	}
	if typers := tracker.Typing("c1"); len(typers) != 1 || typers[0] != "alice" {
		t.Errorf("expected alice typing, got %v", typers)
	}
}

func TestStopReportsWhetherEntryExisted(t *testing.T) {
	store := memory.NewConversationStore()
	newTrackedConversation(t, store)
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	tracker.Start(ctx, "c1", "alice")
	if !tracker.Stop("c1", "alice") {
		t.Error("stopping an active entry should report true")
	}
	if tracker.Stop("c1", "alice") {
		t.Error("stopping twice should report false")
	}
	if tracker.Stop("c1", "bob") {
		t.Error("stopping an absent entry should report false")
	}
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	store := memory.NewConversationStore()
	newTrackedConversation(t, store)
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return base }
	tracker.Start(ctx, "c1", "alice")
	tracker.Start(ctx, "c1", "bob")

	// Renew bob just before alice expires.
	tracker.now = func() time.Time { return base.Add(4 * time.Second) }
	tracker.Start(ctx, "c1", "bob")

	tracker.now = func() time.Time { return base.Add(EntryTTL) }
	if removed := tracker.SweepExpired(); removed != 1 {
		t.Errorf("expected 1 expired entry, got %d", removed)
	}
	if typers := tracker.Typing("c1"); len(typers) != 1 || typers[0] != "bob" {
		t.Errorf("expected only bob typing, got %v", typers)
	}
}

func TestTypingPurgesLazily(t *testing.T) {
	store := memory.NewConversationStore()
	newTrackedConversation(t, store)
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return base }
	tracker.Start(ctx, "c1", "alice")

	tracker.now = func() time.Time { return base.Add(EntryTTL + time.Second) }
	if typers := tracker.Typing("c1"); len(typers) != 0 {
		t.Errorf("stale entries must be invisible between sweeps, got %v", typers)
	}
}

func TestStopAllClearsEveryConversation(t *testing.T) {
	store := memory.NewConversationStore()
	newTrackedConversation(t, store)
	second, err := chat.NewPrivate(chat.NewPrivateParams{ID: "c2", A: "alice", B: "carol"})
	if err != nil {
		t.Fatalf("NewPrivate failed: %v", err)
	}
	if err := store.Create(context.Background(), second); err != nil {
		t.Fatalf("store create failed: %v", err)
	}
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	tracker.Start(ctx, "c1", "alice")
	tracker.Start(ctx, "c2", "alice")
	tracker.Start(ctx, "c1", "bob")

	cleaned := tracker.StopAll("alice")
	if len(cleaned) != 2 {
		t.Fatalf("expected 2 cleaned conversations, got %v", cleaned)
	}
	if typers := tracker.Typing("c1"); len(typers) != 1 || typers[0] != "bob" {
		t.Errorf("bob's entry should survive, got %v", typers)
	}
	if typers := tracker.Typing("c2"); len(typers) != 0 {
		t.Errorf("c2 should be empty, got %v", typers)
	}
	if cleaned := tracker.StopAll("alice"); len(cleaned) != 0 {
		t.Errorf("repeated StopAll should clean nothing, got %v", cleaned)
	}
}
