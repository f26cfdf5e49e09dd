package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/user"
)

func TestConversationStoreCreateAndGet(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	conversation, err := chat.NewPrivate(chat.NewPrivateParams{ID: "c1", A: "alice", B: "bob"})
	if err != nil {
		t.Fatalf("NewPrivate failed: %v", err)
	}

	if err := store.Create(ctx, conversation); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Create(ctx, conversation); !errors.Is(err, chat.ErrConversationExists) {
		t.Errorf("duplicate create: expected ErrConversationExists, got %v", err)
	}

	got, err := store.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	got.Participants["mallory"] = struct{}{}
	reread, _ := store.Get(ctx, "c1")
	if reread.IsParticipant("mallory") {
		t.Error("mutating a returned clone must not affect the store")
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateEnforcesOnePrivatePerPair(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	first, _ := chat.NewPrivate(chat.NewPrivateParams{ID: "c1", A: "alice", B: "bob"})
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A second thread for the same pair, in either order, must be rejected.
	second, _ := chat.NewPrivate(chat.NewPrivateParams{ID: "c2", A: "bob", B: "alice"})
	if err := store.Create(ctx, second); !errors.Is(err, chat.ErrConversationExists) {
		t.Errorf("same pair: expected ErrConversationExists, got %v", err)
	}

	// Groups with the same members and other pairs are unaffected.
	crew, _ := chat.NewGroup(chat.NewGroupParams{ID: "g1", Name: "crew", Creator: "alice", Participants: []user.ID{"bob"}})
	if err := store.Create(ctx, crew); err != nil {
		t.Errorf("group create failed: %v", err)
	}
	other, _ := chat.NewPrivate(chat.NewPrivateParams{ID: "c3", A: "alice", B: "carol"})
	if err := store.Create(ctx, other); err != nil {
		t.Errorf("other pair create failed: %v", err)
	}
}

func TestFindPrivateBetweenIgnoresOrderAndGroups(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	private, _ := chat.NewPrivate(chat.NewPrivateParams{ID: "c1", A: "alice", B: "bob"})
	if err := store.Create(ctx, private); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	group, _ := chat.NewGroup(chat.NewGroupParams{ID: "g1", Name: "crew", Creator: "alice", Participants: []user.ID{"bob"}})
	if err := store.Create(ctx, group); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	found, err := store.FindPrivateBetween(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found.ID != "c1" {
		t.Errorf("found %s, want c1", found.ID)
	}
	if _, err := store.FindPrivateBetween(ctx, "alice", "carol"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListByParticipantOrdersByRecency(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		id := chat.ConversationID(fmt.Sprintf("c%d", i))
		peer := fmt.Sprintf("peer%d", i)
		conversation, _ := chat.NewPrivate(chat.NewPrivateParams{
			ID: id, A: "alice", B: user.ID(peer),
		})
		conversation.UpdatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := store.Create(ctx, conversation); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	listed, err := store.ListByParticipant(ctx, "alice", 2, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(listed))
	}
	if listed[0].ID != "c2" || listed[1].ID != "c1" {
		t.Errorf("wrong order: %s, %s", listed[0].ID, listed[1].ID)
	}

	page, err := store.ListByParticipant(ctx, "alice", 2, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 1 || page[0].ID != "c0" {
		t.Errorf("wrong second page: %+v", page)
	}

	empty, err := store.ListByParticipant(ctx, "alice", 2, 10)
	if err != nil || len(empty) != 0 {
		t.Errorf("offset past the end should return nothing, got %v, %v", empty, err)
	}
}

func TestAppendMessageDoesNotAliasCallerMessage(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	conversation, _ := chat.NewPrivate(chat.NewPrivateParams{ID: "c1", A: "alice", B: "bob"})
	if err := store.Create(ctx, conversation); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	msg, _ := chat.NewMessage(chat.NewMessageParams{ID: "m1", Sender: "alice", Content: "hello"})
	stored, err := store.AppendMessage(ctx, "c1", msg)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	stored.Content = "tampered"
	msg.Content = "also tampered"

	reread, _ := store.Get(ctx, "c1")
	if reread.Messages[0].Content != "hello" {
		t.Error("store aggregate was aliased by caller-held messages")
	}
}

func TestMessagesBackwardPaging(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	conversation, _ := chat.NewPrivate(chat.NewPrivateParams{ID: "c1", A: "alice", B: "bob"})
	if err := store.Create(ctx, conversation); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		msg, _ := chat.NewMessage(chat.NewMessageParams{
			ID:     chat.MessageID(fmt.Sprintf("m%d", i)),
			Sender: "alice", Content: fmt.Sprintf("msg %d", i),
		})
		if _, err := store.AppendMessage(ctx, "c1", msg); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	latest, err := store.Messages(ctx, "c1", "", 2)
	if err != nil {
		t.Fatalf("messages failed: %v", err)
	}
	if len(latest) != 2 || latest[0].ID != "m3" || latest[1].ID != "m4" {
		t.Errorf("wrong latest window: %+v", latest)
	}

	older, err := store.Messages(ctx, "c1", "m3", 2)
	if err != nil {
		t.Fatalf("messages failed: %v", err)
	}
	if len(older) != 2 || older[0].ID != "m1" || older[1].ID != "m2" {
		t.Errorf("wrong older window: %+v", older)
	}

	if _, err := store.Messages(ctx, "c1", "missing", 2); !errors.Is(err, chat.ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestUpdateAppliesUnderLock(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	group, _ := chat.NewGroup(chat.NewGroupParams{ID: "g1", Name: "crew", Creator: "alice", Participants: []user.ID{"bob"}})
	if err := store.Create(ctx, group); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := store.Update(ctx, "g1", func(c *chat.Conversation) error {
		return c.AddParticipant("alice", "carol", time.Now())
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !updated.IsParticipant("carol") {
		t.Error("returned aggregate should reflect the change")
	}
	reread, _ := store.Get(ctx, "g1")
	if !reread.IsParticipant("carol") {
		t.Error("stored aggregate should reflect the change")
	}

	if _, err := store.Update(ctx, "g1", func(c *chat.Conversation) error {
		return chat.ErrAdminOnly
	}); !errors.Is(err, chat.ErrAdminOnly) {
		t.Errorf("fn error should surface, got %v", err)
	}
}
