package chat

import (
	"errors"
	"testing"
	"time"

	"artisanchat/internal/domain/user"
)

func newTestPrivate(t *testing.T) *Conversation {
	t.Helper()
	c, err := NewPrivate(NewPrivateParams{ID: "c1", A: "alice", B: "bob"})
	if err != nil {
		t.Fatalf("NewPrivate failed: %v", err)
	}
	return c
}

func newTestGroup(t *testing.T) *Conversation {
	t.Helper()
	c, err := NewGroup(NewGroupParams{
		ID:           "g1",
		Name:         "design crew",
		Creator:      "alice",
		Participants: []user.ID{"bob", "carol"},
	})
	if err != nil {
		t.Fatalf("NewGroup failed: %v", err)
	}
	return c
}

func mustMessage(t *testing.T, id MessageID, sender user.ID, content string) *Message {
	t.Helper()
	msg, err := NewMessage(NewMessageParams{ID: id, Sender: sender, Content: content})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	return msg
}

func TestNewPrivateRequiresDistinctPair(t *testing.T) {
	cases := []struct {
		name string
		a, b user.ID
	}{
		{"empty a", "", "bob"},
		{"empty b", "alice", ""},
		{"same identity", "alice", "alice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewPrivate(NewPrivateParams{ID: "c1", A: tc.a, B: tc.b}); !errors.Is(err, ErrPrivatePairRequired) {
				t.Errorf("expected ErrPrivatePairRequired, got %v", err)
			}
		})
	}
}

func TestNewGroupRequiresNameAndMembers(t *testing.T) {
	if _, err := NewGroup(NewGroupParams{ID: "g1", Creator: "alice", Participants: []user.ID{"bob"}}); !errors.Is(err, ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
	if _, err := NewGroup(NewGroupParams{ID: "g1", Name: "crew", Creator: "alice"}); !errors.Is(err, ErrParticipantsRequired) {
		t.Errorf("expected ErrParticipantsRequired, got %v", err)
	}
}

func TestNewAttachedGroupStartsWithCreatorAlone(t *testing.T) {
	c, err := NewAttachedGroup(NewGroupParams{ID: "g1", Name: "crew", Creator: "alice"})
	if err != nil {
		t.Fatalf("NewAttachedGroup failed: %v", err)
	}
	if len(c.Participants) != 1 || !c.IsParticipant("alice") {
		t.Errorf("expected a creator-only roster, got %v", c.ParticipantIDs())
	}
	if !c.IsAdmin("alice") {
		t.Error("creator should be an admin")
	}
	if _, err := NewAttachedGroup(NewGroupParams{ID: "g2", Name: "crew"}); !errors.Is(err, ErrParticipantsRequired) {
		t.Errorf("expected ErrParticipantsRequired, got %v", err)
	}
}

func TestPrivateMembershipIsFixed(t *testing.T) {
	c := newTestPrivate(t)
	now := time.Now()

	if err := c.AddParticipant("mallory", "mallory", now); !errors.Is(err, ErrPrivateMembership) {
		t.Errorf("outsider self-add: expected ErrPrivateMembership, got %v", err)
	}
	if err := c.AddParticipant("alice", "carol", now); !errors.Is(err, ErrPrivateMembership) {
		t.Errorf("member add: expected ErrPrivateMembership, got %v", err)
	}
	if err := c.RemoveParticipant("alice", "bob", now); !errors.Is(err, ErrPrivateMembership) {
		t.Errorf("member remove: expected ErrPrivateMembership, got %v", err)
	}
	if len(c.Participants) != 2 || c.IsParticipant("mallory") {
		t.Errorf("pair roster changed: %v", c.ParticipantIDs())
	}
}

func TestNewGroupCreatorIsAdmin(t *testing.T) {
	c := newTestGroup(t)
	if !c.IsAdmin("alice") {
		t.Error("creator should be an admin")
	}
	if c.IsAdmin("bob") {
		t.Error("plain member should not be an admin")
	}
	if len(c.Participants) != 3 {
		t.Errorf("expected 3 participants, got %d", len(c.Participants))
	}
}

func TestAppendRefreshesSummary(t *testing.T) {
	c := newTestPrivate(t)
	first := mustMessage(t, "m1", "alice", "hello")
	second := mustMessage(t, "m2", "bob", "hi there")

	if err := c.Append(first); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := c.Append(second); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if len(c.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(c.Messages))
	}
	if c.Summary == nil || c.Summary.Content != "hi there" || c.Summary.Sender != "bob" {
		t.Errorf("summary does not reflect the latest message: %+v", c.Summary)
	}
	if !c.UpdatedAt.Equal(second.CreatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", c.UpdatedAt, second.CreatedAt)
	}
}

func TestAppendRejectsNonParticipant(t *testing.T) {
	c := newTestPrivate(t)
	msg := mustMessage(t, "m1", "mallory", "intrusion")
	if err := c.Append(msg); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if len(c.Messages) != 0 {
		t.Error("rejected message must not be stored")
	}
}

func TestMessageSeenSeededWithSender(t *testing.T) {
	msg := mustMessage(t, "m1", "alice", "hello")
	if _, ok := msg.SeenAt("alice"); !ok {
		t.Error("sender should be in the seen set from creation")
	}
}

func TestMarkSeenIdempotent(t *testing.T) {
	c := newTestPrivate(t)
	msg := mustMessage(t, "m1", "alice", "hello")
	if err := c.Append(msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	added, err := c.MarkSeen("m1", "bob", at)
	if err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if !added {
		t.Error("first MarkSeen should report an addition")
	}
	added, err = c.MarkSeen("m1", "bob", at.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if added {
		t.Error("repeated MarkSeen should be a no-op")
	}
	if seen, _ := msg.SeenAt("bob"); !seen.Equal(at) {
		t.Errorf("seen timestamp overwritten: got %v, want %v", seen, at)
	}
}

func TestMarkSeenErrors(t *testing.T) {
	c := newTestPrivate(t)
	msg := mustMessage(t, "m1", "alice", "hello")
	if err := c.Append(msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := c.MarkSeen("m1", "mallory", time.Now()); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := c.MarkSeen("missing", "bob", time.Now()); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestGroupMembershipRules(t *testing.T) {
	c := newTestGroup(t)
	now := time.Now()

	if err := c.AddParticipant("bob", "dave", now); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("non-admin add: expected ErrAdminOnly, got %v", err)
	}
	if err := c.AddParticipant("alice", "dave", now); err != nil {
		t.Fatalf("admin add failed: %v", err)
	}
	if !c.IsParticipant("dave") {
		t.Error("dave should be a participant")
	}

	// Members may leave on their own; removing others needs admin rights.
	if err := c.RemoveParticipant("bob", "carol", now); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("non-admin remove: expected ErrAdminOnly, got %v", err)
	}
	if err := c.RemoveParticipant("carol", "carol", now); err != nil {
		t.Fatalf("self removal failed: %v", err)
	}
	if err := c.RemoveParticipant("alice", "dave", now); err != nil {
		t.Fatalf("admin remove failed: %v", err)
	}
}

func TestRemoveParticipantKeepsAdminSubset(t *testing.T) {
	c := newTestGroup(t)
	now := time.Now()
	if err := c.PromoteAdmin("alice", "bob", now); err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if err := c.RemoveParticipant("alice", "bob", now); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if c.IsAdmin("bob") {
		t.Error("removed participant must not retain admin rights")
	}
}

func TestPromoteAdminRequiresParticipant(t *testing.T) {
	c := newTestGroup(t)
	if err := c.PromoteAdmin("bob", "carol", time.Now()); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("expected ErrAdminOnly, got %v", err)
	}
	if err := c.PromoteAdmin("alice", "stranger", time.Now()); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestCloneIsolation(t *testing.T) {
	c := newTestPrivate(t)
	msg := mustMessage(t, "m1", "alice", "hello")
	if err := c.Append(msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	cp := c.Clone()
	cp.Participants["mallory"] = struct{}{}
	cp.Messages[0].Content = "tampered"

	if c.IsParticipant("mallory") {
		t.Error("clone mutation leaked into the participant set")
	}
	if c.Messages[0].Content != "hello" {
		t.Error("clone mutation leaked into the message log")
	}
}

func TestNewMessageValidation(t *testing.T) {
	if _, err := NewMessage(NewMessageParams{ID: "m1", Sender: "alice"}); !errors.Is(err, ErrContentRequired) {
		t.Errorf("expected ErrContentRequired, got %v", err)
	}
	if _, err := NewMessage(NewMessageParams{ID: "m1", Content: "x"}); !errors.Is(err, ErrSenderRequired) {
		t.Errorf("expected ErrSenderRequired, got %v", err)
	}
	if _, err := NewMessage(NewMessageParams{ID: "m1", Sender: "alice", Kind: KindImage}); !errors.Is(err, ErrFileRefRequired) {
		t.Errorf("expected ErrFileRefRequired, got %v", err)
	}
	if _, err := NewMessage(NewMessageParams{ID: "m1", Sender: "alice", Kind: "carrier-pigeon"}); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
}
