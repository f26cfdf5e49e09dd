package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/shared/events"
	"artisanchat/internal/domain/user"
	"artisanchat/internal/infra/storage/memory"
	"artisanchat/internal/realtime/hub"
	"artisanchat/internal/realtime/wire"
)

type capturedFrame struct {
	room     string
	envelope hub.Envelope
}

type recordingBroadcaster struct {
	frames []capturedFrame
}

func (b *recordingBroadcaster) ToRoom(room string, payload []byte) {
	var envelope hub.Envelope
	_ = json.Unmarshal(payload, &envelope)
	b.frames = append(b.frames, capturedFrame{room: room, envelope: envelope})
}

type recordingPublisher struct {
	published []events.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.DomainEvent) error {
	p.published = append(p.published, event)
	return nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *memory.ConversationStore, *recordingBroadcaster, *recordingPublisher) {
	t.Helper()
	store := memory.NewConversationStore()
	rooms := &recordingBroadcaster{}
	publisher := &recordingPublisher{}
	coordinator := &Coordinator{
		Store:  store,
		Rooms:  rooms,
		Events: publisher,
	}
	return coordinator, store, rooms, publisher
}

func seedPrivate(t *testing.T, store *memory.ConversationStore) *chat.Conversation {
	t.Helper()
	conversation, err := chat.NewPrivate(chat.NewPrivateParams{ID: "c1", A: "alice", B: "bob"})
	if err != nil {
		t.Fatalf("NewPrivate failed: %v", err)
	}
	conversation.ClearEvents()
	if err := store.Create(context.Background(), conversation); err != nil {
		t.Fatalf("store create failed: %v", err)
	}
	return conversation
}

func TestSendMessageAppendsAndBroadcasts(t *testing.T) {
	coordinator, store, rooms, publisher := newTestCoordinator(t)
	seedPrivate(t, store)
	ctx := context.Background()

	msg, err := coordinator.SendMessage(ctx, SendMessageParams{
		ConversationID: "c1",
		Sender:         "alice",
		Content:        "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.ID == "" {
		t.Error("message should get an id")
	}
	if _, ok := msg.SeenBy["alice"]; !ok {
		t.Error("sender should be in the seen set")
	}

	stored, err := store.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(stored.Messages) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(stored.Messages))
	}
	if stored.Summary == nil || stored.Summary.Content != "hello" {
		t.Errorf("summary not refreshed: %+v", stored.Summary)
	}

	if len(rooms.frames) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(rooms.frames))
	}
	frame := rooms.frames[0]
	if frame.room != hub.ConversationRoom("c1") {
		t.Errorf("broadcast room = %q", frame.room)
	}
	if frame.envelope.Event != wire.EventNewMessage {
		t.Errorf("broadcast event = %q", frame.envelope.Event)
	}
	if len(publisher.published) != 1 {
		t.Errorf("expected 1 published event, got %d", len(publisher.published))
	}
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	coordinator, store, rooms, _ := newTestCoordinator(t)
	seedPrivate(t, store)

	_, err := coordinator.SendMessage(context.Background(), SendMessageParams{
		ConversationID: "c1",
		Sender:         "mallory",
		Content:        "hi",
	})
	if !errors.Is(err, chat.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if len(rooms.frames) != 0 {
		t.Error("rejected send must not broadcast")
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator(t)
	_, err := coordinator.SendMessage(context.Background(), SendMessageParams{
		ConversationID: "missing",
		Sender:         "alice",
		Content:        "hi",
	})
	if !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkSeenBroadcastsOnlyFirstTime(t *testing.T) {
	coordinator, store, rooms, _ := newTestCoordinator(t)
	seedPrivate(t, store)
	ctx := context.Background()

	msg, err := coordinator.SendMessage(ctx, SendMessageParams{
		ConversationID: "c1",
		Sender:         "alice",
		Content:        "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	rooms.frames = nil

	if err := coordinator.MarkSeen(ctx, "c1", msg.ID, "bob"); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if len(rooms.frames) != 1 || rooms.frames[0].envelope.Event != wire.EventMessageSeen {
		t.Fatalf("expected one message_seen broadcast, got %+v", rooms.frames)
	}

	if err := coordinator.MarkSeen(ctx, "c1", msg.ID, "bob"); err != nil {
		t.Fatalf("repeated MarkSeen failed: %v", err)
	}
	if len(rooms.frames) != 1 {
		t.Error("repeated MarkSeen must not broadcast again")
	}
}

func TestMarkSeenErrors(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	seedPrivate(t, store)
	ctx := context.Background()

	if err := coordinator.MarkSeen(ctx, "c1", "missing", "bob"); !errors.Is(err, chat.ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
	if err := coordinator.MarkSeen(ctx, "c1", "missing", "mallory"); !errors.Is(err, chat.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestGetOrCreatePrivateReusesExisting(t *testing.T) {
	coordinator, _, _, publisher := newTestCoordinator(t)
	ctx := context.Background()

	first, err := coordinator.GetOrCreatePrivate(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(publisher.published) != 1 {
		t.Errorf("creation should publish one event, got %d", len(publisher.published))
	}

	// Order of the pair must not matter.
	second, err := coordinator.GetOrCreatePrivate(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same conversation, got %s and %s", first.ID, second.ID)
	}
	if len(publisher.published) != 1 {
		t.Error("reuse must not publish another event")
	}
}

// missFirstLookup delegates to the real store but reports a miss on the
// first FindPrivateBetween, modelling a second process inserting the pair
// between the lookup and the create.
type missFirstLookup struct {
	*memory.ConversationStore
	misses int
}

func (s *missFirstLookup) FindPrivateBetween(ctx context.Context, a, b user.ID) (*chat.Conversation, error) {
	if s.misses > 0 {
		s.misses--
		return nil, chat.ErrNotFound
	}
	return s.ConversationStore.FindPrivateBetween(ctx, a, b)
}

func TestGetOrCreatePrivateReturnsWinnerOnRace(t *testing.T) {
	coordinator, store, _, publisher := newTestCoordinator(t)
	seedPrivate(t, store)
	coordinator.Store = &missFirstLookup{ConversationStore: store, misses: 1}

	conversation, err := coordinator.GetOrCreatePrivate(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreatePrivate failed: %v", err)
	}
	if conversation.ID != "c1" {
		t.Errorf("expected the existing conversation, got %s", conversation.ID)
	}
	if len(publisher.published) != 0 {
		t.Error("losing the creation race must not publish a creation event")
	}
}

func TestGetOrCreatePrivateConcurrentFirstContact(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]chat.ConversationID, 4)
	for i := range ids {
		a, b := user.ID("alice"), user.ID("bob")
		if i%2 == 1 {
			a, b = b, a
		}
		wg.Add(1)
		go func(i int, a, b user.ID) {
			defer wg.Done()
			conversation, err := coordinator.GetOrCreatePrivate(ctx, a, b)
			if err != nil {
				t.Errorf("GetOrCreatePrivate failed: %v", err)
				return
			}
			ids[i] = conversation.ID
		}(i, a, b)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent first contact split the pair: %v", ids)
		}
	}
	listed, err := store.ListByParticipant(ctx, "alice", 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("expected exactly one conversation, got %d", len(listed))
	}
}

func TestCreateGroupAttachedStartsWithCreator(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	conversation, err := coordinator.CreateGroup(ctx, CreateGroupParams{
		Name:     "painters",
		Creator:  "alice",
		Attached: true,
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if len(conversation.Participants) != 1 || !conversation.IsAdmin("alice") {
		t.Errorf("unexpected roster: %v", conversation.ParticipantIDs())
	}

	// A standalone group chat still needs company.
	_, err = coordinator.CreateGroup(ctx, CreateGroupParams{Name: "solo", Creator: "alice"})
	if !errors.Is(err, chat.ErrParticipantsRequired) {
		t.Errorf("expected ErrParticipantsRequired, got %v", err)
	}
}

func TestCreateGroupValidatesName(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator(t)
	_, err := coordinator.CreateGroup(context.Background(), CreateGroupParams{
		Creator:      "alice",
		Participants: []user.ID{"bob"},
	})
	if !errors.Is(err, chat.ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
}

func TestDeleteAuthorization(t *testing.T) {
	coordinator, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	groupConv, err := coordinator.CreateGroup(ctx, CreateGroupParams{
		Name:         "crew",
		Creator:      "alice",
		Participants: []user.ID{"bob"},
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	if err := coordinator.Delete(ctx, groupConv.ID, "mallory"); !errors.Is(err, chat.ErrForbidden) {
		t.Errorf("outsider delete: expected ErrForbidden, got %v", err)
	}
	if err := coordinator.Delete(ctx, groupConv.ID, "bob"); !errors.Is(err, chat.ErrAdminOnly) {
		t.Errorf("member delete: expected ErrAdminOnly, got %v", err)
	}
	if err := coordinator.Delete(ctx, groupConv.ID, "alice"); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
	if _, err := store.Get(ctx, groupConv.ID); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("conversation should be gone, got %v", err)
	}
}
