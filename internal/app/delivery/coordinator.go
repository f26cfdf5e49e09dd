package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/shared/events"
	"artisanchat/internal/domain/user"
	"artisanchat/internal/realtime/hub"
	"artisanchat/internal/realtime/wire"
)

var ErrStoreRequired = errors.New("delivery: conversation store required")

// Broadcaster is the slice of the hub the coordinator needs: ordered fan-out
// to a room. Fan-out happens under the per-conversation lock, so frames for
// one conversation reach every member in append order.
type Broadcaster interface {
	ToRoom(room string, payload []byte)
}

// EventPublisher receives committed domain events for out-of-band consumers
// (analytics, offline processing). Publish failures must not fail delivery.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}

// AttachmentResolver turns a stored file key into a fetchable URL. Optional.
type AttachmentResolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}

// Coordinator owns the lifecycle of a message: participant validation,
// atomic append, summary refresh, ordered fan-out and seen-state tracking.
// Every mutation of a conversation flows through here.
type Coordinator struct {
	Store       chat.Store
	Users       user.Repository
	Rooms       Broadcaster
	Events      EventPublisher
	Attachments AttachmentResolver
	Logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// lockFor returns the mutex serializing mutations of one conversation, or of
// one private pair during first contact. Never a global lock: unrelated
// conversations do not contend.
func (c *Coordinator) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks == nil {
		c.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

// pairLockKey is order-insensitive so both sides of a first contact contend
// on the same mutex.
func pairLockKey(a, b user.ID) string {
	if b < a {
		a, b = b, a
	}
	return "pair:" + string(a) + "|" + string(b)
}

type SendMessageParams struct {
	ConversationID chat.ConversationID
	Sender         user.ID
	Content        string
	Kind           chat.MessageKind
	FileRef        *chat.FileRef
}

// SendMessage validates, appends and fans out one message. The broadcast
// only happens after the append committed; a store failure surfaces to the
// caller and leaves room state untouched.
func (c *Coordinator) SendMessage(ctx context.Context, params SendMessageParams) (*chat.Message, error) {
	if c.Store == nil {
		return nil, ErrStoreRequired
	}
	lock := c.lockFor(string(params.ConversationID))
	lock.Lock()
	defer lock.Unlock()

	conversation, err := c.Store.Get(ctx, params.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.IsParticipant(params.Sender) {
		return nil, chat.ErrForbidden
	}

	msg, err := chat.NewMessage(chat.NewMessageParams{
		ID:      chat.MessageID(uuid.NewString()),
		Sender:  params.Sender,
		Content: params.Content,
		Kind:    params.Kind,
		FileRef: params.FileRef,
	})
	if err != nil {
		return nil, err
	}

	stored, err := c.Store.AppendMessage(ctx, params.ConversationID, msg)
	if err != nil {
		return nil, err
	}

	c.broadcast(hub.ConversationRoom(params.ConversationID), wire.EventNewMessage, wire.NewMessage{
		ConversationID: params.ConversationID,
		Message:        c.resolveMessage(ctx, stored),
	})
	c.publish(ctx, chat.MessageAppended{
		ConversationID: params.ConversationID,
		MessageID:      stored.ID,
		Sender:         stored.Sender,
		Kind:           stored.Kind,
		At:             stored.CreatedAt,
	})
	return stored, nil
}

// MarkSeen records the identity in the message's seen set. Idempotent: only
// the first add broadcasts message_seen.
func (c *Coordinator) MarkSeen(ctx context.Context, conversationID chat.ConversationID, messageID chat.MessageID, identity user.ID) error {
	if c.Store == nil {
		return ErrStoreRequired
	}
	lock := c.lockFor(string(conversationID))
	lock.Lock()
	defer lock.Unlock()

	conversation, err := c.Store.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.IsParticipant(identity) {
		return chat.ErrForbidden
	}

	seenAt := time.Now().UTC()
	changed, err := c.Store.MarkSeen(ctx, conversationID, messageID, identity, seenAt)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	c.broadcast(hub.ConversationRoom(conversationID), wire.EventMessageSeen, wire.MessageSeen{
		ConversationID: conversationID,
		MessageID:      messageID,
		IdentityID:     identity,
		SeenAt:         seenAt,
	})
	c.publish(ctx, chat.MessageSeen{
		ConversationID: conversationID,
		MessageID:      messageID,
		SeenBy:         identity,
		At:             seenAt,
	})
	return nil
}

// GetOrCreatePrivate returns the private conversation for the pair, creating
// it on first contact. The pair lock serializes local first contacts; the
// store's pair uniqueness settles races with other processes, in which case
// the winner's conversation is returned.
func (c *Coordinator) GetOrCreatePrivate(ctx context.Context, a, b user.ID) (*chat.Conversation, error) {
	if c.Store == nil {
		return nil, ErrStoreRequired
	}
	lock := c.lockFor(pairLockKey(a, b))
	lock.Lock()
	defer lock.Unlock()

	existing, err := c.Store.FindPrivateBetween(ctx, a, b)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, chat.ErrNotFound) {
		return nil, err
	}
	conversation, err := chat.NewPrivate(chat.NewPrivateParams{
		ID: chat.ConversationID(uuid.NewString()),
		A:  a,
		B:  b,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Store.Create(ctx, conversation); err != nil {
		if errors.Is(err, chat.ErrConversationExists) {
			return c.Store.FindPrivateBetween(ctx, a, b)
		}
		return nil, err
	}
	c.drainEvents(ctx, conversation)
	return conversation, nil
}

type CreateGroupParams struct {
	Name         string
	Description  string
	Avatar       string
	Creator      user.ID
	Participants []user.ID
	// Attached marks a conversation backing a team; it may start with the
	// creator alone.
	Attached bool
}

func (c *Coordinator) CreateGroup(ctx context.Context, params CreateGroupParams) (*chat.Conversation, error) {
	if c.Store == nil {
		return nil, ErrStoreRequired
	}
	construct := chat.NewGroup
	if params.Attached {
		construct = chat.NewAttachedGroup
	}
	conversation, err := construct(chat.NewGroupParams{
		ID:           chat.ConversationID(uuid.NewString()),
		Name:         params.Name,
		Description:  params.Description,
		Avatar:       params.Avatar,
		Creator:      params.Creator,
		Participants: params.Participants,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Store.Create(ctx, conversation); err != nil {
		return nil, err
	}
	c.drainEvents(ctx, conversation)
	return conversation, nil
}

// Delete removes a conversation. Private members may delete their thread;
// groups require admin rights.
func (c *Coordinator) Delete(ctx context.Context, conversationID chat.ConversationID, actor user.ID) error {
	if c.Store == nil {
		return ErrStoreRequired
	}
	lock := c.lockFor(string(conversationID))
	lock.Lock()
	defer lock.Unlock()

	conversation, err := c.Store.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.IsParticipant(actor) {
		return chat.ErrForbidden
	}
	if conversation.Kind == chat.Group && !conversation.IsAdmin(actor) {
		return chat.ErrAdminOnly
	}
	if err := c.Store.Delete(ctx, conversationID); err != nil {
		return err
	}
	c.publish(ctx, chat.ConversationDeleted{
		ConversationID: conversationID,
		By:             actor,
		At:             time.Now().UTC(),
	})
	return nil
}

// resolveMessage fills display fields from the user directory. Resolution is
// best-effort: a directory miss degrades to the bare identity id.
func (c *Coordinator) resolveMessage(ctx context.Context, msg *chat.Message) wire.Message {
	out := wire.Message{
		ID:        msg.ID,
		Sender:    c.resolveSender(ctx, msg.Sender),
		Content:   msg.Content,
		Kind:      msg.Kind,
		CreatedAt: msg.CreatedAt,
	}
	if msg.FileRef != nil {
		ref := wire.FileRef{Key: msg.FileRef.Key, Name: msg.FileRef.Name, Size: msg.FileRef.Size}
		if c.Attachments != nil {
			if url, err := c.Attachments.ResolveURL(ctx, msg.FileRef.Key); err == nil {
				ref.URL = url
			} else if c.Logger != nil {
				c.Logger.Warn("attachment url resolution failed", "key", msg.FileRef.Key, "error", err)
			}
		}
		out.FileRef = &ref
	}
	for id, at := range msg.SeenBy {
		out.SeenBy = append(out.SeenBy, wire.SeenRecord{IdentityID: id, SeenAt: at})
	}
	sort.Slice(out.SeenBy, func(i, j int) bool { return out.SeenBy[i].IdentityID < out.SeenBy[j].IdentityID })
	return out
}

func (c *Coordinator) resolveSender(ctx context.Context, id user.ID) wire.Sender {
	sender := wire.Sender{ID: id}
	if c.Users == nil {
		return sender
	}
	resolved, err := c.Users.ByID(ctx, id)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Debug("sender resolution failed", "identity", id, "error", err)
		}
		return sender
	}
	sender.Username = resolved.Username
	sender.FullName = resolved.FullName
	sender.ProfilePicture = resolved.ProfilePicture
	return sender
}

func (c *Coordinator) broadcast(room, event string, data any) {
	if c.Rooms == nil {
		return
	}
	payload, err := hub.Marshal(event, data)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Error("broadcast encode failed", "event", event, "error", err)
		}
		return
	}
	c.Rooms.ToRoom(room, payload)
}

func (c *Coordinator) drainEvents(ctx context.Context, conversation *chat.Conversation) {
	for _, event := range conversation.PendingEvents() {
		c.publish(ctx, event)
	}
	conversation.ClearEvents()
}

func (c *Coordinator) publish(ctx context.Context, event events.DomainEvent) {
	if c.Events == nil {
		return
	}
	if err := c.Events.Publish(ctx, event); err != nil && c.Logger != nil {
		c.Logger.Warn("event publish failed", "event", event.EventName(), "error", err)
	}
}
