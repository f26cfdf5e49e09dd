package chat

import (
	"time"

	"artisanchat/internal/domain/user"
)

type ConversationCreated struct {
	ConversationID ConversationID
	Kind           Kind
	At             time.Time
}

func (e ConversationCreated) EventName() string   { return "chat.conversation_created" }
func (e ConversationCreated) AggregateID() string { return string(e.ConversationID) }
func (e ConversationCreated) OccurredAt() time.Time {
	return e.At
}

type MessageAppended struct {
	ConversationID ConversationID
	MessageID      MessageID
	Sender         user.ID
	Kind           MessageKind
	At             time.Time
}

func (e MessageAppended) EventName() string   { return "chat.message_appended" }
func (e MessageAppended) AggregateID() string { return string(e.ConversationID) }
func (e MessageAppended) OccurredAt() time.Time {
	return e.At
}

type MessageSeen struct {
	ConversationID ConversationID
	MessageID      MessageID
	SeenBy         user.ID
	At             time.Time
}

func (e MessageSeen) EventName() string   { return "chat.message_seen" }
func (e MessageSeen) AggregateID() string { return string(e.ConversationID) }
func (e MessageSeen) OccurredAt() time.Time {
	return e.At
}

type ConversationDeleted struct {
	ConversationID ConversationID
	By             user.ID
	At             time.Time
}

func (e ConversationDeleted) EventName() string   { return "chat.conversation_deleted" }
func (e ConversationDeleted) AggregateID() string { return string(e.ConversationID) }
func (e ConversationDeleted) OccurredAt() time.Time {
	return e.At
}
