// Package wire defines the realtime event surface shared by the gateway and
// the delivery coordinator: event names and their JSON payloads.
package wire

import (
	"time"

	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/user"
	"artisanchat/internal/realtime/presence"
)

// Client to server.
const (
	EventJoinChat    = "join_chat"
	EventLeaveChat   = "leave_chat"
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventMarkSeen    = "mark_seen"
	// Relay events: the server forwards these to the interested rooms
	// without owning the underlying state change.
	EventPortfolioLike = "portfolio_like"
	EventTaskUpdate    = "task_update"
	EventGroupInvite   = "group_invite"
)

// Server to client.
const (
	EventPresenceSnapshot = "presence_snapshot"
	EventIdentityOnline   = "identity_online"
	EventIdentityOffline  = "identity_offline"
	EventNewMessage       = "new_message"
	EventTypingStarted    = "typing_started"
	EventTypingStopped    = "typing_stopped"
	EventMessageSeen      = "message_seen"
	EventPortfolioLiked   = "portfolio_liked"
	EventTaskUpdated      = "task_updated"
	EventGroupInvitation  = "group_invitation"
	EventError            = "error"
)

// Sender carries the display fields resolved from the user directory so
// clients render messages without a second lookup.
type Sender struct {
	ID             user.ID `json:"id"`
	Username       string  `json:"username,omitempty"`
	FullName       string  `json:"fullName,omitempty"`
	ProfilePicture string  `json:"profilePicture,omitempty"`
}

type FileRef struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url,omitempty"`
}

type Message struct {
	ID        chat.MessageID   `json:"id"`
	Sender    Sender           `json:"sender"`
	Content   string           `json:"content"`
	Kind      chat.MessageKind `json:"kind"`
	FileRef   *FileRef         `json:"fileRef,omitempty"`
	SeenBy    []SeenRecord     `json:"seenBy,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

type SeenRecord struct {
	IdentityID user.ID   `json:"identityId"`
	SeenAt     time.Time `json:"seenAt"`
}

type NewMessage struct {
	ConversationID chat.ConversationID `json:"conversationId"`
	Message        Message             `json:"message"`
}

type PresenceSnapshot struct {
	Identities []presence.Entry `json:"identities"`
}

type PresenceChange struct {
	IdentityID user.ID   `json:"identityId"`
	LastSeen   time.Time `json:"lastSeen"`
}

type TypingChange struct {
	ConversationID chat.ConversationID `json:"conversationId"`
	IdentityID     user.ID             `json:"identityId"`
}

type MessageSeen struct {
	ConversationID chat.ConversationID `json:"conversationId"`
	MessageID      chat.MessageID      `json:"messageId"`
	IdentityID     user.ID             `json:"identityId"`
	SeenAt         time.Time           `json:"seenAt"`
}

type Error struct {
	Message string `json:"message"`
}

// Inbound command payloads.

type JoinChat struct {
	ConversationID chat.ConversationID `json:"conversationId"`
}

type SendMessage struct {
	ConversationID chat.ConversationID `json:"conversationId"`
	Content        string              `json:"content"`
	Kind           chat.MessageKind    `json:"kind"`
	FileRef        *FileRef            `json:"fileRef,omitempty"`
}

type MarkSeen struct {
	ConversationID chat.ConversationID `json:"conversationId"`
	MessageID      chat.MessageID      `json:"messageId"`
}

type PortfolioLike struct {
	PortfolioID string  `json:"portfolioId"`
	OwnerID     user.ID `json:"ownerId"`
	Action      string  `json:"action"`
}

type PortfolioLiked struct {
	PortfolioID string `json:"portfolioId"`
	LikedBy     Sender `json:"likedBy"`
	Action      string `json:"action"`
}

type TaskUpdate struct {
	GroupID string         `json:"groupId"`
	TaskID  string         `json:"taskId"`
	Update  map[string]any `json:"update"`
}

type TaskUpdated struct {
	TaskID    string         `json:"taskId"`
	Update    map[string]any `json:"update"`
	UpdatedBy Sender         `json:"updatedBy"`
}

type GroupInvite struct {
	IdentityID user.ID `json:"identityId"`
	GroupID    string  `json:"groupId"`
	GroupName  string  `json:"groupName"`
}

type GroupInvitation struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	InvitedBy Sender `json:"invitedBy"`
}
