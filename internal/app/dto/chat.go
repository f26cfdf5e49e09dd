package dto

import (
	"sort"
	"time"

	"artisanchat/internal/domain/chat"
)

// Conversation describes chat metadata without the message log.
type Conversation struct {
	ID           string       `json:"id"`
	Kind         string       `json:"kind"`
	Name         string       `json:"name,omitempty"`
	Description  string       `json:"description,omitempty"`
	Avatar       string       `json:"avatar,omitempty"`
	Participants []string     `json:"participants"`
	Admins       []string     `json:"admins,omitempty"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type LastMessage struct {
	Content  string    `json:"content"`
	SenderID string    `json:"sender_id"`
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
}

// ConversationList is an offset-paginated collection.
type ConversationList struct {
	Items  []Conversation `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	SenderID       string       `json:"sender_id"`
	Content        string       `json:"content"`
	Kind           string       `json:"kind"`
	FileKey        string       `json:"file_key,omitempty"`
	FileName       string       `json:"file_name,omitempty"`
	FileURL        string       `json:"file_url,omitempty"`
	SeenBy         []SeenRecord `json:"seen_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type SeenRecord struct {
	UserID string    `json:"user_id"`
	SeenAt time.Time `json:"seen_at"`
}

// ChatMessageList pages backwards through the log.
type ChatMessageList struct {
	Items   []ChatMessage `json:"items"`
	HasMore bool          `json:"has_more"`
}

func MapConversation(conversation *chat.Conversation) Conversation {
	if conversation == nil {
		return Conversation{}
	}
	out := Conversation{
		ID:           string(conversation.ID),
		Kind:         string(conversation.Kind),
		Name:         conversation.Name,
		Description:  conversation.Description,
		Avatar:       conversation.Avatar,
		Participants: identitySet(conversation.Participants),
		Admins:       identitySet(conversation.Admins),
		CreatedAt:    conversation.CreatedAt,
		UpdatedAt:    conversation.UpdatedAt,
	}
	if conversation.Summary != nil {
		out.LastMessage = &LastMessage{
			Content:  conversation.Summary.Content,
			SenderID: string(conversation.Summary.Sender),
			Kind:     string(conversation.Summary.Kind),
			At:       conversation.Summary.At,
		}
	}
	return out
}

func MapChatMessage(conversationID chat.ConversationID, msg *chat.Message, fileURL string) ChatMessage {
	if msg == nil {
		return ChatMessage{}
	}
	out := ChatMessage{
		ID:             string(msg.ID),
		ConversationID: string(conversationID),
		SenderID:       string(msg.Sender),
		Content:        msg.Content,
		Kind:           string(msg.Kind),
		CreatedAt:      msg.CreatedAt,
	}
	if msg.FileRef != nil {
		out.FileKey = msg.FileRef.Key
		out.FileName = msg.FileRef.Name
		out.FileURL = fileURL
	}
	for id, at := range msg.SeenBy {
		out.SeenBy = append(out.SeenBy, SeenRecord{UserID: string(id), SeenAt: at})
	}
	sort.Slice(out.SeenBy, func(i, j int) bool { return out.SeenBy[i].UserID < out.SeenBy[j].UserID })
	return out
}

func identitySet[K ~string](set map[K]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}
