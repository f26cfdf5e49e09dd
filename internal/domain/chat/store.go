package chat

import (
	"context"
	"time"

	"artisanchat/internal/domain/user"
)

// Store is the durable conversation contract consumed by the delivery layer.
// Mutating operations are atomic with respect to concurrent callers on the
// same conversation; the delivery coordinator additionally serializes its own
// mutations per conversation to keep append order stable.
type Store interface {
	Get(ctx context.Context, id ConversationID) (*Conversation, error)
	// FindPrivateBetween returns the private conversation for the unordered
	// pair, or ErrNotFound when none exists.
	FindPrivateBetween(ctx context.Context, a, b user.ID) (*Conversation, error)
	ListByParticipant(ctx context.Context, id user.ID, limit, offset int) ([]*Conversation, error)
	// Create returns ErrConversationExists on a duplicate id, and for private
	// conversations also when the unordered pair already has one.
	Create(ctx context.Context, conversation *Conversation) error
	// AppendMessage appends atomically, updating the summary in the same
	// write. It returns the stored message with its assigned position.
	AppendMessage(ctx context.Context, id ConversationID, msg *Message) (*Message, error)
	// MarkSeen is idempotent: it reports true only when the identity was not
	// yet in the message's seen set.
	MarkSeen(ctx context.Context, id ConversationID, messageID MessageID, identity user.ID, at time.Time) (bool, error)
	// Messages pages backwards through the log: messages strictly older than
	// before (or the newest ones when before is empty), newest last.
	Messages(ctx context.Context, id ConversationID, before MessageID, limit int) ([]*Message, error)
	// Update applies fn to the aggregate atomically. Membership and admin
	// changes go through here.
	Update(ctx context.Context, id ConversationID, fn func(*Conversation) error) (*Conversation, error)
	Delete(ctx context.Context, id ConversationID) error
}
