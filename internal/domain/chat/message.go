package chat

import (
	"errors"
	"strings"
	"time"

	"artisanchat/internal/domain/user"
)

var (
	ErrSenderRequired  = errors.New("chat: sender is required")
	ErrContentRequired = errors.New("chat: text message requires content")
	ErrFileRefRequired = errors.New("chat: file message requires a file reference")
	ErrInvalidKind     = errors.New("chat: invalid message kind")
	ErrMessageNotFound = errors.New("chat: message not found")
)

type MessageID string

type MessageKind string

const (
	KindText      MessageKind = "text"
	KindImage     MessageKind = "image"
	KindVideo     MessageKind = "video"
	KindFile      MessageKind = "file"
	KindPortfolio MessageKind = "portfolio"
)

// FileRef points at an attachment object. The object itself is uploaded
// elsewhere; messages carry only the reference.
type FileRef struct {
	Key  string
	Name string
	Size int64
}

// Message is an entry in a conversation's append-only log. Sender, Content
// and CreatedAt are immutable after creation; only SeenBy and the edit
// markers may change.
type Message struct {
	ID        MessageID
	Sender    user.ID
	Content   string
	Kind      MessageKind
	FileRef   *FileRef
	SeenBy    map[user.ID]time.Time
	Edited    bool
	EditedAt  time.Time
	CreatedAt time.Time
}

type NewMessageParams struct {
	ID        MessageID
	Sender    user.ID
	Content   string
	Kind      MessageKind
	FileRef   *FileRef
	CreatedAt time.Time
}

func NewMessage(params NewMessageParams) (*Message, error) {
	sender := user.ID(strings.TrimSpace(string(params.Sender)))
	if sender == "" {
		return nil, ErrSenderRequired
	}
	kind := params.Kind
	if kind == "" {
		kind = KindText
	}
	switch kind {
	case KindText, KindImage, KindVideo, KindFile, KindPortfolio:
	default:
		return nil, ErrInvalidKind
	}
	content := strings.TrimSpace(params.Content)
	if kind == KindText && content == "" {
		return nil, ErrContentRequired
	}
	if kind != KindText && kind != KindPortfolio && params.FileRef == nil {
		return nil, ErrFileRefRequired
	}

	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	// The sender has implicitly seen their own message.
	return &Message{
		ID:        params.ID,
		Sender:    sender,
		Content:   content,
		Kind:      kind,
		FileRef:   params.FileRef,
		SeenBy:    map[user.ID]time.Time{sender: now},
		CreatedAt: now,
	}, nil
}

// MarkSeenBy adds id to the seen set. Returns false when the entry already
// existed; the set only ever grows.
func (m *Message) MarkSeenBy(id user.ID, at time.Time) bool {
	if m.SeenBy == nil {
		m.SeenBy = make(map[user.ID]time.Time)
	}
	if _, ok := m.SeenBy[id]; ok {
		return false
	}
	if at.IsZero() {
		at = time.Now()
	}
	m.SeenBy[id] = at.UTC()
	return true
}

func (m *Message) SeenAt(id user.ID) (time.Time, bool) {
	at, ok := m.SeenBy[id]
	return at, ok
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	cp.SeenBy = make(map[user.ID]time.Time, len(m.SeenBy))
	for id, at := range m.SeenBy {
		cp.SeenBy[id] = at
	}
	if m.FileRef != nil {
		ref := *m.FileRef
		cp.FileRef = &ref
	}
	return &cp
}
