package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"artisanchat/internal/domain/chat"
	domainuser "artisanchat/internal/domain/user"
)

// ConversationStore keeps full conversation logs in memory. Callers receive
// clones; the store never hands out its own aggregates.
type ConversationStore struct {
	mu   sync.RWMutex
	byID map[chat.ConversationID]*chat.Conversation
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		byID: make(map[chat.ConversationID]*chat.Conversation),
	}
}

func (s *ConversationStore) Get(ctx context.Context, id chat.ConversationID) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conversation, ok := s.byID[id]; ok {
		return conversation.Clone(), nil
	}
	return nil, chat.ErrNotFound
}

func (s *ConversationStore) FindPrivateBetween(ctx context.Context, a, b domainuser.ID) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conversation := range s.byID {
		if conversation.Kind != chat.Private {
			continue
		}
		if conversation.IsParticipant(a) && conversation.IsParticipant(b) {
			return conversation.Clone(), nil
		}
	}
	return nil, chat.ErrNotFound
}

func (s *ConversationStore) ListByParticipant(ctx context.Context, id domainuser.ID, limit, offset int) ([]*chat.Conversation, error) {
	s.mu.RLock()
	var matched []*chat.Conversation
	for _, conversation := range s.byID {
		if conversation.IsParticipant(id) {
			matched = append(matched, conversation.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Create rejects duplicate ids and, like the document store's unique pair
// index, a second private conversation for the same pair.
func (s *ConversationStore) Create(ctx context.Context, conversation *chat.Conversation) error {
	if conversation == nil || conversation.ID == "" {
		return chat.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[conversation.ID]; ok {
		return chat.ErrConversationExists
	}
	if conversation.Kind == chat.Private {
		for _, existing := range s.byID {
			if existing.Kind == chat.Private && samePair(existing, conversation) {
				return chat.ErrConversationExists
			}
		}
	}
	s.byID[conversation.ID] = conversation.Clone()
	return nil
}

func samePair(a, b *chat.Conversation) bool {
	if len(a.Participants) != len(b.Participants) {
		return false
	}
	for id := range b.Participants {
		if !a.IsParticipant(id) {
			return false
		}
	}
	return true
}

func (s *ConversationStore) AppendMessage(ctx context.Context, id chat.ConversationID, msg *chat.Message) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.byID[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	stored := msg.Clone()
	if err := conversation.Append(stored); err != nil {
		return nil, err
	}
	conversation.ClearEvents()
	return stored.Clone(), nil
}

func (s *ConversationStore) MarkSeen(ctx context.Context, id chat.ConversationID, messageID chat.MessageID, identity domainuser.ID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.byID[id]
	if !ok {
		return false, chat.ErrNotFound
	}
	return conversation.MarkSeen(messageID, identity, at)
}

func (s *ConversationStore) Messages(ctx context.Context, id chat.ConversationID, before chat.MessageID, limit int) ([]*chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversation, ok := s.byID[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	end := len(conversation.Messages)
	if before != "" {
		end = -1
		for i, msg := range conversation.Messages {
			if msg.ID == before {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, chat.ErrMessageNotFound
		}
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	out := make([]*chat.Message, 0, end-start)
	for _, msg := range conversation.Messages[start:end] {
		out = append(out, msg.Clone())
	}
	return out, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id chat.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return chat.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// Update applies fn to the stored aggregate under the store lock. Membership
// changes go through here so the read-modify-write cannot interleave.
func (s *ConversationStore) Update(ctx context.Context, id chat.ConversationID, fn func(*chat.Conversation) error) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.byID[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	if err := fn(conversation); err != nil {
		return nil, err
	}
	conversation.ClearEvents()
	return conversation.Clone(), nil
}

var _ chat.Store = (*ConversationStore)(nil)
