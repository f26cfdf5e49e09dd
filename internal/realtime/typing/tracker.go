package typing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/user"
)

const (
	// EntryTTL is how long a typing signal stays valid without renewal.
	EntryTTL = 5 * time.Second
	// SweepInterval is the cadence of the background expiry sweep.
	SweepInterval = 10 * time.Second
)

// Tracker holds the transient per-conversation typing state. Entries never
// survive the process; a restart starts empty. Reads purge lazily so stale
// entries are invisible even between sweeps.
type Tracker struct {
	mu      sync.Mutex
	entries map[chat.ConversationID]map[user.ID]time.Time
	store   chat.Store
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewTracker(store chat.Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		entries: make(map[chat.ConversationID]map[user.ID]time.Time),
		store:   store,
		ttl:     EntryTTL,
		logger:  logger,
		now:     time.Now,
	}
}

// Start upserts a typing entry after checking the identity belongs to the
// conversation. Non-participants are rejected silently so an outsider cannot
// learn whether a conversation exists. The return value says whether an
// entry was recorded.
func (t *Tracker) Start(ctx context.Context, conversationID chat.ConversationID, id user.ID) bool {
	if !t.isParticipant(ctx, conversationID, id) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[conversationID]; !ok {
		t.entries[conversationID] = make(map[user.ID]time.Time)
	}
	t.entries[conversationID][id] = t.now()
	return true
}

// Stop removes the entry and reports whether it existed. Callers broadcast
// typing_stopped only on true.
func (t *Tracker) Stop(conversationID chat.ConversationID, id user.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	typers, ok := t.entries[conversationID]
	if !ok {
		return false
	}
	if _, present := typers[id]; !present {
		return false
	}
	delete(typers, id)
	if len(typers) == 0 {
		delete(t.entries, conversationID)
	}
	return true
}

// StopAll clears the identity from every conversation it was typing in and
// returns those conversation ids. Used for disconnect cleanup; each
// conversation is handled independently.
func (t *Tracker) StopAll(id user.ID) []chat.ConversationID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var cleaned []chat.ConversationID
	for conversationID, typers := range t.entries {
		if _, ok := typers[id]; !ok {
			continue
		}
		delete(typers, id)
		if len(typers) == 0 {
			delete(t.entries, conversationID)
		}
		cleaned = append(cleaned, conversationID)
	}
	return cleaned
}

// Typing returns the identities currently typing in the conversation,
// purging expired entries first.
func (t *Tracker) Typing(conversationID chat.ConversationID) []user.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepConversationLocked(conversationID, t.now())
	typers, ok := t.entries[conversationID]
	if !ok {
		return nil
	}
	ids := make([]user.ID, 0, len(typers))
	for id := range typers {
		ids = append(ids, id)
	}
	return ids
}

// SweepExpired drops every entry older than the TTL. Expiry removals emit no
// typing_stopped broadcast; clients self-expire their indicators.
func (t *Tracker) SweepExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	removed := 0
	for conversationID := range t.entries {
		removed += t.sweepConversationLocked(conversationID, now)
	}
	return removed
}

// Run drives the periodic sweep until ctx is cancelled. One loop per
// process, started from main alongside the other background workers.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := t.SweepExpired(); removed > 0 && t.logger != nil {
				t.logger.Debug("typing entries expired", "count", removed)
			}
		}
	}
}

func (t *Tracker) sweepConversationLocked(conversationID chat.ConversationID, now time.Time) int {
	typers, ok := t.entries[conversationID]
	if !ok {
		return 0
	}
	removed := 0
	for id, stamped := range typers {
		if now.Sub(stamped) >= t.ttl {
			delete(typers, id)
			removed++
		}
	}
	if len(typers) == 0 {
		delete(t.entries, conversationID)
	}
	return removed
}

func (t *Tracker) isParticipant(ctx context.Context, conversationID chat.ConversationID, id user.ID) bool {
	if t.store == nil {
		return false
	}
	conversation, err := t.store.Get(ctx, conversationID)
	if err != nil {
		if t.logger != nil {
			t.logger.Debug("typing participant check failed", "conversation_id", conversationID, "error", err)
		}
		return false
	}
	return conversation.IsParticipant(id)
}
