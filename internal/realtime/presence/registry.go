package presence

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"artisanchat/internal/domain/user"
)

// Directory persists presence transitions to the user record. Failures are
// non-fatal: the in-memory registry stays authoritative for live state.
type Directory interface {
	SetPresence(ctx context.Context, id user.ID, online bool, lastSeen time.Time) error
}

// Entry is one identity's presence for the initial snapshot sent to a newly
// connected client.
type Entry struct {
	IdentityID user.ID   `json:"identityId"`
	LastSeen   time.Time `json:"lastSeen"`
	IsOnline   bool      `json:"isOnline"`
}

// Registry is the process-wide map of identity to live connections. An
// identity is online while at least one connection is registered; duplicate
// unregister calls are no-ops so disconnect handling stays idempotent.
type Registry struct {
	mu        sync.Mutex
	conns     map[user.ID]map[int64]struct{}
	lastSeen  map[user.ID]time.Time
	directory Directory
	logger    *slog.Logger
	now       func() time.Time
}

func NewRegistry(directory Directory, logger *slog.Logger) *Registry {
	return &Registry{
		conns:     make(map[user.ID]map[int64]struct{}),
		lastSeen:  make(map[user.ID]time.Time),
		directory: directory,
		logger:    logger,
		now:       time.Now,
	}
}

// Register records a connection and reports whether the identity just
// transitioned to online (first live connection).
func (r *Registry) Register(ctx context.Context, id user.ID, connID int64) bool {
	r.mu.Lock()
	existing, ok := r.conns[id]
	if !ok {
		existing = make(map[int64]struct{})
		r.conns[id] = existing
	}
	wentOnline := len(existing) == 0
	existing[connID] = struct{}{}
	now := r.now().UTC()
	r.lastSeen[id] = now
	r.mu.Unlock()

	if wentOnline {
		r.persist(ctx, id, true, now)
	}
	return wentOnline
}

// Unregister removes one connection. It reports whether the identity just
// went offline, together with the stamped last-seen time.
func (r *Registry) Unregister(ctx context.Context, id user.ID, connID int64) (bool, time.Time) {
	r.mu.Lock()
	existing, ok := r.conns[id]
	if !ok {
		seen := r.lastSeen[id]
		r.mu.Unlock()
		return false, seen
	}
	if _, present := existing[connID]; !present {
		seen := r.lastSeen[id]
		r.mu.Unlock()
		return false, seen
	}
	delete(existing, connID)
	now := r.now().UTC()
	r.lastSeen[id] = now
	wentOffline := len(existing) == 0
	if wentOffline {
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if wentOffline {
		r.persist(ctx, id, false, now)
	}
	return wentOffline, now
}

func (r *Registry) IsOnline(id user.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[id]) > 0
}

// Snapshot lists currently online identities, ordered for stable output.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	entries := make([]Entry, 0, len(r.conns))
	for id := range r.conns {
		entries = append(entries, Entry{
			IdentityID: id,
			LastSeen:   r.lastSeen[id],
			IsOnline:   true,
		})
	}
	r.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].IdentityID < entries[j].IdentityID })
	return entries
}

func (r *Registry) persist(ctx context.Context, id user.ID, online bool, lastSeen time.Time) {
	if r.directory == nil {
		return
	}
	if err := r.directory.SetPresence(ctx, id, online, lastSeen); err != nil && r.logger != nil {
		r.logger.Warn("presence write-through failed", "identity", id, "online", online, "error", err)
	}
}
