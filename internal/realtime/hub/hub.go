package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/user"
)

// IdentityRoom is the personal notification room every authenticated
// connection joins on open.
func IdentityRoom(id user.ID) string {
	return fmt.Sprintf("identity:%s", id)
}

// ConversationRoom groups the connections subscribed to one conversation.
func ConversationRoom(id chat.ConversationID) string {
	return fmt.Sprintf("conversation:%s", id)
}

// Envelope is the frame format on the wire, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Marshal encodes an event frame once so a broadcast serializes a single time
// regardless of room size.
func Marshal(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("hub: encode %s: %w", event, err)
		}
		raw = encoded
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Hub tracks live connections and their room membership. All access is
// mediated here; nothing outside the hub touches the maps.
type Hub struct {
	mu         sync.RWMutex
	conns      map[int64]*Conn
	byIdentity map[user.ID]map[int64]*Conn
	rooms      map[string]map[int64]*Conn
	joined     map[int64]map[string]struct{}
}

func New() *Hub {
	return &Hub{
		conns:      make(map[int64]*Conn),
		byIdentity: make(map[user.ID]map[int64]*Conn),
		rooms:      make(map[string]map[int64]*Conn),
		joined:     make(map[int64]map[string]struct{}),
	}
}

func (h *Hub) Add(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID()] = conn
	if _, ok := h.byIdentity[conn.Identity()]; !ok {
		h.byIdentity[conn.Identity()] = make(map[int64]*Conn)
	}
	h.byIdentity[conn.Identity()][conn.ID()] = conn
}

// Remove detaches the connection from every room. Safe to call twice.
func (h *Hub) Remove(connID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	if identityConns, ok := h.byIdentity[conn.Identity()]; ok {
		delete(identityConns, connID)
		if len(identityConns) == 0 {
			delete(h.byIdentity, conn.Identity())
		}
	}
	for room := range h.joined[connID] {
		h.leaveLocked(connID, room)
	}
	delete(h.joined, connID)
}

func (h *Hub) Join(conn *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn.ID()]; !ok {
		return
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[int64]*Conn)
	}
	h.rooms[room][conn.ID()] = conn
	if _, ok := h.joined[conn.ID()]; !ok {
		h.joined[conn.ID()] = make(map[string]struct{})
	}
	h.joined[conn.ID()][room] = struct{}{}
}

func (h *Hub) Leave(connID int64, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, room)
	if joined, ok := h.joined[connID]; ok {
		delete(joined, room)
	}
}

func (h *Hub) leaveLocked(connID int64, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) InRoom(connID int64, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// ToRoom fans a pre-marshaled frame out to every member of the room,
// including any of the sender's own connections that joined it.
func (h *Hub) ToRoom(room string, payload []byte) {
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for _, conn := range h.rooms[room] {
		members = append(members, conn)
	}
	h.mu.RUnlock()
	for _, conn := range members {
		_ = conn.Send(payload)
	}
}

// ToRoomExcept skips every connection belonging to the excluded identity.
func (h *Hub) ToRoomExcept(room string, except user.ID, payload []byte) {
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for _, conn := range h.rooms[room] {
		if conn.Identity() == except {
			continue
		}
		members = append(members, conn)
	}
	h.mu.RUnlock()
	for _, conn := range members {
		_ = conn.Send(payload)
	}
}

// ToAll broadcasts to every open connection except those of the excluded
// identity. Used for presence transitions.
func (h *Hub) ToAll(except user.ID, payload []byte) {
	h.mu.RLock()
	all := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		if except != "" && conn.Identity() == except {
			continue
		}
		all = append(all, conn)
	}
	h.mu.RUnlock()
	for _, conn := range all {
		_ = conn.Send(payload)
	}
}

// ToIdentity delivers to every connection of one identity.
func (h *Hub) ToIdentity(id user.ID, payload []byte) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byIdentity[id]))
	for _, conn := range h.byIdentity[id] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		_ = conn.Send(payload)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
