package chat

import (
	"errors"
	"strings"
	"time"

	"artisanchat/internal/domain/shared/events"
	"artisanchat/internal/domain/user"
)

var (
	ErrNotFound             = errors.New("chat: conversation not found")
	ErrForbidden            = errors.New("chat: not a participant")
	ErrParticipantsRequired = errors.New("chat: participants are required")
	ErrPrivatePairRequired  = errors.New("chat: private conversation requires exactly two participants")
	ErrNameRequired         = errors.New("chat: group conversation requires a name")
	ErrAdminOnly            = errors.New("chat: admin rights required")
	ErrLastParticipant      = errors.New("chat: conversation cannot lose its last participant")
	ErrPrivateMembership    = errors.New("chat: private conversation membership cannot change")
	ErrConversationExists   = errors.New("chat: conversation already exists")
)

type ConversationID string

type Kind string

const (
	Private Kind = "private"
	Group   Kind = "group"
)

// Summary is the denormalized cache of the most recent message, refreshed on
// every successful append so conversation lists render without scanning logs.
type Summary struct {
	Content string
	Sender  user.ID
	Kind    MessageKind
	At      time.Time
}

// Conversation owns an ordered, append-only message log. For Private kind
// there are exactly two participants and at most one conversation per
// unordered pair; Admins is always a subset of Participants.
type Conversation struct {
	ID           ConversationID
	Kind         Kind
	Name         string
	Description  string
	Avatar       string
	Participants map[user.ID]struct{}
	Admins       map[user.ID]struct{}
	Messages     []*Message
	Summary      *Summary
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
	events.EventRecorder
}

type NewPrivateParams struct {
	ID        ConversationID
	A, B      user.ID
	CreatedAt time.Time
}

func NewPrivate(params NewPrivateParams) (*Conversation, error) {
	a := user.ID(strings.TrimSpace(string(params.A)))
	b := user.ID(strings.TrimSpace(string(params.B)))
	if a == "" || b == "" || a == b {
		return nil, ErrPrivatePairRequired
	}
	now := normalizeTime(params.CreatedAt)
	c := &Conversation{
		ID:           params.ID,
		Kind:         Private,
		Participants: map[user.ID]struct{}{a: {}, b: {}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.Record(ConversationCreated{ConversationID: c.ID, Kind: c.Kind, At: now})
	return c, nil
}

type NewGroupParams struct {
	ID           ConversationID
	Name         string
	Description  string
	Avatar       string
	Creator      user.ID
	Participants []user.ID
	CreatedAt    time.Time
}

// NewGroup builds a standalone group chat. It needs at least one participant
// besides the creator; a one-person group chat is a private thread in
// disguise.
func NewGroup(params NewGroupParams) (*Conversation, error) {
	return newGroup(params, 2)
}

// NewAttachedGroup builds the conversation backing a team. It starts with the
// creator alone; the roster follows the team's membership afterwards.
func NewAttachedGroup(params NewGroupParams) (*Conversation, error) {
	return newGroup(params, 1)
}

func newGroup(params NewGroupParams, minParticipants int) (*Conversation, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	creator := user.ID(strings.TrimSpace(string(params.Creator)))
	if creator == "" {
		return nil, ErrParticipantsRequired
	}
	participants := map[user.ID]struct{}{creator: {}}
	for _, p := range params.Participants {
		id := user.ID(strings.TrimSpace(string(p)))
		if id != "" {
			participants[id] = struct{}{}
		}
	}
	if len(participants) < minParticipants {
		return nil, ErrParticipantsRequired
	}
	now := normalizeTime(params.CreatedAt)
	c := &Conversation{
		ID:           params.ID,
		Kind:         Group,
		Name:         name,
		Description:  strings.TrimSpace(params.Description),
		Avatar:       strings.TrimSpace(params.Avatar),
		Participants: participants,
		Admins:       map[user.ID]struct{}{creator: {}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.Record(ConversationCreated{ConversationID: c.ID, Kind: c.Kind, At: now})
	return c, nil
}

func (c *Conversation) IsParticipant(id user.ID) bool {
	_, ok := c.Participants[id]
	return ok
}

func (c *Conversation) IsAdmin(id user.ID) bool {
	_, ok := c.Admins[id]
	return ok
}

func (c *Conversation) ParticipantIDs() []user.ID {
	ids := make([]user.ID, 0, len(c.Participants))
	for id := range c.Participants {
		ids = append(ids, id)
	}
	return ids
}

// Append adds msg to the log and refreshes the summary. Callers are expected
// to have validated participation; append order is the delivery order.
func (c *Conversation) Append(msg *Message) error {
	if msg == nil {
		return ErrMessageNotFound
	}
	if !c.IsParticipant(msg.Sender) {
		return ErrForbidden
	}
	c.Messages = append(c.Messages, msg)
	c.Summary = &Summary{
		Content: msg.Content,
		Sender:  msg.Sender,
		Kind:    msg.Kind,
		At:      msg.CreatedAt,
	}
	c.UpdatedAt = msg.CreatedAt
	c.Record(MessageAppended{
		ConversationID: c.ID,
		MessageID:      msg.ID,
		Sender:         msg.Sender,
		Kind:           msg.Kind,
		At:             msg.CreatedAt,
	})
	return nil
}

func (c *Conversation) MessageByID(id MessageID) (*Message, error) {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, ErrMessageNotFound
}

// MarkSeen records that id has seen the message. Returns true only on the
// first add for this identity; repeated calls are no-ops.
func (c *Conversation) MarkSeen(messageID MessageID, id user.ID, at time.Time) (bool, error) {
	if !c.IsParticipant(id) {
		return false, ErrForbidden
	}
	msg, err := c.MessageByID(messageID)
	if err != nil {
		return false, err
	}
	return msg.MarkSeenBy(id, at), nil
}

// AddParticipant grows a group roster. A private pair is fixed at creation
// and never accepts members.
func (c *Conversation) AddParticipant(actor, target user.ID, now time.Time) error {
	if c.Kind != Group {
		return ErrPrivateMembership
	}
	if !c.IsAdmin(actor) {
		return ErrAdminOnly
	}
	target = user.ID(strings.TrimSpace(string(target)))
	if target == "" {
		return ErrParticipantsRequired
	}
	if c.Participants == nil {
		c.Participants = make(map[user.ID]struct{})
	}
	c.Participants[target] = struct{}{}
	c.UpdatedAt = normalizeTime(now)
	return nil
}

func (c *Conversation) RemoveParticipant(actor, target user.ID, now time.Time) error {
	if c.Kind != Group {
		return ErrPrivateMembership
	}
	if actor != target && !c.IsAdmin(actor) {
		return ErrAdminOnly
	}
	if !c.IsParticipant(target) {
		return nil
	}
	if len(c.Participants) <= 1 {
		return ErrLastParticipant
	}
	delete(c.Participants, target)
	// Admins stay a subset of participants.
	delete(c.Admins, target)
	c.UpdatedAt = normalizeTime(now)
	return nil
}

func (c *Conversation) PromoteAdmin(actor, target user.ID, now time.Time) error {
	if !c.IsAdmin(actor) {
		return ErrAdminOnly
	}
	if !c.IsParticipant(target) {
		return ErrForbidden
	}
	if c.Admins == nil {
		c.Admins = make(map[user.ID]struct{})
	}
	c.Admins[target] = struct{}{}
	c.UpdatedAt = normalizeTime(now)
	return nil
}

func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Participants = make(map[user.ID]struct{}, len(c.Participants))
	for id := range c.Participants {
		cp.Participants[id] = struct{}{}
	}
	cp.Admins = make(map[user.ID]struct{}, len(c.Admins))
	for id := range c.Admins {
		cp.Admins[id] = struct{}{}
	}
	cp.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		cp.Messages[i] = msg.Clone()
	}
	if c.Summary != nil {
		summary := *c.Summary
		cp.Summary = &summary
	}
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}
