package group

import (
	"context"
	"errors"
	"strings"
	"time"

	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/user"
)

var (
	ErrIDRequired      = errors.New("group: id is required")
	ErrNameRequired    = errors.New("group: name is required")
	ErrCreatorRequired = errors.New("group: creator is required")
	ErrNotFound        = errors.New("group: not found")
	ErrNotMember       = errors.New("group: not a member")
	ErrAdminOnly       = errors.New("group: admin rights required")
	ErrLastAdmin       = errors.New("group: cannot remove the last admin")
)

type ID string

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

type Member struct {
	UserID   user.ID
	Role     Role
	JoinedAt time.Time
}

// Group is a creative team: members with roles, an attached group
// conversation and a task board. Admins are always members.
type Group struct {
	ID             ID
	Name           string
	Description    string
	Avatar         string
	Members        map[user.ID]*Member
	ConversationID chat.ConversationID
	IsPrivate      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Group, error)
	ByMember(ctx context.Context, member user.ID) ([]*Group, error)
	Save(ctx context.Context, g *Group) error
	Delete(ctx context.Context, id ID) error
}

type CreateParams struct {
	ID          ID
	Name        string
	Description string
	Avatar      string
	Creator     user.ID
	IsPrivate   bool
	CreatedAt   time.Time
}

func New(params CreateParams) (*Group, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	creator := user.ID(strings.TrimSpace(string(params.Creator)))
	if creator == "" {
		return nil, ErrCreatorRequired
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Group{
		ID:          params.ID,
		Name:        name,
		Description: strings.TrimSpace(params.Description),
		Avatar:      strings.TrimSpace(params.Avatar),
		Members: map[user.ID]*Member{
			creator: {UserID: creator, Role: RoleAdmin, JoinedAt: now},
		},
		IsPrivate: params.IsPrivate,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (g *Group) IsMember(id user.ID) bool {
	_, ok := g.Members[id]
	return ok
}

func (g *Group) RoleOf(id user.ID) (Role, bool) {
	member, ok := g.Members[id]
	if !ok {
		return "", false
	}
	return member.Role, true
}

func (g *Group) IsAdmin(id user.ID) bool {
	role, ok := g.RoleOf(id)
	return ok && role == RoleAdmin
}

// AddMember is idempotent for existing members.
func (g *Group) AddMember(actor, target user.ID, role Role, now time.Time) error {
	if !g.IsAdmin(actor) {
		return ErrAdminOnly
	}
	if role == "" {
		role = RoleMember
	}
	if g.IsMember(target) {
		return nil
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	g.Members[target] = &Member{UserID: target, Role: role, JoinedAt: now}
	g.UpdatedAt = now
	return nil
}

func (g *Group) RemoveMember(actor, target user.ID, now time.Time) error {
	if actor != target && !g.IsAdmin(actor) {
		return ErrAdminOnly
	}
	member, ok := g.Members[target]
	if !ok {
		return ErrNotMember
	}
	if member.Role == RoleAdmin && g.adminCount() <= 1 {
		return ErrLastAdmin
	}
	delete(g.Members, target)
	g.UpdatedAt = timeOrNow(now)
	return nil
}

func (g *Group) ChangeRole(actor, target user.ID, role Role, now time.Time) error {
	if !g.IsAdmin(actor) {
		return ErrAdminOnly
	}
	member, ok := g.Members[target]
	if !ok {
		return ErrNotMember
	}
	if member.Role == RoleAdmin && role != RoleAdmin && g.adminCount() <= 1 {
		return ErrLastAdmin
	}
	member.Role = role
	g.UpdatedAt = timeOrNow(now)
	return nil
}

// Update carries partial edits; nil fields keep the current value.
type Update struct {
	Name        *string
	Description *string
	Avatar      *string
	IsPrivate   *bool
}

func (g *Group) UpdateInfo(actor user.ID, update Update, now time.Time) error {
	if !g.IsAdmin(actor) {
		return ErrAdminOnly
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return ErrNameRequired
		}
		g.Name = name
	}
	if update.Description != nil {
		g.Description = strings.TrimSpace(*update.Description)
	}
	if update.Avatar != nil {
		g.Avatar = strings.TrimSpace(*update.Avatar)
	}
	if update.IsPrivate != nil {
		g.IsPrivate = *update.IsPrivate
	}
	g.UpdatedAt = timeOrNow(now)
	return nil
}

func (g *Group) MemberIDs() []user.ID {
	ids := make([]user.ID, 0, len(g.Members))
	for id := range g.Members {
		ids = append(ids, id)
	}
	return ids
}

func (g *Group) adminCount() int {
	count := 0
	for _, member := range g.Members {
		if member.Role == RoleAdmin {
			count++
		}
	}
	return count
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}
