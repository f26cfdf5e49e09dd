package dto

import (
	"sort"
	"time"

	"artisanchat/internal/domain/group"
)

type Group struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Avatar         string        `json:"avatar,omitempty"`
	Members        []GroupMember `json:"members"`
	ConversationID string        `json:"conversation_id,omitempty"`
	IsPrivate      bool          `json:"is_private"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type GroupMember struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func MapGroup(g *group.Group) Group {
	if g == nil {
		return Group{}
	}
	out := Group{
		ID:             string(g.ID),
		Name:           g.Name,
		Description:    g.Description,
		Avatar:         g.Avatar,
		ConversationID: string(g.ConversationID),
		IsPrivate:      g.IsPrivate,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
	for _, member := range g.Members {
		out.Members = append(out.Members, GroupMember{
			UserID:   string(member.UserID),
			Role:     string(member.Role),
			JoinedAt: member.JoinedAt,
		})
	}
	sort.Slice(out.Members, func(i, j int) bool { return out.Members[i].UserID < out.Members[j].UserID })
	return out
}
