package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"artisanchat/internal/app/delivery"
	"artisanchat/internal/app/dto"
	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/group"
	domainuser "artisanchat/internal/domain/user"
	"artisanchat/internal/realtime/hub"
	"artisanchat/internal/realtime/wire"
)

type GroupHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	AddMember(c *gin.Context)
	RemoveMember(c *gin.Context)
	ChangeRole(c *gin.Context)
}

// GroupHandler manages creative teams. Creating a group also creates its
// attached group conversation so members can chat immediately.
type GroupHandler struct {
	Groups      group.Repository
	Coordinator *delivery.Coordinator
	Store       chat.Store
	Hub         *hub.Hub
	Users       domainuser.Repository
	Logger      *slog.Logger
}

type createGroupTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	IsPrivate   bool   `json:"is_private"`
}

func (h GroupHandler) Create(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createGroupTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	creator := domainuser.ID(principal.ID)
	g, err := group.New(group.CreateParams{
		ID:          group.ID(uuid.NewString()),
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		Creator:     creator,
		IsPrivate:   req.IsPrivate,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.Coordinator != nil {
		conversation, err := h.Coordinator.CreateGroup(c.Request.Context(), delivery.CreateGroupParams{
			Name:        req.Name,
			Description: req.Description,
			Avatar:      req.Avatar,
			Creator:     creator,
			Attached:    true,
		})
		if err != nil {
			h.respondError(c, err, "create group conversation")
			return
		}
		g.ConversationID = conversation.ID
	}
	if err := h.Groups.Save(c.Request.Context(), g); err != nil {
		h.respondError(c, err, "create group")
		return
	}
	c.JSON(http.StatusCreated, dto.MapGroup(g))
}

func (h GroupHandler) List(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	groups, err := h.Groups.ByMember(c.Request.Context(), domainuser.ID(principal.ID))
	if err != nil {
		h.respondError(c, err, "list groups", "user_id", principal.ID)
		return
	}
	out := make([]dto.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, dto.MapGroup(g))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h GroupHandler) Get(c *gin.Context) {
	_, g, ok := h.loadForMember(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.MapGroup(g))
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Avatar      *string `json:"avatar"`
	IsPrivate   *bool   `json:"is_private"`
}

func (h GroupHandler) Update(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req updateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	g, err := h.Groups.ByID(c.Request.Context(), group.ID(c.Param("id")))
	if err != nil {
		h.respondGroupError(c, err, "load group")
		return
	}
	update := group.Update{
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		IsPrivate:   req.IsPrivate,
	}
	if err := g.UpdateInfo(domainuser.ID(principal.ID), update, time.Now().UTC()); err != nil {
		if errors.Is(err, group.ErrNameRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.respondGroupError(c, err, "update group")
		return
	}
	if err := h.Groups.Save(c.Request.Context(), g); err != nil {
		h.respondError(c, err, "save group", "group_id", string(g.ID))
		return
	}
	c.JSON(http.StatusOK, dto.MapGroup(g))
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h GroupHandler) AddMember(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	actor := domainuser.ID(principal.ID)
	target := domainuser.ID(req.UserID)
	g, err := h.Groups.ByID(c.Request.Context(), group.ID(c.Param("id")))
	if err != nil {
		h.respondGroupError(c, err, "load group")
		return
	}
	if err := g.AddMember(actor, target, group.Role(req.Role), time.Now().UTC()); err != nil {
		h.respondGroupError(c, err, "add member")
		return
	}
	if err := h.Groups.Save(c.Request.Context(), g); err != nil {
		h.respondError(c, err, "save group", "group_id", string(g.ID))
		return
	}
	h.syncRoster(c, g, func(conversation *chat.Conversation) error {
		return conversation.AddParticipant(actor, target, time.Now().UTC())
	})
	h.notifyInvitation(c, g, actor, target)
	c.JSON(http.StatusOK, dto.MapGroup(g))
}

func (h GroupHandler) RemoveMember(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	actor := domainuser.ID(principal.ID)
	target := domainuser.ID(c.Param("userId"))
	g, err := h.Groups.ByID(c.Request.Context(), group.ID(c.Param("id")))
	if err != nil {
		h.respondGroupError(c, err, "load group")
		return
	}
	if err := g.RemoveMember(actor, target, time.Now().UTC()); err != nil {
		h.respondGroupError(c, err, "remove member")
		return
	}
	if err := h.Groups.Save(c.Request.Context(), g); err != nil {
		h.respondError(c, err, "save group", "group_id", string(g.ID))
		return
	}
	h.syncRoster(c, g, func(conversation *chat.Conversation) error {
		return conversation.RemoveParticipant(actor, target, time.Now().UTC())
	})
	c.JSON(http.StatusOK, dto.MapGroup(g))
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h GroupHandler) ChangeRole(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	g, err := h.Groups.ByID(c.Request.Context(), group.ID(c.Param("id")))
	if err != nil {
		h.respondGroupError(c, err, "load group")
		return
	}
	err = g.ChangeRole(domainuser.ID(principal.ID), domainuser.ID(c.Param("userId")), group.Role(req.Role), time.Now().UTC())
	if err != nil {
		h.respondGroupError(c, err, "change role")
		return
	}
	if err := h.Groups.Save(c.Request.Context(), g); err != nil {
		h.respondError(c, err, "save group", "group_id", string(g.ID))
		return
	}
	c.JSON(http.StatusOK, dto.MapGroup(g))
}

func (h GroupHandler) loadForMember(c *gin.Context) (principal, *group.Group, bool) {
	p, ok := requirePrincipal(c)
	if !ok {
		return principal{}, nil, false
	}
	g, err := h.Groups.ByID(c.Request.Context(), group.ID(c.Param("id")))
	if err != nil {
		h.respondGroupError(c, err, "load group")
		return principal{}, nil, false
	}
	if g.IsPrivate && !g.IsMember(domainuser.ID(p.ID)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return principal{}, nil, false
	}
	return p, g, true
}

// syncRoster mirrors membership changes into the attached conversation.
// Failures are logged, not surfaced: the group itself already saved.
func (h GroupHandler) syncRoster(c *gin.Context, g *group.Group, fn func(*chat.Conversation) error) {
	if h.Store == nil || g.ConversationID == "" {
		return
	}
	if _, err := h.Store.Update(c.Request.Context(), g.ConversationID, fn); err != nil && h.Logger != nil {
		h.Logger.Warn("conversation roster sync failed", "group_id", string(g.ID), "error", err)
	}
}

func (h GroupHandler) notifyInvitation(c *gin.Context, g *group.Group, actor, target domainuser.ID) {
	if h.Hub == nil {
		return
	}
	sender := wire.Sender{ID: actor}
	if h.Users != nil {
		if u, err := h.Users.ByID(c.Request.Context(), actor); err == nil {
			sender.Username = u.Username
			sender.FullName = u.FullName
			sender.ProfilePicture = u.ProfilePicture
		}
	}
	payload, err := hub.Marshal(wire.EventGroupInvitation, wire.GroupInvitation{
		GroupID:   string(g.ID),
		GroupName: g.Name,
		InvitedBy: sender,
	})
	if err != nil {
		return
	}
	h.Hub.ToIdentity(target, payload)
}

func (h GroupHandler) respondGroupError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, group.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
	case errors.Is(err, group.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
	case errors.Is(err, group.ErrAdminOnly):
		c.JSON(http.StatusForbidden, gin.H{"error": "admin rights required"})
	case errors.Is(err, group.ErrLastAdmin):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.respondError(c, err, op)
	}
}

func (h GroupHandler) respondError(c *gin.Context, err error, op string, args ...any) {
	if h.Logger != nil {
		h.Logger.Error(op+" failed", append(args, "error", err)...)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}
