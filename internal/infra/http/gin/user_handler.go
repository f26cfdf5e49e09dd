package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"artisanchat/internal/app/dto"
	domainuser "artisanchat/internal/domain/user"
	"artisanchat/internal/realtime/presence"
)

type UserHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Search(c *gin.Context)
	UpdateProfile(c *gin.Context)
	Follow(c *gin.Context)
	Unfollow(c *gin.Context)
	Followers(c *gin.Context)
	Following(c *gin.Context)
	Presence(c *gin.Context)
}

type UserHandler struct {
	Users    domainuser.Repository
	Registry *presence.Registry
	Logger   *slog.Logger
}

type createUserRequest struct {
	Username       string   `json:"username"`
	FullName       string   `json:"full_name"`
	Bio            string   `json:"bio"`
	Skills         []string `json:"skills"`
	Location       string   `json:"location"`
	ProfilePicture string   `json:"profile_picture"`
}

type updateProfileRequest struct {
	FullName       *string  `json:"full_name"`
	Bio            *string  `json:"bio"`
	Skills         []string `json:"skills"`
	Location       *string  `json:"location"`
	ProfilePicture *string  `json:"profile_picture"`
}

func (h UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := domainuser.New(domainuser.CreateParams{
		ID:             domainuser.ID(uuid.NewString()),
		Username:       req.Username,
		FullName:       req.FullName,
		Bio:            req.Bio,
		Skills:         req.Skills,
		Location:       req.Location,
		ProfilePicture: req.ProfilePicture,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Users.Save(c.Request.Context(), user); err != nil {
		if errors.Is(err, domainuser.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		h.respondError(c, err, "create user")
		return
	}
	c.JSON(http.StatusCreated, dto.MapUserProfile(user))
}

func (h UserHandler) Get(c *gin.Context) {
	id := c.Param("id")
	user, err := h.Users.ByID(c.Request.Context(), domainuser.ID(id))
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.respondError(c, err, "load user", "user_id", id)
		return
	}
	c.JSON(http.StatusOK, dto.MapUserProfile(user))
}

func (h UserHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	limit := parsePositiveIntStrict(c.Query("limit"), 20)
	users, err := h.Users.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.respondError(c, err, "search users", "query", query)
		return
	}
	out := make([]dto.UserSummary, 0, len(users))
	for _, user := range users {
		out = append(out, dto.MapUserSummary(user))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h UserHandler) UpdateProfile(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := h.Users.ByID(c.Request.Context(), domainuser.ID(principal.ID))
	if err != nil {
		h.respondError(c, err, "load user", "user_id", principal.ID)
		return
	}
	update := domainuser.ProfileUpdate{
		FullName:       req.FullName,
		Bio:            req.Bio,
		Skills:         req.Skills,
		Location:       req.Location,
		ProfilePicture: req.ProfilePicture,
	}
	if err := user.UpdateProfile(update, time.Now().UTC()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Users.Save(c.Request.Context(), user); err != nil {
		h.respondError(c, err, "save user", "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, dto.MapUserProfile(user))
}

// Follow updates both sides of the edge: the target gains a follower, the
// actor gains a following entry.
func (h UserHandler) Follow(c *gin.Context) {
	h.setFollow(c, true)
}

func (h UserHandler) Unfollow(c *gin.Context) {
	h.setFollow(c, false)
}

func (h UserHandler) setFollow(c *gin.Context, follow bool) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	targetID := domainuser.ID(c.Param("id"))
	actorID := domainuser.ID(principal.ID)
	ctx := c.Request.Context()

	target, err := h.Users.ByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.respondError(c, err, "load user", "user_id", string(targetID))
		return
	}
	actor, err := h.Users.ByID(ctx, actorID)
	if err != nil {
		h.respondError(c, err, "load user", "user_id", string(actorID))
		return
	}

	now := time.Now().UTC()
	if follow {
		if err := target.Follow(actorID, now); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := actor.AddFollowing(targetID, now); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		target.Unfollow(actorID, now)
		actor.RemoveFollowing(targetID, now)
	}
	if err := h.Users.Save(ctx, target); err != nil {
		h.respondError(c, err, "save user", "user_id", string(targetID))
		return
	}
	if err := h.Users.Save(ctx, actor); err != nil {
		h.respondError(c, err, "save user", "user_id", string(actorID))
		return
	}
	c.JSON(http.StatusOK, dto.MapUserProfile(target))
}

func (h UserHandler) Followers(c *gin.Context) {
	h.listEdges(c, func(u *domainuser.User) map[domainuser.ID]struct{} { return u.Followers })
}

func (h UserHandler) Following(c *gin.Context) {
	h.listEdges(c, func(u *domainuser.User) map[domainuser.ID]struct{} { return u.Following })
}

// listEdges resolves one side of the follow graph to user summaries.
// Identities that no longer resolve are skipped.
func (h UserHandler) listEdges(c *gin.Context, edges func(*domainuser.User) map[domainuser.ID]struct{}) {
	if _, ok := requirePrincipal(c); !ok {
		return
	}
	id := c.Param("id")
	user, err := h.Users.ByID(c.Request.Context(), domainuser.ID(id))
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.respondError(c, err, "load user", "user_id", id)
		return
	}
	set := edges(user)
	out := make([]dto.UserSummary, 0, len(set))
	for edge := range set {
		linked, err := h.Users.ByID(c.Request.Context(), edge)
		if err != nil {
			continue
		}
		out = append(out, dto.MapUserSummary(linked))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	c.JSON(http.StatusOK, gin.H{"items": out})
}

// Presence returns the live snapshot from the in-process registry.
func (h UserHandler) Presence(c *gin.Context) {
	if _, ok := requirePrincipal(c); !ok {
		return
	}
	if h.Registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identities": h.Registry.Snapshot()})
}

func (h UserHandler) respondError(c *gin.Context, err error, op string, args ...any) {
	if h.Logger != nil {
		h.Logger.Error(op+" failed", append(args, "error", err)...)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}
