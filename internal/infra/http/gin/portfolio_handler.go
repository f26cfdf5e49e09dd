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
	"artisanchat/internal/domain/portfolio"
	domainuser "artisanchat/internal/domain/user"
	"artisanchat/internal/realtime/hub"
	"artisanchat/internal/realtime/wire"
)

type PortfolioHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	ListByOwner(c *gin.Context)
	Popular(c *gin.Context)
	ToggleLike(c *gin.Context)
	AddComment(c *gin.Context)
	Delete(c *gin.Context)
}

// PortfolioHandler manages portfolio items. Likes raise a realtime
// notification for the owner when they are connected.
type PortfolioHandler struct {
	Items       portfolio.Repository
	Users       domainuser.Repository
	Attachments delivery.AttachmentResolver
	Hub         *hub.Hub
	Logger      *slog.Logger
}

type createPortfolioRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	FileKey      string   `json:"file_key"`
	FileName     string   `json:"file_name"`
	FileSize     int64    `json:"file_size"`
	ThumbnailKey string   `json:"thumbnail_key"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
}

func (h PortfolioHandler) Create(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	item, err := portfolio.New(portfolio.CreateParams{
		ID:           portfolio.ID(uuid.NewString()),
		Owner:        domainuser.ID(principal.ID),
		Title:        req.Title,
		Description:  req.Description,
		FileKey:      req.FileKey,
		FileName:     req.FileName,
		FileSize:     req.FileSize,
		ThumbnailKey: req.ThumbnailKey,
		Category:     portfolio.Category(req.Category),
		Tags:         req.Tags,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Items.Save(c.Request.Context(), item); err != nil {
		h.respondError(c, err, "create portfolio item")
		return
	}
	c.JSON(http.StatusCreated, dto.MapPortfolioItem(item, principal.ID, h.itemURL(c, item)))
}

// Get counts a view for everyone but the owner.
func (h PortfolioHandler) Get(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	item, err := h.Items.ByID(c.Request.Context(), portfolio.ID(c.Param("id")))
	if err != nil {
		h.respondPortfolioError(c, err, "load portfolio item")
		return
	}
	if item.Owner != domainuser.ID(principal.ID) {
		item.Views++
		if err := h.Items.Save(c.Request.Context(), item); err != nil && h.Logger != nil {
			h.Logger.Debug("view count update failed", "portfolio_id", string(item.ID), "error", err)
		}
	}
	c.JSON(http.StatusOK, dto.MapPortfolioItem(item, principal.ID, h.itemURL(c, item)))
}

type updatePortfolioRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Tags        []string `json:"tags"`
}

func (h PortfolioHandler) Update(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req updatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	item, err := h.Items.ByID(c.Request.Context(), portfolio.ID(c.Param("id")))
	if err != nil {
		h.respondPortfolioError(c, err, "load portfolio item")
		return
	}
	if item.Owner != domainuser.ID(principal.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may modify this item"})
		return
	}
	update := portfolio.Update{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	}
	if req.Category != nil {
		category := portfolio.Category(*req.Category)
		update.Category = &category
	}
	if err := item.UpdateDetails(update, time.Now().UTC()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Items.Save(c.Request.Context(), item); err != nil {
		h.respondError(c, err, "save portfolio item", "portfolio_id", string(item.ID))
		return
	}
	c.JSON(http.StatusOK, dto.MapPortfolioItem(item, principal.ID, h.itemURL(c, item)))
}

func (h PortfolioHandler) ListByOwner(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	owner := domainuser.ID(c.Param("id"))
	limit := parsePositiveIntStrict(c.Query("limit"), 20)
	offset := parseNonNegativeInt(c.Query("offset"), 0)
	items, err := h.Items.ByOwner(c.Request.Context(), owner, limit, offset)
	if err != nil {
		h.respondError(c, err, "list portfolio items", "owner_id", string(owner))
		return
	}
	c.JSON(http.StatusOK, h.collection(c, items, principal.ID, limit, offset))
}

func (h PortfolioHandler) Popular(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	limit := parsePositiveIntStrict(c.Query("limit"), 20)
	items, err := h.Items.Popular(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err, "list popular portfolio items")
		return
	}
	c.JSON(http.StatusOK, h.collection(c, items, principal.ID, limit, 0))
}

func (h PortfolioHandler) ToggleLike(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	actor := domainuser.ID(principal.ID)
	item, err := h.Items.ByID(c.Request.Context(), portfolio.ID(c.Param("id")))
	if err != nil {
		h.respondPortfolioError(c, err, "load portfolio item")
		return
	}
	liked := item.ToggleLike(actor, time.Now().UTC())
	if err := h.Items.Save(c.Request.Context(), item); err != nil {
		h.respondError(c, err, "save portfolio item", "portfolio_id", string(item.ID))
		return
	}
	h.notifyLike(c, item, actor, liked)
	c.JSON(http.StatusOK, dto.MapPortfolioItem(item, principal.ID, h.itemURL(c, item)))
}

type portfolioCommentRequest struct {
	Content string `json:"content"`
}

func (h PortfolioHandler) AddComment(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req portfolioCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	item, err := h.Items.ByID(c.Request.Context(), portfolio.ID(c.Param("id")))
	if err != nil {
		h.respondPortfolioError(c, err, "load portfolio item")
		return
	}
	comment, err := item.AddComment(uuid.NewString(), domainuser.ID(principal.ID), req.Content, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Items.Save(c.Request.Context(), item); err != nil {
		h.respondError(c, err, "save portfolio item", "portfolio_id", string(item.ID))
		return
	}
	c.JSON(http.StatusCreated, dto.PortfolioComment{
		ID:        comment.ID,
		UserID:    string(comment.UserID),
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	})
}

func (h PortfolioHandler) Delete(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	item, err := h.Items.ByID(c.Request.Context(), portfolio.ID(c.Param("id")))
	if err != nil {
		h.respondPortfolioError(c, err, "load portfolio item")
		return
	}
	if item.Owner != domainuser.ID(principal.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may delete this item"})
		return
	}
	if err := h.Items.Delete(c.Request.Context(), item.ID); err != nil {
		h.respondPortfolioError(c, err, "delete portfolio item")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h PortfolioHandler) collection(c *gin.Context, items []*portfolio.Item, viewer string, limit, offset int) dto.PortfolioList {
	out := dto.PortfolioList{
		Items:  make([]dto.PortfolioItem, 0, len(items)),
		Limit:  limit,
		Offset: offset,
	}
	for _, item := range items {
		out.Items = append(out.Items, dto.MapPortfolioItem(item, viewer, h.itemURL(c, item)))
	}
	return out
}

func (h PortfolioHandler) notifyLike(c *gin.Context, item *portfolio.Item, actor domainuser.ID, liked bool) {
	if h.Hub == nil || item.Owner == actor {
		return
	}
	action := "like"
	if !liked {
		action = "unlike"
	}
	sender := wire.Sender{ID: actor}
	if h.Users != nil {
		if u, err := h.Users.ByID(c.Request.Context(), actor); err == nil {
			sender.Username = u.Username
			sender.FullName = u.FullName
			sender.ProfilePicture = u.ProfilePicture
		}
	}
	payload, err := hub.Marshal(wire.EventPortfolioLiked, wire.PortfolioLiked{
		PortfolioID: string(item.ID),
		LikedBy:     sender,
		Action:      action,
	})
	if err != nil {
		return
	}
	h.Hub.ToIdentity(item.Owner, payload)
}

func (h PortfolioHandler) itemURL(c *gin.Context, item *portfolio.Item) string {
	if h.Attachments == nil || item.FileKey == "" {
		return ""
	}
	url, err := h.Attachments.ResolveURL(c.Request.Context(), item.FileKey)
	if err != nil {
		return ""
	}
	return url
}

func (h PortfolioHandler) respondPortfolioError(c *gin.Context, err error, op string) {
	if errors.Is(err, portfolio.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "portfolio item not found"})
		return
	}
	h.respondError(c, err, op)
}

func (h PortfolioHandler) respondError(c *gin.Context, err error, op string, args ...any) {
	if h.Logger != nil {
		h.Logger.Error(op+" failed", append(args, "error", err)...)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}
