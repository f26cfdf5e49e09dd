package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"artisanchat/internal/app/delivery"
	"artisanchat/internal/app/dto"
	"artisanchat/internal/domain/chat"
	domainuser "artisanchat/internal/domain/user"
)

// ChatHTTP exposes conversation endpoints.
type ChatHTTP interface {
	ListMyConversations(c *gin.Context)
	CreatePrivate(c *gin.Context)
	CreateGroup(c *gin.Context)
	Get(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkSeen(c *gin.Context)
	Delete(c *gin.Context)
	AddParticipant(c *gin.Context)
	RemoveParticipant(c *gin.Context)
	PromoteAdmin(c *gin.Context)
}

// ChatHandler bridges HTTP with the delivery coordinator. Messages sent over
// HTTP fan out to connected websocket clients the same way realtime sends do.
type ChatHandler struct {
	Coordinator *delivery.Coordinator
	Store       chat.Store
	Attachments delivery.AttachmentResolver
	Logger      *slog.Logger
}

func (h ChatHandler) ListMyConversations(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	limit := parsePositiveIntStrict(c.Query("limit"), 20)
	offset := parseNonNegativeInt(c.Query("offset"), 0)
	conversations, err := h.Store.ListByParticipant(c.Request.Context(), domainuser.ID(principal.ID), limit, offset)
	if err != nil {
		h.respondError(c, err, "list conversations", "user_id", principal.ID)
		return
	}
	collection := dto.ConversationList{
		Items:  make([]dto.Conversation, 0, len(conversations)),
		Limit:  limit,
		Offset: offset,
	}
	for _, conversation := range conversations {
		collection.Items = append(collection.Items, dto.MapConversation(conversation))
	}
	c.JSON(http.StatusOK, collection)
}

type createPrivateRequest struct {
	UserID string `json:"user_id"`
}

// CreatePrivate returns the existing thread for the pair when there is one.
func (h ChatHandler) CreatePrivate(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createPrivateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conversation, err := h.Coordinator.GetOrCreatePrivate(c.Request.Context(), domainuser.ID(principal.ID), domainuser.ID(req.UserID))
	if err != nil {
		h.respondChatError(c, err, "create private conversation", "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, dto.MapConversation(conversation))
}

type createGroupRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Avatar       string   `json:"avatar"`
	Participants []string `json:"participants"`
}

func (h ChatHandler) CreateGroup(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	participants := make([]domainuser.ID, 0, len(req.Participants))
	for _, id := range req.Participants {
		participants = append(participants, domainuser.ID(id))
	}
	conversation, err := h.Coordinator.CreateGroup(c.Request.Context(), delivery.CreateGroupParams{
		Name:         req.Name,
		Description:  req.Description,
		Avatar:       req.Avatar,
		Creator:      domainuser.ID(principal.ID),
		Participants: participants,
	})
	if err != nil {
		h.respondChatError(c, err, "create group conversation", "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusCreated, dto.MapConversation(conversation))
}

func (h ChatHandler) Get(c *gin.Context) {
	_, conversation, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.MapConversation(conversation))
}

func (h ChatHandler) ListMessages(c *gin.Context) {
	principal, conversation, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	limit := parsePositiveIntStrict(c.Query("limit"), 50)
	before := chat.MessageID(c.Query("before"))
	messages, err := h.Store.Messages(c.Request.Context(), conversation.ID, before, limit)
	if err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		h.respondError(c, err, "list messages", "conversation_id", string(conversation.ID), "user_id", principal.ID)
		return
	}
	collection := dto.ChatMessageList{
		Items:   make([]dto.ChatMessage, 0, len(messages)),
		HasMore: limit > 0 && len(messages) == limit,
	}
	for _, msg := range messages {
		collection.Items = append(collection.Items, dto.MapChatMessage(conversation.ID, msg, h.fileURL(c, msg)))
	}
	c.JSON(http.StatusOK, collection)
}

type sendMessageRequest struct {
	Content  string `json:"content"`
	Kind     string `json:"kind"`
	FileKey  string `json:"file_key"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	conversationID := chat.ConversationID(c.Param("id"))
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	kind := chat.MessageKind(req.Kind)
	if kind == "" {
		kind = chat.KindText
	}
	var ref *chat.FileRef
	if req.FileKey != "" {
		ref = &chat.FileRef{Key: req.FileKey, Name: req.FileName, Size: req.FileSize}
	}
	msg, err := h.Coordinator.SendMessage(c.Request.Context(), delivery.SendMessageParams{
		ConversationID: conversationID,
		Sender:         domainuser.ID(principal.ID),
		Content:        req.Content,
		Kind:           kind,
		FileRef:        ref,
	})
	if err != nil {
		h.respondChatError(c, err, "send message", "conversation_id", string(conversationID), "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusCreated, dto.MapChatMessage(conversationID, msg, h.fileURL(c, msg)))
}

func (h ChatHandler) MarkSeen(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	conversationID := chat.ConversationID(c.Param("id"))
	messageID := chat.MessageID(c.Param("messageId"))
	err := h.Coordinator.MarkSeen(c.Request.Context(), conversationID, messageID, domainuser.ID(principal.ID))
	if err != nil {
		h.respondChatError(c, err, "mark seen", "conversation_id", string(conversationID), "user_id", principal.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ChatHandler) Delete(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	conversationID := chat.ConversationID(c.Param("id"))
	if err := h.Coordinator.Delete(c.Request.Context(), conversationID, domainuser.ID(principal.ID)); err != nil {
		h.respondChatError(c, err, "delete conversation", "conversation_id", string(conversationID), "user_id", principal.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

type participantRequest struct {
	UserID string `json:"user_id"`
}

func (h ChatHandler) AddParticipant(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.updateMembership(c, principal, func(conversation *chat.Conversation) error {
		return conversation.AddParticipant(domainuser.ID(principal.ID), domainuser.ID(req.UserID), time.Now().UTC())
	})
}

func (h ChatHandler) RemoveParticipant(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	target := domainuser.ID(c.Param("userId"))
	h.updateMembership(c, principal, func(conversation *chat.Conversation) error {
		return conversation.RemoveParticipant(domainuser.ID(principal.ID), target, time.Now().UTC())
	})
}

func (h ChatHandler) PromoteAdmin(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	target := domainuser.ID(c.Param("userId"))
	h.updateMembership(c, principal, func(conversation *chat.Conversation) error {
		return conversation.PromoteAdmin(domainuser.ID(principal.ID), target, time.Now().UTC())
	})
}

// updateMembership applies fn under the store lock. Only current participants
// may touch a roster at all; finer rules (admin rights, conversation kind)
// live on the aggregate.
func (h ChatHandler) updateMembership(c *gin.Context, principal principal, fn func(*chat.Conversation) error) {
	conversationID := chat.ConversationID(c.Param("id"))
	conversation, err := h.Store.Update(c.Request.Context(), conversationID, func(conversation *chat.Conversation) error {
		if !conversation.IsParticipant(domainuser.ID(principal.ID)) {
			return chat.ErrForbidden
		}
		return fn(conversation)
	})
	if err != nil {
		h.respondChatError(c, err, "update membership", "conversation_id", string(conversationID), "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, dto.MapConversation(conversation))
}

func (h ChatHandler) loadForParticipant(c *gin.Context) (principal, *chat.Conversation, bool) {
	p, ok := requirePrincipal(c)
	if !ok {
		return principal{}, nil, false
	}
	conversationID := chat.ConversationID(c.Param("id"))
	conversation, err := h.Store.Get(c.Request.Context(), conversationID)
	if err != nil {
		h.respondChatError(c, err, "load conversation", "conversation_id", string(conversationID), "user_id", p.ID)
		return principal{}, nil, false
	}
	if !conversation.IsParticipant(domainuser.ID(p.ID)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return principal{}, nil, false
	}
	return p, conversation, true
}

func (h ChatHandler) fileURL(c *gin.Context, msg *chat.Message) string {
	if msg.FileRef == nil || h.Attachments == nil {
		return ""
	}
	url, err := h.Attachments.ResolveURL(c.Request.Context(), msg.FileRef.Key)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("attachment resolve failed", "key", msg.FileRef.Key, "error", err)
		}
		return ""
	}
	return url
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, op string, args ...any) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, chat.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
	case errors.Is(err, chat.ErrAdminOnly):
		c.JSON(http.StatusForbidden, gin.H{"error": "admin rights required"})
	case errors.Is(err, chat.ErrLastParticipant),
		errors.Is(err, chat.ErrPrivateMembership),
		errors.Is(err, chat.ErrPrivatePairRequired),
		errors.Is(err, chat.ErrParticipantsRequired),
		errors.Is(err, chat.ErrNameRequired),
		errors.Is(err, chat.ErrContentRequired),
		errors.Is(err, chat.ErrFileRefRequired),
		errors.Is(err, chat.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.respondError(c, err, op, args...)
	}
}

func (h ChatHandler) respondError(c *gin.Context, err error, op string, args ...any) {
	if h.Logger != nil {
		h.Logger.Error(op+" failed", append(args, "error", err)...)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}

func parsePositiveIntStrict(raw string, def int) int {
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func parseNonNegativeInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return def
	}
	return val
}
