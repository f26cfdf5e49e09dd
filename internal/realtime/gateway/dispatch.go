package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"artisanchat/internal/app/delivery"
	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/group"
	"artisanchat/internal/domain/user"
	"artisanchat/internal/realtime/hub"
	"artisanchat/internal/realtime/wire"
)

func (g *Gateway) dispatch(ctx context.Context, conn *hub.Conn, frame hub.Envelope) {
	switch frame.Event {
	case wire.EventJoinChat:
		g.onJoinChat(ctx, conn, frame.Data)
	case wire.EventLeaveChat:
		g.onLeaveChat(conn, frame.Data)
	case wire.EventSendMessage:
		g.onSendMessage(ctx, conn, frame.Data)
	case wire.EventTypingStart:
		g.onTyping(ctx, conn, frame.Data, true)
	case wire.EventTypingStop:
		g.onTyping(ctx, conn, frame.Data, false)
	case wire.EventMarkSeen:
		g.onMarkSeen(ctx, conn, frame.Data)
	case wire.EventPortfolioLike:
		g.onPortfolioLike(ctx, conn, frame.Data)
	case wire.EventTaskUpdate:
		g.onTaskUpdate(ctx, conn, frame.Data)
	case wire.EventGroupInvite:
		g.onGroupInvite(ctx, conn, frame.Data)
	default:
		g.sendError(conn, "unknown event")
	}
}

func (g *Gateway) onJoinChat(ctx context.Context, conn *hub.Conn, data json.RawMessage) {
	var p wire.JoinChat
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		g.sendError(conn, "malformed frame")
		return
	}
	conversation, err := g.Store.Get(ctx, p.ConversationID)
	if err != nil || !conversation.IsParticipant(conn.Identity()) {
		g.sendError(conn, "unauthorized to join this chat")
		return
	}
	g.Hub.Join(conn, hub.ConversationRoom(p.ConversationID))
}

func (g *Gateway) onLeaveChat(conn *hub.Conn, data json.RawMessage) {
	var p wire.JoinChat
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		g.sendError(conn, "malformed frame")
		return
	}
	g.Hub.Leave(conn.ID(), hub.ConversationRoom(p.ConversationID))
}

func (g *Gateway) onSendMessage(ctx context.Context, conn *hub.Conn, data json.RawMessage) {
	var p wire.SendMessage
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed frame")
		return
	}
	var ref *chat.FileRef
	if p.FileRef != nil {
		ref = &chat.FileRef{Key: p.FileRef.Key, Name: p.FileRef.Name, Size: p.FileRef.Size}
	}
	_, err := g.Delivery.SendMessage(ctx, delivery.SendMessageParams{
		ConversationID: p.ConversationID,
		Sender:         conn.Identity(),
		Content:        p.Content,
		Kind:           p.Kind,
		FileRef:        ref,
	})
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrNotFound):
		g.sendError(conn, "chat not found")
	case errors.Is(err, chat.ErrForbidden):
		g.sendError(conn, "unauthorized to send message")
	default:
		if g.Logger != nil {
			g.Logger.Error("send message failed", "conversation_id", p.ConversationID, "error", err)
		}
		g.sendError(conn, "error sending message")
	}
}

func (g *Gateway) onTyping(ctx context.Context, conn *hub.Conn, data json.RawMessage, start bool) {
	var p wire.TypingChange
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		g.sendError(conn, "malformed frame")
		return
	}
	id := conn.Identity()
	change := wire.TypingChange{ConversationID: p.ConversationID, IdentityID: id}
	if start {
		// Non-participants are dropped silently, matching the tracker.
		if g.Typing.Start(ctx, p.ConversationID, id) {
			g.toRoomExcept(hub.ConversationRoom(p.ConversationID), id, wire.EventTypingStarted, change)
		}
		return
	}
	if g.Typing.Stop(p.ConversationID, id) {
		g.toRoomExcept(hub.ConversationRoom(p.ConversationID), id, wire.EventTypingStopped, change)
	}
}

func (g *Gateway) onMarkSeen(ctx context.Context, conn *hub.Conn, data json.RawMessage) {
	var p wire.MarkSeen
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" || p.MessageID == "" {
		g.sendError(conn, "malformed frame")
		return
	}
	err := g.Delivery.MarkSeen(ctx, p.ConversationID, p.MessageID, conn.Identity())
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrNotFound):
		g.sendError(conn, "message not found")
	case errors.Is(err, chat.ErrForbidden):
		g.sendError(conn, "unauthorized to mark message seen")
	default:
		if g.Logger != nil {
			g.Logger.Error("mark seen failed", "conversation_id", p.ConversationID, "error", err)
		}
		g.sendError(conn, "error marking message seen")
	}
}

// onPortfolioLike forwards a like notification to the portfolio owner's
// identity room. The like itself is persisted through the HTTP API; the
// realtime frame is notification only.
func (g *Gateway) onPortfolioLike(ctx context.Context, conn *hub.Conn, data json.RawMessage) {
	var p wire.PortfolioLike
	if err := json.Unmarshal(data, &p); err != nil || p.OwnerID == "" {
		g.sendError(conn, "malformed frame")
		return
	}
	if p.OwnerID == conn.Identity() {
		return
	}
	g.toIdentity(p.OwnerID, wire.EventPortfolioLiked, wire.PortfolioLiked{
		PortfolioID: p.PortfolioID,
		LikedBy:     g.resolveSender(ctx, conn.Identity()),
		Action:      p.Action,
	})
}

// onTaskUpdate notifies every other member of the task's group. Only members
// may fan out updates.
func (g *Gateway) onTaskUpdate(ctx context.Context, conn *hub.Conn, data json.RawMessage) {
	var p wire.TaskUpdate
	if err := json.Unmarshal(data, &p); err != nil || p.GroupID == "" {
		g.sendError(conn, "malformed frame")
		return
	}
	grp, err := g.Groups.ByID(ctx, group.ID(p.GroupID))
	if err != nil {
		g.sendError(conn, "group not found")
		return
	}
	actor := conn.Identity()
	if !grp.IsMember(actor) {
		g.sendError(conn, "unauthorized to update this group's tasks")
		return
	}
	payload := wire.TaskUpdated{
		TaskID:    p.TaskID,
		Update:    p.Update,
		UpdatedBy: g.resolveSender(ctx, actor),
	}
	for _, member := range grp.MemberIDs() {
		if member == actor {
			continue
		}
		g.toIdentity(member, wire.EventTaskUpdated, payload)
	}
}

// onGroupInvite forwards an invitation to the target identity. Offline
// targets simply miss the frame; the invitation itself lives in the group
// state managed over HTTP.
func (g *Gateway) onGroupInvite(ctx context.Context, conn *hub.Conn, data json.RawMessage) {
	var p wire.GroupInvite
	if err := json.Unmarshal(data, &p); err != nil || p.IdentityID == "" {
		g.sendError(conn, "malformed frame")
		return
	}
	g.toIdentity(p.IdentityID, wire.EventGroupInvitation, wire.GroupInvitation{
		GroupID:   p.GroupID,
		GroupName: p.GroupName,
		InvitedBy: g.resolveSender(ctx, conn.Identity()),
	})
}

func (g *Gateway) resolveSender(ctx context.Context, id user.ID) wire.Sender {
	sender := wire.Sender{ID: id}
	if g.Users == nil {
		return sender
	}
	u, err := g.Users.ByID(ctx, id)
	if err != nil {
		return sender
	}
	sender.Username = u.Username
	sender.FullName = u.FullName
	sender.ProfilePicture = u.ProfilePicture
	return sender
}

func (g *Gateway) sendTo(conn *hub.Conn, event string, data any) {
	payload, err := hub.Marshal(event, data)
	if err != nil {
		if g.Logger != nil {
			g.Logger.Error("marshal frame failed", "event", event, "error", err)
		}
		return
	}
	_ = conn.Send(payload)
}

func (g *Gateway) sendError(conn *hub.Conn, message string) {
	g.sendTo(conn, wire.EventError, wire.Error{Message: message})
}

func (g *Gateway) toRoomExcept(room string, except user.ID, event string, data any) {
	payload, err := hub.Marshal(event, data)
	if err != nil {
		return
	}
	g.Hub.ToRoomExcept(room, except, payload)
}

func (g *Gateway) toAllExcept(except user.ID, event string, data any) {
	payload, err := hub.Marshal(event, data)
	if err != nil {
		return
	}
	g.Hub.ToAll(except, payload)
}

func (g *Gateway) toIdentity(id user.ID, event string, data any) {
	payload, err := hub.Marshal(event, data)
	if err != nil {
		return
	}
	g.Hub.ToIdentity(id, payload)
}
