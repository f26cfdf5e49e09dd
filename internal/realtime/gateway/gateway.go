package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"artisanchat/internal/app/delivery"
	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/group"
	"artisanchat/internal/domain/user"
	"artisanchat/internal/realtime/hub"
	"artisanchat/internal/realtime/presence"
	"artisanchat/internal/realtime/typing"
	"artisanchat/internal/realtime/wire"
)

const (
	handshakeTimeout = 10 * time.Second
	pongWait         = 75 * time.Second
	cleanupTimeout   = 5 * time.Second
)

// Authenticator resolves a bearer credential to an identity. A failed
// resolution rejects the connection before any state is registered.
type Authenticator interface {
	Identify(ctx context.Context, token string) (*user.User, error)
}

// Gateway upgrades websocket connections and translates the realtime event
// surface into calls on the presence registry, typing tracker and delivery
// coordinator. Business logic stays in those components; the gateway only
// authenticates, dispatches and cleans up.
type Gateway struct {
	Auth     Authenticator
	Hub      *hub.Hub
	Presence *presence.Registry
	Typing   *typing.Tracker
	Delivery *delivery.Coordinator
	Store    chat.Store
	Users    user.Repository
	Groups   group.Repository
	Logger   *slog.Logger

	upgrader websocket.Upgrader
}

func New(auth Authenticator, h *hub.Hub, reg *presence.Registry, tracker *typing.Tracker, coordinator *delivery.Coordinator, store chat.Store, users user.Repository, groups group.Repository, logger *slog.Logger) *Gateway {
	return &Gateway{
		Auth:     auth,
		Hub:      h,
		Presence: reg,
		Typing:   tracker,
		Delivery: coordinator,
		Store:    store,
		Users:    users,
		Groups:   groups,
		Logger:   logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			// CORS policy is enforced at the HTTP layer; the gateway
			// accepts any origin the server let through.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle is the gin endpoint for /ws. The credential comes from the query
// string or the Authorization header; without a valid one the handshake is
// rejected with 401 and no presence or room state is created.
func (g *Gateway) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	identity, err := g.Auth.Identify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if g.Logger != nil {
			g.Logger.Debug("websocket upgrade failed", "error", err)
		}
		return
	}

	conn := hub.NewConn(identity.ID, &wsTransport{ws: ws}, g.Logger)
	g.open(c.Request.Context(), conn)
	g.readLoop(c.Request.Context(), conn, ws)
	g.close(conn)
}

func (g *Gateway) open(ctx context.Context, conn *hub.Conn) {
	id := conn.Identity()
	g.Hub.Add(conn)
	g.Hub.Join(conn, hub.IdentityRoom(id))

	wentOnline := g.Presence.Register(ctx, id, conn.ID())

	g.sendTo(conn, wire.EventPresenceSnapshot, wire.PresenceSnapshot{
		Identities: g.Presence.Snapshot(),
	})
	if wentOnline {
		g.toAllExcept(id, wire.EventIdentityOnline, wire.PresenceChange{
			IdentityID: id,
			LastSeen:   time.Now().UTC(),
		})
	}
	if g.Logger != nil {
		g.Logger.Info("client connected", "identity", id, "conn_id", conn.ID())
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *hub.Conn, ws *websocket.Conn) {
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var frame hub.Envelope
		if err := json.Unmarshal(data, &frame); err != nil {
			g.sendError(conn, "malformed frame")
			continue
		}
		g.dispatch(ctx, conn, frame)
	}
}

// close runs the disconnect cleanup. Every step is independent: a failure in
// one does not stop the others, and repeated invocations are harmless.
func (g *Gateway) close(conn *hub.Conn) {
	id := conn.Identity()
	g.Hub.Remove(conn.ID())
	conn.Close()

	// The request context is gone once the socket dropped; cleanup gets its
	// own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	for _, conversationID := range g.Typing.StopAll(id) {
		g.toRoomExcept(hub.ConversationRoom(conversationID), id, wire.EventTypingStopped, wire.TypingChange{
			ConversationID: conversationID,
			IdentityID:     id,
		})
	}

	wentOffline, lastSeen := g.Presence.Unregister(ctx, id, conn.ID())
	if wentOffline {
		g.toAllExcept(id, wire.EventIdentityOffline, wire.PresenceChange{
			IdentityID: id,
			LastSeen:   lastSeen,
		})
	}
	if g.Logger != nil {
		g.Logger.Info("client disconnected", "identity", id, "conn_id", conn.ID())
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

// wsTransport adapts a gorilla connection to the hub transport. The hub's
// write loop is the only writer, which is what gorilla requires.
type wsTransport struct {
	ws *websocket.Conn
}

func (t *wsTransport) WriteMessage(data []byte) error {
	_ = t.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return t.ws.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Ping() error {
	return t.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

func (t *wsTransport) Close() error {
	return t.ws.Close()
}

var _ hub.Transport = (*wsTransport)(nil)
