package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"artisanchat/internal/app/delivery"
	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/user"
	"artisanchat/internal/infra/storage/memory"
	"artisanchat/internal/realtime/hub"
	"artisanchat/internal/realtime/presence"
	"artisanchat/internal/realtime/typing"
	"artisanchat/internal/realtime/wire"
)

// fakeTransport funnels written frames into a channel so tests can wait for
// the asynchronous write loop without sleeping.
type fakeTransport struct {
	frames chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(chan []byte, 64)}
}

func (ft *fakeTransport) WriteMessage(data []byte) error {
	ft.frames <- data
	return nil
}

func (ft *fakeTransport) Ping() error  { return nil }
func (ft *fakeTransport) Close() error { return nil }

// waitEvent discards frames until one carries the wanted event and returns
// its payload.
func (ft *fakeTransport) waitEvent(t *testing.T, event string) json.RawMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case frame := <-ft.frames:
			var envelope hub.Envelope
			if err := json.Unmarshal(frame, &envelope); err != nil {
				t.Fatalf("malformed frame: %s", frame)
			}
			if envelope.Event == event {
				return envelope.Data
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
			return nil
		}
	}
}

func (ft *fakeTransport) expectNoEvent(t *testing.T, event string) {
	t.Helper()
	timeout := time.After(50 * time.Millisecond)
	for {
		select {
		case frame := <-ft.frames:
			var envelope hub.Envelope
			_ = json.Unmarshal(frame, &envelope)
			if envelope.Event == event {
				t.Fatalf("unexpected %s frame: %s", event, frame)
			}
		case <-timeout:
			return
		}
	}
}

type staticAuth struct {
	tokens map[string]*user.User
}

func (a staticAuth) Identify(_ context.Context, token string) (*user.User, error) {
	u, ok := a.tokens[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return u, nil
}

func newTestGateway(t *testing.T) (*Gateway, *memory.ConversationStore) {
	t.Helper()
	store := memory.NewConversationStore()
	h := hub.New()
	tracker := typing.NewTracker(store, nil)
	coordinator := &delivery.Coordinator{Store: store, Rooms: h}
	auth := staticAuth{tokens: map[string]*user.User{}}
	g := New(auth, h, presence.NewRegistry(nil, nil), tracker, coordinator, store, nil, nil, nil)
	return g, store
}

func seedPair(t *testing.T, store *memory.ConversationStore) {
	t.Helper()
	conversation, err := chat.NewPrivate(chat.NewPrivateParams{ID: "c1", A: "alice", B: "bob"})
	if err != nil {
		t.Fatalf("NewPrivate failed: %v", err)
	}
	conversation.ClearEvents()
	if err := store.Create(context.Background(), conversation); err != nil {
		t.Fatalf("store create failed: %v", err)
	}
}

// connect runs the post-handshake path for one client and drains the initial
// presence snapshot.
func connect(t *testing.T, g *Gateway, id user.ID) (*hub.Conn, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	conn := hub.NewConn(id, ft, nil)
	g.open(context.Background(), conn)
	t.Cleanup(conn.Close)
	ft.waitEvent(t, wire.EventPresenceSnapshot)
	return conn, ft
}

func send(t *testing.T, g *Gateway, conn *hub.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	g.dispatch(context.Background(), conn, hub.Envelope{Event: event, Data: data})
}

func TestHandleRejectsBadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g, _ := newTestGateway(t)
	g.Auth = staticAuth{tokens: map[string]*user.User{
		"good": {ID: "u1", Username: "alice"},
	}}
	router := gin.New()
	router.GET("/ws", g.Handle)

	for _, target := range []string{"/ws", "/ws?token=bad"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s = %d, want 401", target, rec.Code)
		}
	}
	if g.Hub.Count() != 0 {
		t.Errorf("rejected handshakes left %d connections", g.Hub.Count())
	}
}

func TestJoinChatRequiresParticipation(t *testing.T) {
	g, store := newTestGateway(t)
	seedPair(t, store)

	mallory, malloryT := connect(t, g, "mallory")
	send(t, g, mallory, wire.EventJoinChat, wire.JoinChat{ConversationID: "c1"})

	data := malloryT.waitEvent(t, wire.EventError)
	var failure wire.Error
	if err := json.Unmarshal(data, &failure); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if failure.Message != "unauthorized to join this chat" {
		t.Errorf("error message = %q", failure.Message)
	}
	if g.Hub.InRoom(mallory.ID(), hub.ConversationRoom("c1")) {
		t.Error("rejected join must not add the connection to the room")
	}

	// The same frame from a participant subscribes the connection.
	alice, aliceT := connect(t, g, "alice")
	send(t, g, alice, wire.EventJoinChat, wire.JoinChat{ConversationID: "c1"})
	if !g.Hub.InRoom(alice.ID(), hub.ConversationRoom("c1")) {
		t.Error("participant join should add the connection to the room")
	}
	aliceT.expectNoEvent(t, wire.EventError)

	// Unknown conversations read the same as forbidden ones.
	send(t, g, mallory, wire.EventJoinChat, wire.JoinChat{ConversationID: "missing"})
	data = malloryT.waitEvent(t, wire.EventError)
	if err := json.Unmarshal(data, &failure); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if failure.Message != "unauthorized to join this chat" {
		t.Errorf("error message = %q", failure.Message)
	}
}

func TestDisconnectCleanup(t *testing.T) {
	g, store := newTestGateway(t)
	seedPair(t, store)

	alice, _ := connect(t, g, "alice")
	bob, bobT := connect(t, g, "bob")
	send(t, g, alice, wire.EventJoinChat, wire.JoinChat{ConversationID: "c1"})
	send(t, g, bob, wire.EventJoinChat, wire.JoinChat{ConversationID: "c1"})

	send(t, g, alice, wire.EventTypingStart, wire.TypingChange{ConversationID: "c1"})
	bobT.waitEvent(t, wire.EventTypingStarted)

	g.close(alice)

	bobT.waitEvent(t, wire.EventTypingStopped)
	data := bobT.waitEvent(t, wire.EventIdentityOffline)
	var change wire.PresenceChange
	if err := json.Unmarshal(data, &change); err != nil {
		t.Fatalf("decode presence frame: %v", err)
	}
	if change.IdentityID != "alice" {
		t.Errorf("offline identity = %q", change.IdentityID)
	}

	if g.Presence.IsOnline("alice") {
		t.Error("disconnected identity should be offline")
	}
	if got := g.Typing.Typing("c1"); len(got) != 0 {
		t.Errorf("typing state survived disconnect: %v", got)
	}
	if g.Hub.Count() != 1 {
		t.Errorf("hub count = %d, want 1", g.Hub.Count())
	}

	// A second close of the same connection changes nothing.
	g.close(alice)
	bobT.expectNoEvent(t, wire.EventIdentityOffline)
}
