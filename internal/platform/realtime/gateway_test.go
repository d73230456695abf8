package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/messaging"
	"github.com/carelink/carelink/internal/platform/auth"
)

type gatewayFixture struct {
	registry *Registry
	verifier *auth.Verifier
	server   *httptest.Server
}

func newGatewayFixture(t *testing.T, timeout time.Duration) *gatewayFixture {
	t.Helper()
	registry := NewRegistry()
	router := NewRouter(messaging.NewService(newMemRepo(), nil), registry, zerolog.Nop())
	verifier := auth.NewVerifier(auth.VerifierConfig{SigningKey: []byte("gateway-test-signing-key-32-bytes!!")})

	gw := NewGateway(registry, router, verifier, zerolog.Nop())
	if timeout > 0 {
		gw.SetHandshakeTimeout(timeout)
	}

	e := echo.New()
	gw.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &gatewayFixture{registry: registry, verifier: verifier, server: srv}
}

func (f *gatewayFixture) dial(t *testing.T) *gorillawebsocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	ws, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func (f *gatewayFixture) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := f.verifier.Sign(
		auth.Identity{UserID: userID, Role: role},
		*jwt.NewNumericDate(time.Now().Add(time.Hour)),
	)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func sendAuth(t *testing.T, ws *gorillawebsocket.Conn, token string) {
	t.Helper()
	data, err := json.Marshal(authPayload{Token: token})
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteJSON(Frame{Event: EventAuth, Data: data}); err != nil {
		t.Fatal(err)
	}
}

func readFrame(t *testing.T, ws *gorillawebsocket.Conn) Frame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func waitOnline(t *testing.T, registry *Registry, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := registry.Get(userID); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %s never became online", userID)
}

func TestGateway_HandshakeAndPresence(t *testing.T) {
	f := newGatewayFixture(t, 0)

	ws := f.dial(t)
	sendAuth(t, ws, f.token(t, "u1", "patient"))

	// Activation broadcasts the announcement to every connection,
	// including the one that just joined.
	got := readFrame(t, ws)
	if got.Event != EventUserOnline {
		t.Fatalf("expected %s, got %s", EventUserOnline, got.Event)
	}
	var p presencePayload
	if err := json.Unmarshal(got.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.UserID != "u1" {
		t.Errorf("expected u1 online, got %s", p.UserID)
	}
	waitOnline(t, f.registry, "u1")
}

func TestGateway_InvalidTokenRefused(t *testing.T) {
	f := newGatewayFixture(t, 0)

	ws := f.dial(t)
	sendAuth(t, ws, "not-a-token")

	got := readFrame(t, ws)
	if got.Event != EventError {
		t.Fatalf("expected error frame, got %s", got.Event)
	}

	// The connection is closed and was never registered.
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed after refusal")
	}
	if f.registry.Count() != 0 {
		t.Fatalf("refused connection must not appear in the registry")
	}
}

func TestGateway_NonAuthFirstFrameRefused(t *testing.T) {
	f := newGatewayFixture(t, 0)

	ws := f.dial(t)
	if err := ws.WriteJSON(Frame{Event: EventGetConversations}); err != nil {
		t.Fatal(err)
	}

	got := readFrame(t, ws)
	if got.Event != EventError {
		t.Fatalf("expected error frame, got %s", got.Event)
	}
	if f.registry.Count() != 0 {
		t.Fatal("unauthenticated connection must not appear in the registry")
	}
}

func TestGateway_HandshakeTimeout(t *testing.T) {
	f := newGatewayFixture(t, 50*time.Millisecond)

	ws := f.dial(t)
	// Send nothing; the server closes the connection once the deadline
	// passes.
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var sawClose bool
	for i := 0; i < 2; i++ {
		if _, _, err := ws.ReadMessage(); err != nil {
			sawClose = true
			break
		}
	}
	if !sawClose {
		t.Fatal("expected the server to drop a silent connection")
	}
	if f.registry.Count() != 0 {
		t.Fatal("timed-out connection must not appear in the registry")
	}
}

func TestGateway_SecondConnectionEvictsFirst(t *testing.T) {
	f := newGatewayFixture(t, 0)
	token := f.token(t, "u1", "patient")

	first := f.dial(t)
	sendAuth(t, first, token)
	waitOnline(t, f.registry, "u1")
	firstClient, _ := f.registry.Get("u1")

	second := f.dial(t)
	sendAuth(t, second, token)

	// The registry entry is replaced; the first socket stays open but is
	// no longer the delivery channel.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, ok := f.registry.Get("u1"); ok && c != firstClient {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("second connection never took over the registry entry")
}

func TestGateway_RoundTripSendMessage(t *testing.T) {
	f := newGatewayFixture(t, 0)

	alice := f.dial(t)
	sendAuth(t, alice, f.token(t, "u1", "patient"))
	waitOnline(t, f.registry, "u1")

	bob := f.dial(t)
	sendAuth(t, bob, f.token(t, "u2", "doctor"))
	waitOnline(t, f.registry, "u2")

	data, _ := json.Marshal(sendPayload{ReceiverID: "u2", Message: "hello"})
	if err := alice.WriteJSON(Frame{Event: EventSendMessage, Data: data}); err != nil {
		t.Fatal(err)
	}

	// Bob sees presence announcements plus the pushed message.
	for {
		got := readFrame(t, bob)
		if got.Event == EventUserOnline {
			continue
		}
		if got.Event != EventReceiveMessage {
			t.Fatalf("expected %s, got %s", EventReceiveMessage, got.Event)
		}
		var msg messaging.Message
		if err := json.Unmarshal(got.Data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Body != "hello" || msg.SenderID != "u1" {
			t.Errorf("unexpected message: %+v", msg)
		}
		break
	}

	// Alice gets her ack after the presence noise.
	for {
		got := readFrame(t, alice)
		if got.Event == EventUserOnline {
			continue
		}
		if got.Event != EventMessageSent {
			t.Fatalf("expected %s, got %s", EventMessageSent, got.Event)
		}
		break
	}
}
