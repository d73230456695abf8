package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/auth"
)

// DefaultHandshakeTimeout bounds how long a fresh connection may take to
// present its credential before it is closed.
const DefaultHandshakeTimeout = 10 * time.Second

// TokenVerifier resolves a handshake credential to an identity. The auth
// platform's Verifier satisfies it.
type TokenVerifier interface {
	Resolve(token string) (*auth.Identity, error)
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Same policy as the REST CORS layer; tighten in production.
	},
}

// Gateway owns the connection lifecycle: upgrade, handshake authentication,
// presence registration, pump startup, and teardown. A connection that
// fails the handshake is closed before it ever reaches the registry, so it
// can never receive a push.
type Gateway struct {
	registry         *Registry
	router           *Router
	verifier         TokenVerifier
	logger           zerolog.Logger
	handshakeTimeout time.Duration
}

func NewGateway(registry *Registry, router *Router, verifier TokenVerifier, logger zerolog.Logger) *Gateway {
	return &Gateway{
		registry:         registry,
		router:           router,
		verifier:         verifier,
		logger:           logger,
		handshakeTimeout: DefaultHandshakeTimeout,
	}
}

// SetHandshakeTimeout overrides the handshake deadline; zero or negative
// values are ignored.
func (g *Gateway) SetHandshakeTimeout(d time.Duration) {
	if d > 0 {
		g.handshakeTimeout = d
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (g *Gateway) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", g.HandleConnect)
}

// HandleConnect upgrades the HTTP connection and runs the handshake. On
// success the connection becomes the user's personal delivery channel until
// it closes.
func (g *Gateway) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	id, err := g.handshake(ws)
	if err != nil {
		g.refuse(ws, err)
		return nil
	}
	_ = ws.SetReadDeadline(time.Time{})

	client := newClient(id.UserID, id.Role, &gorillaConnAdapter{ws})
	g.Activate(client)

	go g.writePump(client, ws)
	go g.readPump(client, ws)

	return nil
}

// handshake reads the first frame, which must be an auth event carrying a
// bearer token, and resolves it within the handshake timeout. There are no
// retries: a failed handshake is terminal for this connection attempt.
func (g *Gateway) handshake(ws *gorillawebsocket.Conn) (*auth.Identity, error) {
	if err := ws.SetReadDeadline(time.Now().Add(g.handshakeTimeout)); err != nil {
		return nil, auth.ErrInvalidToken
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, auth.ErrInvalidToken
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event != EventAuth {
		return nil, auth.ErrInvalidToken
	}
	var payload authPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return nil, auth.ErrInvalidToken
	}

	return g.verifier.Resolve(payload.Token)
}

func (g *Gateway) refuse(ws *gorillawebsocket.Conn, err error) {
	g.logger.Info().Err(err).Str("remote", ws.RemoteAddr().String()).Msg("handshake refused")
	if data, encErr := EncodeFrame(EventError, errorPayload{Message: "authentication failed"}); encErr == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = ws.WriteMessage(gorillawebsocket.TextMessage, data)
	}
	_ = ws.Close()
}

// Activate registers the client in the presence registry and announces it.
// Separated from HandleConnect so router tests can drive clients without a
// real socket.
func (g *Gateway) Activate(client *Client) {
	g.registry.Set(client.UserID, client)
	g.broadcastPresence(EventUserOnline, client.UserID)
	g.logger.Info().Str("user_id", client.UserID).Str("role", client.Role).Msg("connection active")
}

// Deactivate evicts the client from the registry if it still owns its
// entry and announces the user offline.
func (g *Gateway) Deactivate(client *Client) {
	if g.registry.Remove(client.UserID, client) {
		g.broadcastPresence(EventUserOffline, client.UserID)
	}
	client.close()
	g.logger.Info().Str("user_id", client.UserID).Msg("connection closed")
}

func (g *Gateway) broadcastPresence(event, userID string) {
	data, err := EncodeFrame(event, presencePayload{UserID: userID})
	if err != nil {
		return
	}
	g.registry.Broadcast(data)
}

func (g *Gateway) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		g.Deactivate(client)
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue // Ignore malformed frames.
		}
		g.router.Handle(context.Background(), client, frame)
	}
}

func (g *Gateway) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
