package realtime

import "sync"

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one authenticated live connection: the personal delivery
// channel for its user. Pushes go through the buffered Send channel, which
// the write pump drains. push and close serialize on sendMu so a push
// racing a disconnect can never hit a closed channel.
type Client struct {
	UserID string
	Role   string
	Send   chan []byte

	conn Conn

	sendMu sync.Mutex
	closed bool

	mu    sync.Mutex
	rooms map[string]struct{}
}

func newClient(userID, role string, conn Conn) *Client {
	return &Client{
		UserID: userID,
		Role:   role,
		Send:   make(chan []byte, 256),
		conn:   conn,
		rooms:  make(map[string]struct{}),
	}
}

// push queues data on the client's channel without blocking. A full buffer
// or a closed connection drops the frame; live push is best-effort and the
// data is always recoverable via read-back.
func (c *Client) push(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// close ends the client's send side. Idempotent; after it returns no push
// can reach the channel.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Join subscribes the client to a conversation-scoped room. Rooms are a
// broadcast scope reserved for group features; nothing delivers through
// them yet.
func (c *Client) Join(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[conversationID] = struct{}{}
}

// InRoom reports whether the client has joined the given room.
func (c *Client) InRoom(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[conversationID]
	return ok
}
