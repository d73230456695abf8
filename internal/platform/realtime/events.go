// Package realtime implements the portal's live messaging layer: a
// WebSocket gateway that authenticates connections at handshake, a
// process-local presence registry, and a delivery router that couples
// message persistence with best-effort live push. Persistence is the
// system of record; a peer that is offline simply reads the message back
// over REST later.
package realtime

import "encoding/json"

// Client-to-server events.
const (
	EventAuth             = "auth"
	EventGetConversations = "get-conversations"
	EventSendMessage      = "send-message"
	EventJoinConversation = "join-conversation"
	EventTyping           = "typing"
)

// Server-to-client events.
const (
	EventConversations       = "conversations"
	EventMessageSent         = "message-sent"
	EventReceiveMessage      = "receive-message"
	EventConversationUpdated = "conversation-updated"
	EventUserTyping          = "user-typing"
	EventUserOnline          = "user-online"
	EventUserOffline         = "user-offline"
	EventError               = "error"
)

// Frame is the envelope for every message on the wire, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals an event envelope with its payload.
func EncodeFrame(event string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

type authPayload struct {
	Token string `json:"token"`
}

type sendPayload struct {
	ReceiverID string `json:"receiver_id"`
	Message    string `json:"message"`
}

type typingPayload struct {
	ReceiverID string `json:"receiver_id"`
	IsTyping   bool   `json:"is_typing"`
}

type joinPayload struct {
	ConversationID string `json:"conversation_id"`
}

type presencePayload struct {
	UserID string `json:"user_id"`
}

type typingNotice struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type errorPayload struct {
	Message string `json:"message"`
}
