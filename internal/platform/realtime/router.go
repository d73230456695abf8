package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/messaging"
)

// Router dispatches inbound frames from active connections. The send path
// persists first through the message store, then pushes to the receiver if
// online, and always acknowledges the sender once the persist succeeds.
type Router struct {
	messages *messaging.Service
	registry *Registry
	logger   zerolog.Logger
}

func NewRouter(messages *messaging.Service, registry *Registry, logger zerolog.Logger) *Router {
	return &Router{messages: messages, registry: registry, logger: logger}
}

// Handle processes one inbound frame from an authenticated client.
// Malformed or unknown frames produce an error event scoped to the sender;
// they never affect other connections.
func (rt *Router) Handle(ctx context.Context, client *Client, frame Frame) {
	switch frame.Event {
	case EventGetConversations:
		rt.handleGetConversations(ctx, client)
	case EventSendMessage:
		rt.handleSendMessage(ctx, client, frame.Data)
	case EventTyping:
		rt.handleTyping(client, frame.Data)
	case EventJoinConversation:
		rt.handleJoin(client, frame.Data)
	default:
		rt.sendError(client, "unknown event: "+frame.Event)
	}
}

func (rt *Router) handleGetConversations(ctx context.Context, client *Client) {
	convs, err := rt.messages.Conversations(ctx, client.UserID)
	if err != nil {
		rt.logger.Error().Err(err).Str("user_id", client.UserID).Msg("load conversations")
		rt.sendError(client, "failed to load conversations")
		return
	}
	if convs == nil {
		convs = []*messaging.Conversation{}
	}
	rt.send(client, EventConversations, convs)
}

func (rt *Router) handleSendMessage(ctx context.Context, client *Client, data json.RawMessage) {
	var req sendPayload
	if err := json.Unmarshal(data, &req); err != nil {
		rt.sendError(client, "malformed send-message payload")
		return
	}

	// Single write: nothing is pushed unless the persist succeeds.
	msg, err := rt.messages.Send(ctx, client.UserID, req.ReceiverID, req.Message)
	if err != nil {
		if isClientFault(err) {
			rt.sendError(client, err.Error())
		} else {
			rt.logger.Error().Err(err).Str("sender_id", client.UserID).Msg("persist message")
			rt.sendError(client, "failed to send message")
		}
		return
	}

	// Best-effort live push; an offline receiver reads back over REST.
	if peer, ok := rt.registry.Get(msg.ReceiverID); ok {
		rt.send(peer, EventReceiveMessage, msg)
	}

	// The sender is acknowledged regardless of the push outcome, and the
	// sender's other sessions learn their conversation list changed.
	rt.send(client, EventMessageSent, msg)
	rt.send(client, EventConversationUpdated, msg)
}

// handleTyping relays a typing indicator verbatim to the receiver. Never
// persisted, never acknowledged.
func (rt *Router) handleTyping(client *Client, data json.RawMessage) {
	var req typingPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	peer, ok := rt.registry.Get(req.ReceiverID)
	if !ok {
		return
	}
	rt.send(peer, EventUserTyping, typingNotice{UserID: client.UserID, IsTyping: req.IsTyping})
}

func (rt *Router) handleJoin(client *Client, data json.RawMessage) {
	var req joinPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		rt.sendError(client, "malformed join-conversation payload")
		return
	}
	client.Join(req.ConversationID)
}

func (rt *Router) send(client *Client, event string, payload interface{}) {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		rt.logger.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}
	if !client.push(data) {
		rt.logger.Warn().Str("event", event).Str("user_id", client.UserID).Msg("client buffer full, frame dropped")
	}
}

func (rt *Router) sendError(client *Client, message string) {
	rt.send(client, EventError, errorPayload{Message: message})
}

func isClientFault(err error) bool {
	return errors.Is(err, messaging.ErrEmptyBody) ||
		errors.Is(err, messaging.ErrSelfMessage) ||
		errors.Is(err, messaging.ErrInvalidUserID)
}
