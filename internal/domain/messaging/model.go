package messaging

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyBody       = errors.New("message body is required")
	ErrSelfMessage     = errors.New("sender and receiver must differ")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("only the sender may delete a message")
)

// Message is a single chat message between two portal users. The
// conversation id is always recomputed server-side from the participant
// pair; a message is immutable after creation except for the read flag,
// which only ever flips false to true.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	ReceiverID     string    `db:"receiver_id" json:"receiver_id"`
	Body           string    `db:"body" json:"message"`
	Read           bool      `db:"read" json:"read"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	// Resolved for display only, never persisted.
	Sender   *Profile `db:"-" json:"sender,omitempty"`
	Receiver *Profile `db:"-" json:"receiver,omitempty"`
}

// Profile is the public slice of a portal user shown next to messages and
// conversation rows. It is owned by the directory collaborator.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Conversation is a derived per-peer summary of the requester's message
// history. It has no stored form and is recomputed on every read.
type Conversation struct {
	Peer            *Profile  `json:"peer"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
}

// ConversationKey returns the canonical conversation id for an unordered
// pair of user ids: the two ids joined with "_" in lexicographic order, so
// both directions of a pair map to the same key.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}
