package messaging

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract for messages. Implementations must
// return ErrMessageNotFound when an id does not resolve.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// ListBetween returns one page of both directions of a pair, in
	// ascending created_at order. Pages count back from the newest
	// message, so offset 0 holds the latest messages.
	ListBetween(ctx context.Context, userA, userB string, limit, offset int) ([]*Message, error)
	// ListForUser returns every message the user sent or received,
	// descending by created_at.
	ListForUser(ctx context.Context, userID string) ([]*Message, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProfileDirectory resolves public profiles for payload decoration. The
// portal's account management owns the data; messaging only reads it, and
// always in batches.
type ProfileDirectory interface {
	GetByIDs(ctx context.Context, userIDs []string) (map[string]*Profile, error)
}
