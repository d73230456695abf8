package messaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const messageCols = `id, conversation_id, sender_id, receiver_id, body, read, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID,
		&m.Body, &m.Read, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, body, read)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		m.ID, m.ConversationID, m.SenderID, m.ReceiverID, m.Body, m.Read).
		Scan(&m.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM messages WHERE id = $1`, id))
}

func (r *repoPG) ListBetween(ctx context.Context, userA, userB string, limit, offset int) ([]*Message, error) {
	// Pages anchor at the newest end of the conversation: offset 0 is the
	// latest page, so a default fetch always includes the newest messages.
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		userA, userB, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(items)
	return items, nil
}

func (r *repoPG) ListForUser(ctx context.Context, userID string) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `
		UPDATE messages SET read = TRUE
		WHERE id = $1
		RETURNING `+messageCols, id))
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func reverseMessages(items []*Message) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

func collectMessages(rows pgx.Rows) ([]*Message, error) {
	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
