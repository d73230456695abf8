package messaging

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Service owns message persistence rules and the per-peer conversation
// aggregation. It is shared by the REST handlers and the realtime router;
// both paths funnel every write through Send.
type Service struct {
	repo     Repository
	profiles ProfileDirectory
}

func NewService(repo Repository, profiles ProfileDirectory) *Service {
	return &Service{repo: repo, profiles: profiles}
}

// Send validates and persists a single message. The sender id must come
// from the authenticated session, never from the payload. The stored
// message is returned with sender and receiver profiles resolved.
func (s *Service) Send(ctx context.Context, senderID, receiverID, body string) (*Message, error) {
	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	if senderID == "" || receiverID == "" {
		return nil, ErrInvalidUserID
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	m := &Message{
		ID:             uuid.New(),
		ConversationID: ConversationKey(senderID, receiverID),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Body:           body,
		Read:           false,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.decorate(ctx, m)
	return m, nil
}

// History returns one page of the messages between two users in
// chronological order, oldest first within the page. Pages anchor at the
// newest message, so the default page is the end of the conversation a
// chat pane opens on.
func (s *Service) History(ctx context.Context, userID, partnerID string, limit, offset int) ([]*Message, error) {
	if strings.TrimSpace(partnerID) == "" {
		return nil, ErrInvalidUserID
	}
	msgs, err := s.repo.ListBetween(ctx, userID, partnerID, limit, offset)
	if err != nil {
		return nil, err
	}
	s.decorateAll(ctx, msgs)
	return msgs, nil
}

// Conversations folds the user's full history into one summary row per
// peer. The repository returns messages newest first, so the first message
// seen for a peer is that conversation's latest; every later unread message
// addressed to the requester bumps the unread count. Output order follows
// input order, newest conversation first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]*Conversation, error) {
	msgs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byPeer := make(map[string]*Conversation)
	var ordered []*Conversation
	for _, m := range msgs {
		peerID := m.SenderID
		if peerID == userID {
			peerID = m.ReceiverID
		}
		conv, ok := byPeer[peerID]
		if !ok {
			conv = &Conversation{
				Peer:            &Profile{ID: peerID},
				LastMessage:     m.Body,
				LastMessageTime: m.CreatedAt,
			}
			byPeer[peerID] = conv
			ordered = append(ordered, conv)
		}
		if m.ReceiverID == userID && !m.Read {
			conv.UnreadCount++
		}
	}

	s.resolvePeers(ctx, ordered)
	return ordered, nil
}

// MarkRead flips a message's read flag. Marking an already-read message is
// a no-op, not an error.
func (s *Service) MarkRead(ctx context.Context, messageID uuid.UUID) (*Message, error) {
	m, err := s.repo.MarkRead(ctx, messageID)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, m)
	return m, nil
}

// Delete removes a message permanently. Only the original sender may do
// this; the check runs against the stored sender, not the caller's claim.
func (s *Service) Delete(ctx context.Context, messageID uuid.UUID, requesterID string) error {
	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != requesterID {
		return ErrNotSender
	}
	return s.repo.Delete(ctx, messageID)
}

func (s *Service) decorate(ctx context.Context, m *Message) {
	s.decorateAll(ctx, []*Message{m})
}

// decorateAll attaches sender/receiver profiles in one batch lookup.
// Directory failures are tolerated: the message payload is complete
// without profiles, the client just falls back to raw ids.
func (s *Service) decorateAll(ctx context.Context, msgs []*Message) {
	if s.profiles == nil || len(msgs) == 0 {
		return
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range msgs {
		for _, id := range []string{m.SenderID, m.ReceiverID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	found, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return
	}
	for _, m := range msgs {
		m.Sender = found[m.SenderID]
		m.Receiver = found[m.ReceiverID]
	}
}

func (s *Service) resolvePeers(ctx context.Context, convs []*Conversation) {
	if s.profiles == nil || len(convs) == 0 {
		return
	}
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.Peer.ID)
	}
	found, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return
	}
	for _, c := range convs {
		if p, ok := found[c.Peer.ID]; ok {
			c.Peer = p
		}
	}
}
