// Package messages implementa mensajería directa entre amigos.
package messages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/socialid/internal/store/core"
)

const maxBodyLen = 2000

var (
	ErrNotFriends = errors.New("messages: users are not friends")
	ErrEmptyBody  = errors.New("messages: empty body")
	ErrBodyTooBig = errors.New("messages: body too long")
)

type Service struct {
	Repo core.Repository
}

// Send entrega un mensaje. Sólo entre amigos aceptados.
func (s *Service) Send(ctx context.Context, senderID, receiverID, body string) (*core.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	if len(body) > maxBodyLen {
		return nil, ErrBodyTooBig
	}

	ok, err := s.Repo.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFriends
	}

	m := &core.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
	}
	if err := s.Repo.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Conversation lista mensajes con otro usuario, paginando hacia atrás.
func (s *Service) Conversation(ctx context.Context, userID, otherID string, limit int, before time.Time) ([]core.Message, error) {
	return s.Repo.ListConversation(ctx, userID, otherID, limit, before)
}

// MarkRead marca leídos los mensajes recibidos de otherID.
func (s *Service) MarkRead(ctx context.Context, userID, otherID string) (int64, error) {
	return s.Repo.MarkRead(ctx, userID, otherID)
}
