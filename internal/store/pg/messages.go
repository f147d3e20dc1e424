package pg

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/socialid/internal/store/core"
)

// ====================== MENSAJERÍA ======================

func (s *Store) CreateMessage(ctx context.Context, m *core.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO message (id, sender_id, receiver_id, body, created_at)
		VALUES ($1,$2,$3,$4,$5)`
	_, err := s.pool.Exec(ctx, q, m.ID, m.SenderID, m.ReceiverID, m.Body, m.CreatedAt)
	return err
}

// ListConversation pagina hacia atrás: mensajes anteriores a before,
// más recientes primero.
func (s *Store) ListConversation(ctx context.Context, userID, otherID string, limit int, before time.Time) ([]core.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}
	const q = `SELECT id, sender_id, receiver_id, body, created_at, read_at
		FROM message
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4`
	rows, err := s.pool.Query(ctx, q, userID, otherID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		var m core.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt, &m.ReadAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) MarkRead(ctx context.Context, receiverID, otherID string) (int64, error) {
	const q = `UPDATE message SET read_at = now()
		WHERE receiver_id = $1 AND sender_id = $2 AND read_at IS NULL`
	ct, err := s.pool.Exec(ctx, q, receiverID, otherID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
