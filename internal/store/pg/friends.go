package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/socialid/internal/store/core"
)

// ====================== AMISTADES ======================

func (s *Store) CreateFriendRequest(ctx context.Context, requesterID, addresseeID string) (*core.Friendship, error) {
	f := &core.Friendship{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      core.FriendshipPending,
		CreatedAt:   time.Now().UTC(),
	}

	// El índice único sobre (least(a,b), greatest(a,b)) bloquea duplicados
	// en cualquier dirección.
	const q = `INSERT INTO friendship (id, requester_id, addressee_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5)`
	if _, err := s.pool.Exec(ctx, q, f.ID, f.RequesterID, f.AddresseeID, f.Status, f.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrConflict
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) AcceptFriendRequest(ctx context.Context, requesterID, addresseeID string) (*core.Friendship, error) {
	const q = `UPDATE friendship
		SET status = 'accepted', accepted_at = now()
		WHERE requester_id = $1 AND addressee_id = $2 AND status = 'pending'
		RETURNING id, requester_id, addressee_id, status, created_at, accepted_at`
	var f core.Friendship
	err := s.pool.QueryRow(ctx, q, requesterID, addresseeID).Scan(
		&f.ID, &f.RequesterID, &f.AddresseeID, &f.Status, &f.CreatedAt, &f.AcceptedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *Store) GetFriendship(ctx context.Context, a, b string) (*core.Friendship, error) {
	const q = `SELECT id, requester_id, addressee_id, status, created_at, accepted_at
		FROM friendship
		WHERE (requester_id = $1 AND addressee_id = $2)
		   OR (requester_id = $2 AND addressee_id = $1)`
	var f core.Friendship
	err := s.pool.QueryRow(ctx, q, a, b).Scan(
		&f.ID, &f.RequesterID, &f.AddresseeID, &f.Status, &f.CreatedAt, &f.AcceptedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *Store) DeleteFriendship(ctx context.Context, a, b string) error {
	const q = `DELETE FROM friendship
		WHERE (requester_id = $1 AND addressee_id = $2)
		   OR (requester_id = $2 AND addressee_id = $1)`
	ct, err := s.pool.Exec(ctx, q, a, b)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) ListFriends(ctx context.Context, userID string) ([]core.User, error) {
	const q = `SELECT u.id, u.username, u.display_name, u.avatar_url, u.wallet_address,
		u.token_balance, u.login_streak, u.last_login_day, u.created_at, u.updated_at
		FROM app_user u
		JOIN friendship f ON f.status = 'accepted'
			AND ((f.requester_id = $1 AND f.addressee_id = u.id)
			  OR (f.addressee_id = $1 AND f.requester_id = u.id))
		ORDER BY u.username`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.WalletAddress,
			&u.TokenBalance, &u.LoginStreak, &u.LastLoginDay, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ListPendingRequests(ctx context.Context, userID string) ([]core.Friendship, error) {
	const q = `SELECT id, requester_id, addressee_id, status, created_at, accepted_at
		FROM friendship WHERE addressee_id = $1 AND status = 'pending'
		ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Friendship
	for rows.Next() {
		var f core.Friendship
		if err := rows.Scan(&f.ID, &f.RequesterID, &f.AddresseeID, &f.Status, &f.CreatedAt, &f.AcceptedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) AreFriends(ctx context.Context, a, b string) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM friendship
		WHERE status = 'accepted'
		  AND ((requester_id = $1 AND addressee_id = $2)
		    OR (requester_id = $2 AND addressee_id = $1)))`
	var ok bool
	if err := s.pool.QueryRow(ctx, q, a, b).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ClaimFriendshipReward: el INSERT con ON CONFLICT DO NOTHING decide
// atómicamente quién paga. RowsAffected == 1 sólo para el primer insert.
func (s *Store) ClaimFriendshipReward(ctx context.Context, pairKey string) (bool, error) {
	const q = `INSERT INTO friendship_reward (pair_key, created_at)
		VALUES ($1, now()) ON CONFLICT (pair_key) DO NOTHING`
	ct, err := s.pool.Exec(ctx, q, pairKey)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
