package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/socialid/internal/store/core"
)

// ====================== REWARDS ======================

func (s *Store) CreditTokens(ctx context.Context, userID, kind string, amount int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const qUpd = `UPDATE app_user SET token_balance = token_balance + $2, updated_at = now() WHERE id = $1`
	ct, err := tx.Exec(ctx, qUpd, userID, amount)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}

	const qLedger = `INSERT INTO reward_entry (id, user_id, kind, amount, created_at)
		VALUES ($1,$2,$3,$4, now())`
	if _, err := tx.Exec(ctx, qLedger, uuid.NewString(), userID, kind, amount); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ClaimBalance debita todo el balance en un solo UPDATE condicional:
// dos claims concurrentes no pueden debitar el mismo saldo dos veces.
func (s *Store) ClaimBalance(ctx context.Context, userID string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	// Self-join para recuperar el balance previo en el mismo UPDATE.
	const qDebit = `UPDATE app_user u
		SET token_balance = 0, updated_at = now()
		FROM app_user prev
		WHERE u.id = $1 AND prev.id = u.id AND u.token_balance > 0
		RETURNING prev.token_balance`
	var amount int64
	if err := tx.QueryRow(ctx, qDebit, userID).Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, core.ErrNothingToClaim
		}
		return 0, err
	}

	const qLedger = `INSERT INTO reward_entry (id, user_id, kind, amount, created_at)
		VALUES ($1,$2,$3,$4, now())`
	if _, err := tx.Exec(ctx, qLedger, uuid.NewString(), userID, core.RewardClaim, -amount); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return amount, nil
}

func (s *Store) ListRewardEntries(ctx context.Context, userID string, limit int) ([]core.RewardEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `SELECT id, user_id, kind, amount, created_at
		FROM reward_entry WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.RewardEntry
	for rows.Next() {
		var e core.RewardEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
