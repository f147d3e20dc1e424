package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/socialid/internal/store/core"
)

// ====================== USUARIOS / IDENTIDADES ======================

const userColumns = `id, username, display_name, email, avatar_url, wallet_address,
	verified, verification_level, referral_code, referrer_id,
	token_balance, login_streak, max_streak, last_login_day, first_login_of_day,
	created_at, updated_at`

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.AvatarURL, &u.WalletAddress,
		&u.Verified, &u.VerificationLevel, &u.ReferralCode, &u.ReferrerID,
		&u.TokenBalance, &u.LoginStreak, &u.MaxStreak, &u.LastLoginDay, &u.FirstLoginOfDay,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByProviderKey(ctx context.Context, provider, providerUserID string) (*core.User, error) {
	const q = `SELECT u.id, u.username, u.display_name, u.email, u.avatar_url, u.wallet_address,
		u.verified, u.verification_level, u.referral_code, u.referrer_id,
		u.token_balance, u.login_streak, u.max_streak, u.last_login_day, u.first_login_of_day,
		u.created_at, u.updated_at
		FROM app_user u
		JOIN identity_link l ON l.user_id = u.id
		WHERE l.provider = $1 AND l.provider_user_id = $2`
	return scanUser(s.pool.QueryRow(ctx, q, provider, providerUserID))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM app_user WHERE id = $1`
	return scanUser(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM app_user WHERE LOWER(username) = LOWER($1)`
	return scanUser(s.pool.QueryRow(ctx, q, username))
}

func (s *Store) GetUserByWallet(ctx context.Context, walletAddress string) (*core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM app_user WHERE wallet_address = $1`
	return scanUser(s.pool.QueryRow(ctx, q, walletAddress))
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM app_user WHERE referral_code = $1`
	return scanUser(s.pool.QueryRow(ctx, q, code))
}

func (s *Store) CreateUserWithLink(ctx context.Context, u *core.User, link *core.IdentityLink) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	const qUser = `INSERT INTO app_user
		(id, username, display_name, email, avatar_url, wallet_address,
		 verified, verification_level, referral_code, referrer_id,
		 token_balance, login_streak, max_streak, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	if _, err := tx.Exec(ctx, qUser, u.ID, u.Username, u.DisplayName, u.Email, u.AvatarURL,
		u.WalletAddress, u.Verified, u.VerificationLevel, u.ReferralCode, u.ReferrerID,
		u.TokenBalance, u.LoginStreak, u.MaxStreak, u.CreatedAt, u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return core.ErrConflict
		}
		return err
	}

	link.UserID = u.ID
	if err := insertLink(ctx, tx, link); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) CreateLink(ctx context.Context, link *core.IdentityLink) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertLink(ctx, tx, link); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertLink(ctx context.Context, tx pgx.Tx, link *core.IdentityLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	link.UpdatedAt = link.CreatedAt
	const q = `INSERT INTO identity_link
		(id, user_id, provider, provider_user_id, handle, display_name, email, avatar_url,
		 access_token, refresh_token, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	if _, err := tx.Exec(ctx, q, link.ID, link.UserID, link.Provider,
		link.ProviderUserID, link.Handle, link.DisplayName, link.Email, link.AvatarURL,
		link.AccessToken, link.RefreshToken, link.CreatedAt, link.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return core.ErrConflict
		}
		return err
	}
	return nil
}

// UpsertLink refresca (o crea) el sub-registro del provider. En un login
// repetido el handle, el perfil y los tokens pueden haber cambiado en el
// provider; la fila debe reflejar lo último verificado.
func (s *Store) UpsertLink(ctx context.Context, link *core.IdentityLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	const q = `INSERT INTO identity_link
		(id, user_id, provider, provider_user_id, handle, display_name, email, avatar_url,
		 access_token, refresh_token, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (provider, provider_user_id) DO UPDATE SET
			handle = EXCLUDED.handle,
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			access_token = COALESCE(EXCLUDED.access_token, identity_link.access_token),
			refresh_token = COALESCE(EXCLUDED.refresh_token, identity_link.refresh_token),
			updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q, link.ID, link.UserID, link.Provider,
		link.ProviderUserID, link.Handle, link.DisplayName, link.Email, link.AvatarURL,
		link.AccessToken, link.RefreshToken, link.CreatedAt, link.UpdatedAt)
	return err
}

func (s *Store) ListLinks(ctx context.Context, userID string) ([]core.IdentityLink, error) {
	const q = `SELECT id, user_id, provider, provider_user_id, handle, display_name, email,
		avatar_url, access_token, refresh_token, created_at, updated_at
		FROM identity_link WHERE user_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.IdentityLink
	for rows.Next() {
		var l core.IdentityLink
		if err := rows.Scan(&l.ID, &l.UserID, &l.Provider, &l.ProviderUserID,
			&l.Handle, &l.DisplayName, &l.Email, &l.AvatarURL,
			&l.AccessToken, &l.RefreshToken, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUserProfile(ctx context.Context, u *core.User) error {
	const q = `UPDATE app_user
		SET username = $2, display_name = $3, email = $4, avatar_url = $5, wallet_address = $6,
			verified = $7, verification_level = $8, updated_at = now()
		WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, u.ID, u.Username, u.DisplayName, u.Email, u.AvatarURL,
		u.WalletAddress, u.Verified, u.VerificationLevel)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrConflict
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// RecordVerification mantiene una fila por (user_id, provider): cada
// verificación exitosa pisa la anterior con el estado más reciente.
func (s *Store) RecordVerification(ctx context.Context, rec *core.VerificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.VerifiedAt.IsZero() {
		rec.VerifiedAt = time.Now().UTC()
	}
	const q = `INSERT INTO verification_record
		(id, user_id, provider, outcome, verified, proof_hash, tx_hash, verified_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			verified = EXCLUDED.verified,
			proof_hash = EXCLUDED.proof_hash,
			tx_hash = EXCLUDED.tx_hash,
			verified_at = EXCLUDED.verified_at`
	_, err := s.pool.Exec(ctx, q, rec.ID, rec.UserID, rec.Provider, rec.Outcome,
		rec.Verified, rec.ProofHash, rec.TxHash, rec.VerifiedAt)
	return err
}

// ====================== STREAK ======================

// TouchLoginDay cuenta un login por día UTC. La comparación con
// last_login_day decide si el streak continúa, se reinicia o ya contó hoy.
func (s *Store) TouchLoginDay(ctx context.Context, userID string, day time.Time) (int, bool, error) {
	now := day.UTC()
	day = now.Truncate(24 * time.Hour)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback(ctx)

	const qSel = `SELECT login_streak, last_login_day FROM app_user WHERE id = $1 FOR UPDATE`
	var streak int
	var last *time.Time
	if err := tx.QueryRow(ctx, qSel, userID).Scan(&streak, &last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, core.ErrNotFound
		}
		return 0, false, err
	}

	if last != nil {
		lastDay := last.UTC().Truncate(24 * time.Hour)
		switch {
		case !day.After(lastDay):
			// ya contó hoy (o reloj hacia atrás): no-op
			return streak, false, tx.Commit(ctx)
		case day.Sub(lastDay) == 24*time.Hour:
			streak++
		default:
			streak = 1
		}
	} else {
		streak = 1
	}

	const qUpd = `UPDATE app_user
		SET login_streak = $2, max_streak = GREATEST(max_streak, $2),
			last_login_day = $3, first_login_of_day = $4, updated_at = now()
		WHERE id = $1`
	if _, err := tx.Exec(ctx, qUpd, userID, streak, day, now); err != nil {
		return 0, false, err
	}
	return streak, true, tx.Commit(ctx)
}
