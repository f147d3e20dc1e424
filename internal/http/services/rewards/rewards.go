// Package rewards expone balance, historial y claim del ledger de tokens.
package rewards

import (
	"context"
	"errors"

	"github.com/dropDatabas3/socialid/internal/observability/logger"
	"github.com/dropDatabas3/socialid/internal/reward/voucher"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

var (
	ErrNothingToClaim = errors.New("rewards: nothing to claim")
	ErrNoWallet       = errors.New("rewards: user has no wallet linked")
)

type Service struct {
	Repo   core.Repository
	Signer *voucher.Signer
}

type BalanceView struct {
	Balance int64
	Streak  int
	Entries []core.RewardEntry
}

func (s *Service) Balance(ctx context.Context, userID string) (*BalanceView, error) {
	u, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.Repo.ListRewardEntries(ctx, userID, 50)
	if err != nil {
		return nil, err
	}
	return &BalanceView{Balance: u.TokenBalance, Streak: u.LoginStreak, Entries: entries}, nil
}

// Claim debita el balance completo y firma el voucher EIP-712.
//
// El orden es debitar primero, firmar después: un voucher firmado sin
// debitar sería dinero duplicado; un débito sin voucher se repone. Si
// la firma falla se re-acredita best-effort y el error queda logueado.
func (s *Service) Claim(ctx context.Context, userID string) (*core.Voucher, error) {
	u, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.WalletAddress == nil || *u.WalletAddress == "" {
		return nil, ErrNoWallet
	}

	amount, err := s.Repo.ClaimBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNothingToClaim) {
			return nil, ErrNothingToClaim
		}
		return nil, err
	}

	v, err := s.Signer.Sign(*u.WalletAddress, amount)
	if err != nil {
		log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Rewards.Claim"), logger.UserID(userID))
		log.Error("voucher sign failed after debit", logger.Amount(amount), logger.Err(err))
		if rerr := s.Repo.CreditTokens(ctx, userID, core.RewardClaim, amount); rerr != nil {
			log.Error("re-credit after failed sign also failed", logger.Err(rerr))
		}
		return nil, err
	}

	logger.From(ctx).Info("balance claimed",
		logger.Layer("service"), logger.Op("Rewards.Claim"),
		logger.UserID(userID), logger.Amount(amount))
	return v, nil
}
