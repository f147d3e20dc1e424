// Package rewards expone balance y claim del ledger de tokens.
package rewards

import (
	"errors"
	"net/http"

	dto "github.com/dropDatabas3/socialid/internal/http/dto/rewards"
	httperrors "github.com/dropDatabas3/socialid/internal/http/errors"
	"github.com/dropDatabas3/socialid/internal/http/middlewares"
	svc "github.com/dropDatabas3/socialid/internal/http/services/rewards"
	streaksvc "github.com/dropDatabas3/socialid/internal/http/services/streak"
	"github.com/dropDatabas3/socialid/internal/observability/logger"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Controller struct {
	Service *svc.Service
	Streak  *streaksvc.Service
	Repo    core.Repository
}

// Balance maneja GET /v1/rewards/balance.
func (c *Controller) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := c.Service.Balance(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	resp := dto.BalanceResponse{
		Balance: view.Balance,
		Streak:  view.Streak,
		Entries: make([]dto.EntryView, 0, len(view.Entries)),
	}
	for _, e := range view.Entries {
		resp.Entries = append(resp.Entries, dto.EntryView{
			ID:        e.ID,
			Kind:      e.Kind,
			Amount:    e.Amount,
			CreatedAt: e.CreatedAt,
		})
	}
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

// DailyLogin maneja POST /v1/daily-login. Cuenta el login del día para
// el usuario autenticado; idempotente dentro del mismo día UTC.
func (c *Controller) DailyLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)

	streak, err := c.Streak.Touch(ctx, userID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	u, err := c.Repo.GetUserByID(ctx, userID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.DailyLoginResponse{
		Streak:  streak,
		Balance: u.TokenBalance,
	})
}

// Claim maneja POST /v1/rewards/claim.
func (c *Controller) Claim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Rewards.Claim"))

	v, err := c.Service.Claim(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		log.Debug("claim failed", logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrNothingToClaim):
			httperrors.WriteError(w, httperrors.ErrNothingToClaim)
		case errors.Is(err, svc.ErrNoWallet):
			httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("link a wallet before claiming"))
		default:
			httperrors.WriteError(w, err)
		}
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.ClaimResponse{
		To:        v.To,
		Amount:    v.Amount,
		Nonce:     v.Nonce,
		Deadline:  v.Deadline,
		Signature: v.Signature,
	})
}
