// Package streak lleva la racha de logins diarios y acredita los
// rewards asociados.
package streak

import (
	"context"
	"time"

	"github.com/dropDatabas3/socialid/internal/observability/logger"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Service struct {
	Repo core.Repository

	DailyAmount  int64
	BonusAmount  int64
	StreakLength int // días consecutivos para el bonus

	now func() time.Time
}

func New(repo core.Repository, daily, bonus int64, length int) *Service {
	return &Service{
		Repo:         repo,
		DailyAmount:  daily,
		BonusAmount:  bonus,
		StreakLength: length,
		now:          time.Now,
	}
}

// Touch registra el login del día (UTC). El primer login de cada día
// acredita DailyAmount; completar StreakLength días seguidos suma el
// bonus. Logins repetidos en el día no acreditan nada.
func (s *Service) Touch(ctx context.Context, userID string) (int, error) {
	streak, counted, err := s.Repo.TouchLoginDay(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if !counted {
		return streak, nil
	}

	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Streak.Touch"), logger.UserID(userID))

	if err := s.Repo.CreditTokens(ctx, userID, core.RewardDailyLogin, s.DailyAmount); err != nil {
		log.Warn("daily login credit failed", logger.Err(err))
	}
	if s.StreakLength > 0 && streak > 0 && streak%s.StreakLength == 0 {
		if err := s.Repo.CreditTokens(ctx, userID, core.RewardStreakBonus, s.BonusAmount); err != nil {
			log.Warn("streak bonus credit failed", logger.Err(err))
		} else {
			log.Info("streak bonus credited", logger.Int("streak", streak), logger.Amount(s.BonusAmount))
		}
	}

	return streak, nil
}
