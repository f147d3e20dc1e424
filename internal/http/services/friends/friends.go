// Package friends maneja el grafo de amistades y el premio por amistad.
package friends

import (
	"context"
	"errors"

	"github.com/dropDatabas3/socialid/internal/observability/logger"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

var (
	ErrSelfFriendship = errors.New("friends: cannot befriend yourself")
	ErrUserMissing    = errors.New("friends: user not found")
	ErrAlreadyRelated = errors.New("friends: relationship already exists")
	ErrNoPending      = errors.New("friends: no pending request")
	ErrNotRelated     = errors.New("friends: no such friendship")
)

type Service struct {
	Repo core.Repository

	// Tokens acreditados a cada usuario cuando el par se hace amigo por
	// primera vez.
	AcceptReward int64
}

func (s *Service) Request(ctx context.Context, requesterID, addresseeID string) (*core.Friendship, error) {
	if requesterID == addresseeID {
		return nil, ErrSelfFriendship
	}
	if _, err := s.Repo.GetUserByID(ctx, addresseeID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrUserMissing
		}
		return nil, err
	}

	f, err := s.Repo.CreateFriendRequest(ctx, requesterID, addresseeID)
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, ErrAlreadyRelated
		}
		return nil, err
	}
	return f, nil
}

// Accept acepta la solicitud pending requester -> addressee y, si es la
// primera amistad de este par, acredita el premio a ambos.
func (s *Service) Accept(ctx context.Context, requesterID, addresseeID string) (*core.Friendship, error) {
	f, err := s.Repo.AcceptFriendRequest(ctx, requesterID, addresseeID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrNoPending
		}
		return nil, err
	}

	// pair_key determinístico: re-amistades (unfriend + nueva solicitud)
	// no vuelven a pagar.
	first, err := s.Repo.ClaimFriendshipReward(ctx, core.PairKey(requesterID, addresseeID))
	if err != nil {
		logger.From(ctx).Warn("friendship reward claim failed", logger.Err(err))
		return f, nil
	}
	if first && s.AcceptReward > 0 {
		log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Friends.Accept"))
		for _, uid := range []string{requesterID, addresseeID} {
			if err := s.Repo.CreditTokens(ctx, uid, core.RewardFriendAccept, s.AcceptReward); err != nil {
				log.Warn("friend reward credit failed", logger.UserID(uid), logger.Err(err))
			}
		}
		log.Info("friendship reward credited", logger.Amount(s.AcceptReward))
	}

	return f, nil
}

// Decline descarta la solicitud pending requester -> addressee.
func (s *Service) Decline(ctx context.Context, requesterID, addresseeID string) error {
	f, err := s.Repo.GetFriendship(ctx, requesterID, addresseeID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrNoPending
		}
		return err
	}
	if f.Status != core.FriendshipPending || f.RequesterID != requesterID || f.AddresseeID != addresseeID {
		return ErrNoPending
	}
	return s.Repo.DeleteFriendship(ctx, requesterID, addresseeID)
}

// Remove deshace una amistad aceptada. El registro de friendship_reward
// queda: volver a agregarse no paga de nuevo.
func (s *Service) Remove(ctx context.Context, userID, otherID string) error {
	f, err := s.Repo.GetFriendship(ctx, userID, otherID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrNotRelated
		}
		return err
	}
	if f.Status != core.FriendshipAccepted {
		return ErrNotRelated
	}
	return s.Repo.DeleteFriendship(ctx, userID, otherID)
}

func (s *Service) List(ctx context.Context, userID string) ([]core.User, error) {
	return s.Repo.ListFriends(ctx, userID)
}

func (s *Service) Pending(ctx context.Context, userID string) ([]core.Friendship, error) {
	return s.Repo.ListPendingRequests(ctx, userID)
}
