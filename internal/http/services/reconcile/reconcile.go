// Package reconcile decide qué hacer con una identidad verificada:
// iniciar sesión sobre el usuario dueño del link, crear un usuario
// nuevo, o vincular la cuenta a un usuario existente (flujo de linking).
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/socialid/internal/cache"
	"github.com/dropDatabas3/socialid/internal/http/services/streak"
	"github.com/dropDatabas3/socialid/internal/jwt"
	"github.com/dropDatabas3/socialid/internal/observability/logger"
	"github.com/dropDatabas3/socialid/internal/providers"
	"github.com/dropDatabas3/socialid/internal/security/secretbox"
	tokens "github.com/dropDatabas3/socialid/internal/security/token"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

// Errores del reconciler. Los controllers los mapean a la taxonomía HTTP.
var (
	ErrLinkTargetMissing = errors.New("reconcile: link target missing")
	ErrAlreadyLinked     = errors.New("reconcile: provider already linked")
	ErrDuplicateProfile  = errors.New("reconcile: duplicate username or wallet")
	ErrLinkStateInvalid  = errors.New("reconcile: link state invalid")
)

// Outcomes.
const (
	OutcomeLogin = "login"
	OutcomeLink  = "link"
)

// Result es lo que recibe el controller tras reconciliar.
type Result struct {
	Outcome   string
	User      *core.User
	NewUser   bool
	Token     string // vacío en outcome link
	ExpiresAt time.Time
	Streak    int
}

type Service struct {
	Repo   core.Repository
	Issuer *jwt.Issuer
	Cache  cache.Client
	Box    *secretbox.Box
	Streak *streak.Service

	TransientTTL time.Duration // sesiones de providers sociales
	WalletTTL    time.Duration // sesiones wallet
	LinkStateTTL time.Duration
}

// Reconcile aplica la tabla de decisión sobre una identidad verificada.
//
// Con linkToken: la identidad se vincula al usuario del token, sin
// emitir sesión nueva. Sin linkToken: login si el link existe, alta de
// usuario si no. referralCode sólo cuenta en el alta.
func (s *Service) Reconcile(ctx context.Context, id *providers.Identity, linkToken, referralCode string) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("Reconcile"),
		logger.Provider(id.Provider),
		logger.ProviderUserID(id.ProviderUserID),
	)

	if linkToken != "" {
		return s.link(ctx, id, linkToken, log)
	}

	user, err := s.Repo.FindUserByProviderKey(ctx, id.Provider, id.ProviderUserID)
	switch {
	case err == nil:
		return s.login(ctx, user, id, log)
	case errors.Is(err, core.ErrNotFound):
		return s.register(ctx, id, referralCode, log)
	default:
		return nil, err
	}
}

// ───────────────────────── login ─────────────────────────

func (s *Service) login(ctx context.Context, user *core.User, id *providers.Identity, log *zap.Logger) (*Result, error) {
	// El provider es la fuente de verdad del sub-registro: un login
	// repetido refresca handle, perfil y tokens con lo recién verificado.
	link, err := s.buildLink(id)
	if err != nil {
		return nil, err
	}
	link.UserID = user.ID
	if err := s.Repo.UpsertLink(ctx, link); err != nil {
		log.Warn("link refresh failed", logger.UserID(user.ID), logger.Err(err))
	}

	if err := s.applyVerification(ctx, user, id); err != nil {
		return nil, err
	}

	streakCount := s.touchStreak(ctx, user.ID, log)

	s.audit(ctx, user.ID, id, OutcomeLogin, log)

	token, exp, err := s.Issuer.IssueSession(user.ID, id.Provider, s.sessionTTL(id.Provider))
	if err != nil {
		return nil, err
	}

	log.Info("login ok", logger.UserID(user.ID), logger.Outcome(OutcomeLogin))
	return &Result{
		Outcome:   OutcomeLogin,
		User:      user,
		Token:     token,
		ExpiresAt: exp,
		Streak:    streakCount,
	}, nil
}

// ───────────────────────── registro ─────────────────────────

func (s *Service) register(ctx context.Context, id *providers.Identity, referralCode string, log *zap.Logger) (*Result, error) {
	link, err := s.buildLink(id)
	if err != nil {
		return nil, err
	}

	referrerID := s.resolveReferrer(ctx, referralCode, log)

	base := usernameFrom(id)
	var user *core.User

	// 23505 en username => reintento con sufijo. Un conflicto que
	// persiste tras los reintentos (o en wallet) se reporta como perfil
	// duplicado: no hay sufijo que arregle una wallet repetida.
	for attempt := 0; attempt < 3; attempt++ {
		candidate := base
		if attempt > 0 {
			suffix, err := shortSuffix()
			if err != nil {
				return nil, err
			}
			candidate = base + "_" + suffix
		}
		code, err := tokens.GenerateOpaqueToken(6)
		if err != nil {
			return nil, err
		}

		u := &core.User{
			Username:     candidate,
			DisplayName:  id.DisplayName,
			Email:        id.Email,
			AvatarURL:    id.AvatarURL,
			ReferralCode: code,
			ReferrerID:   referrerID,
		}
		if id.WalletAddress != "" {
			w := id.WalletAddress
			u.WalletAddress = &w
		}
		if id.Provider == core.ProviderWorldID {
			u.Verified = true
			u.VerificationLevel = id.VerificationLevel
		}

		err = s.Repo.CreateUserWithLink(ctx, u, link)
		if err == nil {
			user = u
			break
		}
		if !errors.Is(err, core.ErrConflict) {
			return nil, err
		}
		// Carrera contra otro request con la misma identidad: si el
		// provider key ya quedó vinculado, esto es un login, no un alta.
		if owner, ferr := s.Repo.FindUserByProviderKey(ctx, id.Provider, id.ProviderUserID); ferr == nil {
			return s.login(ctx, owner, id, log)
		}
		if id.WalletAddress != "" {
			// pudo ser la wallet: verificar antes de reintentar username
			if _, werr := s.Repo.GetUserByWallet(ctx, id.WalletAddress); werr == nil {
				return nil, ErrDuplicateProfile
			}
		}
	}
	if user == nil {
		return nil, ErrDuplicateProfile
	}

	streakCount := s.touchStreak(ctx, user.ID, log)
	s.audit(ctx, user.ID, id, OutcomeLogin, log)

	token, exp, err := s.Issuer.IssueSession(user.ID, id.Provider, s.sessionTTL(id.Provider))
	if err != nil {
		return nil, err
	}

	log.Info("user registered", logger.UserID(user.ID), logger.Outcome(OutcomeLogin))
	return &Result{
		Outcome:   OutcomeLogin,
		User:      user,
		NewUser:   true,
		Token:     token,
		ExpiresAt: exp,
		Streak:    streakCount,
	}, nil
}

// ───────────────────────── linking ─────────────────────────

// IssueLinkState emite el JWT que encadena el flujo de vinculación.
// El jti se registra en cache y se consume una única vez.
func (s *Service) IssueLinkState(ctx context.Context, userID string) (string, error) {
	now := time.Now().UTC()
	jti := uuid.NewString()

	token, err := s.Issuer.SignRaw(jwtv5.MapClaims{
		"iss": s.Issuer.Iss,
		"sub": userID,
		"aud": jwt.AudLinkState,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(s.LinkStateTTL).Unix(),
		"jti": jti,
	})
	if err != nil {
		return "", err
	}

	if err := s.Cache.Set(ctx, "link:jti:"+jti, userID, s.LinkStateTTL); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) link(ctx context.Context, id *providers.Identity, linkToken string, log *zap.Logger) (*Result, error) {
	claims, err := s.Issuer.VerifyRaw(linkToken, jwt.AudLinkState)
	if err != nil {
		return nil, ErrLinkStateInvalid
	}
	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	if sub == "" || jti == "" {
		return nil, ErrLinkStateInvalid
	}

	// Un state sólo vincula una vez, aunque el JWT siga vigente.
	if _, err := s.Cache.Consume(ctx, "link:jti:"+jti); err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrLinkStateInvalid
		}
		return nil, err
	}

	user, err := s.Repo.GetUserByID(ctx, sub)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrLinkTargetMissing
		}
		return nil, err
	}

	link, err := s.buildLink(id)
	if err != nil {
		return nil, err
	}
	link.UserID = user.ID

	if err := s.Repo.CreateLink(ctx, link); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, ErrAlreadyLinked
		}
		return nil, err
	}

	// La wallet del link pasa al perfil si el usuario aún no tiene una.
	if id.WalletAddress != "" && user.WalletAddress == nil {
		w := id.WalletAddress
		user.WalletAddress = &w
		if err := s.Repo.UpdateUserProfile(ctx, user); err != nil {
			if errors.Is(err, core.ErrConflict) {
				return nil, ErrDuplicateProfile
			}
			return nil, err
		}
	}

	if err := s.applyVerification(ctx, user, id); err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, id, OutcomeLink, log)

	log.Info("identity linked", logger.UserID(user.ID), logger.Outcome(OutcomeLink))
	return &Result{Outcome: OutcomeLink, User: user}, nil
}

// ───────────────────────── helpers ─────────────────────────

func (s *Service) buildLink(id *providers.Identity) (*core.IdentityLink, error) {
	link := &core.IdentityLink{
		Provider:       id.Provider,
		ProviderUserID: id.ProviderUserID,
		Handle:         id.Handle,
		DisplayName:    id.DisplayName,
		Email:          id.Email,
		AvatarURL:      id.AvatarURL,
	}
	if id.AccessToken != "" && s.Box != nil {
		enc, err := s.Box.Encrypt(id.AccessToken)
		if err != nil {
			return nil, err
		}
		link.AccessToken = &enc
	}
	if id.RefreshToken != "" && s.Box != nil {
		enc, err := s.Box.Encrypt(id.RefreshToken)
		if err != nil {
			return nil, err
		}
		link.RefreshToken = &enc
	}
	return link, nil
}

// applyVerification sube el estado worldid al perfil del usuario.
func (s *Service) applyVerification(ctx context.Context, user *core.User, id *providers.Identity) error {
	if id.Provider != core.ProviderWorldID {
		return nil
	}
	if user.Verified && user.VerificationLevel == id.VerificationLevel {
		return nil
	}
	user.Verified = true
	user.VerificationLevel = id.VerificationLevel
	return s.Repo.UpdateUserProfile(ctx, user)
}

// resolveReferrer resuelve el código de referido, si vino. Un código
// desconocido no bloquea el alta.
func (s *Service) resolveReferrer(ctx context.Context, code string, log *zap.Logger) *string {
	if code == "" {
		return nil
	}
	ref, err := s.Repo.GetUserByReferralCode(ctx, code)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			log.Warn("referral lookup failed", logger.Err(err))
		}
		return nil
	}
	return &ref.ID
}

func (s *Service) sessionTTL(provider string) time.Duration {
	if provider == core.ProviderWallet {
		return s.WalletTTL
	}
	return s.TransientTTL
}

// touchStreak cuenta el login del día. Un fallo acá no bloquea el
// login: se loguea y se sigue.
func (s *Service) touchStreak(ctx context.Context, userID string, log *zap.Logger) int {
	if s.Streak == nil {
		return 0
	}
	n, err := s.Streak.Touch(ctx, userID)
	if err != nil {
		log.Warn("streak touch failed", logger.UserID(userID), logger.Err(err))
		return 0
	}
	return n
}

func (s *Service) audit(ctx context.Context, userID string, id *providers.Identity, outcome string, log *zap.Logger) {
	err := s.Repo.RecordVerification(ctx, &core.VerificationRecord{
		UserID:    userID,
		Provider:  id.Provider,
		Outcome:   outcome,
		Verified:  true,
		ProofHash: id.ProofHash,
	})
	if err != nil {
		log.Warn("verification record failed", logger.UserID(userID), logger.Err(err))
	}
}

func usernameFrom(id *providers.Identity) string {
	h := strings.TrimSpace(id.Handle)
	if h == "" {
		h = id.Provider + "_" + id.ProviderUserID
	}
	h = strings.ToLower(h)
	var sb strings.Builder
	for _, r := range h {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.' {
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if out == "" {
		out = id.Provider + "_user"
	}
	if len(out) > 32 {
		out = out[:32]
	}
	return out
}

func shortSuffix() (string, error) {
	u := uuid.NewString()
	if len(u) < 8 {
		return "", fmt.Errorf("uuid too short")
	}
	return u[:8], nil
}
