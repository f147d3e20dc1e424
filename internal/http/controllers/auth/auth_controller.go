// Package auth expone los endpoints de verificación de identidad,
// sesión y perfil.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dto "github.com/dropDatabas3/socialid/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/socialid/internal/http/errors"
	"github.com/dropDatabas3/socialid/internal/http/middlewares"
	"github.com/dropDatabas3/socialid/internal/http/services/reconcile"
	"github.com/dropDatabas3/socialid/internal/observability/logger"
	"github.com/dropDatabas3/socialid/internal/providers"
	"github.com/dropDatabas3/socialid/internal/providers/discord"
	"github.com/dropDatabas3/socialid/internal/providers/twitter"
	"github.com/dropDatabas3/socialid/internal/providers/wallet"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

const (
	maxVerifyBodySize = 64 * 1024 // 64KB
	contentTypeJSON   = "application/json; charset=utf-8"
)

// Controller agrupa los endpoints de auth.
type Controller struct {
	Registry  *providers.Registry
	Reconcile *reconcile.Service
	Repo      core.Repository

	// Adapters con endpoints propios de flujo (start/nonce). Pueden ser
	// nil si el provider está deshabilitado.
	Twitter *twitter.Adapter
	Discord *discord.Adapter
	Wallet  *wallet.Adapter

	NonceTTL     time.Duration
	LinkStateTTL time.Duration
}

// Verify maneja POST /v1/auth/{provider}/verify.
// Con sesión + link_token vincula; sin sesión, login/alta.
func (c *Controller) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerName := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("Auth.Verify"),
		logger.Provider(providerName),
	)

	adapter, err := c.Registry.Get(providerName)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("unknown provider"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxVerifyBodySize)
	defer r.Body.Close()

	var req dto.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if len(req.Payload) == 0 {
		httperrors.WriteError(w, httperrors.ErrBadProviderPayload.WithDetail("missing payload"))
		return
	}

	identity, err := adapter.Verify(ctx, req.Payload)
	if err != nil {
		log.Debug("provider verification failed", logger.Err(err))
		writeVerifyError(w, err)
		return
	}

	result, err := c.Reconcile.Reconcile(ctx, identity, req.LinkToken, req.ReferralCode)
	if err != nil {
		log.Debug("reconcile failed", logger.Err(err))
		writeReconcileError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")

	status := http.StatusOK
	if result.NewUser {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.VerifyResponse{
		Outcome:   result.Outcome,
		NewUser:   result.NewUser,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Streak:    result.Streak,
		User:      userView(result.User),
	})
}

// TwitterStart maneja GET /v1/auth/twitter/start.
func (c *Controller) TwitterStart(w http.ResponseWriter, r *http.Request) {
	if c.Twitter == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("twitter disabled"))
		return
	}
	url, err := c.Twitter.Start(r.Context())
	if err != nil {
		writeVerifyError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.StartResponse{AuthorizeURL: url})
}

// DiscordStart maneja GET /v1/auth/discord/start.
func (c *Controller) DiscordStart(w http.ResponseWriter, r *http.Request) {
	if c.Discord == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("discord disabled"))
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.StartResponse{
		AuthorizeURL: c.Discord.AuthorizeURL(r.URL.Query().Get("state")),
	})
}

// WalletNonce maneja GET /v1/auth/wallet/nonce.
func (c *Controller) WalletNonce(w http.ResponseWriter, r *http.Request) {
	if c.Wallet == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("wallet disabled"))
		return
	}
	nonce, err := c.Wallet.IssueNonce(r.Context())
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.NonceResponse{
		Nonce:     nonce,
		ExpiresIn: int(c.NonceTTL.Seconds()),
	})
}

// LinkStart maneja POST /v1/auth/link/start (requiere sesión).
func (c *Controller) LinkStart(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.GetUserID(r.Context())
	token, err := c.Reconcile.IssueLinkState(r.Context(), userID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.LinkStartResponse{
		LinkToken: token,
		ExpiresIn: int(c.LinkStateTTL.Seconds()),
	})
}

// Providers maneja GET /v1/auth/providers.
func (c *Controller) Providers(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, dto.ProvidersResponse{Providers: c.Registry.Names()})
}

// Me maneja GET /v1/me (requiere sesión).
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)

	user, err := c.Repo.GetUserByID(ctx, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	links, err := c.Repo.ListLinks(ctx, userID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	resp := dto.MeResponse{User: userView(user), Links: make([]dto.LinkView, 0, len(links))}
	for _, l := range links {
		resp.Links = append(resp.Links, dto.LinkView{
			Provider:       l.Provider,
			ProviderUserID: l.ProviderUserID,
			Handle:         l.Handle,
			DisplayName:    l.DisplayName,
			AvatarURL:      l.AvatarURL,
			LinkedAt:       l.CreatedAt,
			UpdatedAt:      l.UpdatedAt,
		})
	}
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

// UpdateProfile maneja PATCH /v1/me (requiere sesión).
func (c *Controller) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxVerifyBodySize)
	defer r.Body.Close()

	var req dto.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	user, err := c.Repo.GetUserByID(ctx, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if user.Username == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("username cannot be empty"))
		return
	}

	if err := c.Repo.UpdateUserProfile(ctx, user); err != nil {
		if errors.Is(err, core.ErrConflict) {
			httperrors.WriteError(w, httperrors.ErrDuplicateUsernameOrWallet)
			return
		}
		writeStoreError(w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, userView(user))
}

// ───────────────────────── helpers ─────────────────────────

func userView(u *core.User) dto.UserView {
	v := dto.UserView{
		ID:                u.ID,
		Username:          u.Username,
		DisplayName:       u.DisplayName,
		Email:             u.Email,
		AvatarURL:         u.AvatarURL,
		Verified:          u.Verified,
		VerificationLevel: u.VerificationLevel,
		ReferralCode:      u.ReferralCode,
		TokenBalance:      u.TokenBalance,
		LoginStreak:       u.LoginStreak,
		MaxStreak:         u.MaxStreak,
	}
	if u.WalletAddress != nil {
		v.WalletAddress = *u.WalletAddress
	}
	return v
}

// writeVerifyError mapea errores de providers a la taxonomía HTTP.
func writeVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, providers.ErrBadPayload):
		httperrors.WriteError(w, httperrors.ErrBadProviderPayload)
	case errors.Is(err, providers.ErrInvalidCredential):
		httperrors.WriteError(w, httperrors.ErrInvalidCredential)
	case errors.Is(err, providers.ErrExpiredCredential):
		httperrors.WriteError(w, httperrors.ErrExpiredCredential)
	case errors.Is(err, providers.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		httperrors.WriteError(w, httperrors.ErrProviderUnavailable)
	default:
		httperrors.WriteError(w, err)
	}
}

// writeReconcileError mapea errores del reconciler.
func writeReconcileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reconcile.ErrLinkTargetMissing):
		httperrors.WriteError(w, httperrors.ErrLinkTargetMissing)
	case errors.Is(err, reconcile.ErrAlreadyLinked):
		httperrors.WriteError(w, httperrors.ErrProviderAlreadyLinked)
	case errors.Is(err, reconcile.ErrDuplicateProfile):
		httperrors.WriteError(w, httperrors.ErrDuplicateUsernameOrWallet)
	case errors.Is(err, reconcile.ErrLinkStateInvalid):
		httperrors.WriteError(w, httperrors.ErrForbidden.WithDetail("link state invalid or already used"))
	default:
		httperrors.WriteError(w, err)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrNotFound) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}
	httperrors.WriteError(w, err)
}
