// Package router arma el http.Handler del servicio: rutas, middlewares
// globales y por grupo.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/socialid/internal/http/controllers/auth"
	friendsctrl "github.com/dropDatabas3/socialid/internal/http/controllers/friends"
	healthctrl "github.com/dropDatabas3/socialid/internal/http/controllers/health"
	messagesctrl "github.com/dropDatabas3/socialid/internal/http/controllers/messages"
	rewardsctrl "github.com/dropDatabas3/socialid/internal/http/controllers/rewards"
	httperrors "github.com/dropDatabas3/socialid/internal/http/errors"
	mw "github.com/dropDatabas3/socialid/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/socialid/internal/jwt"
	"github.com/dropDatabas3/socialid/internal/rate"
)

// Deps agrupa todo lo que el router necesita para cablear endpoints.
type Deps struct {
	Auth     *authctrl.Controller
	Friends  *friendsctrl.Controller
	Messages *messagesctrl.Controller
	Rewards  *rewardsctrl.Controller
	Health   *healthctrl.Controller

	Issuer *jwtx.Issuer

	// Limiters por grupo. Nil => sin límite.
	GlobalLimiter rate.Limiter
	AuthLimiter   rate.Limiter
	ClaimLimiter  rate.Limiter

	MetricsHandler http.Handler
	CORSOrigins    []string
}

// New construye el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middlewares globales (el primero intercepta primero)
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORSOrigins),
		mw.WithRateLimit(d.GlobalLimiter, mw.IPPathRateKey),
	)

	requireAuth := mw.RequireAuth(d.Issuer)
	authRate := mw.WithRateLimit(d.AuthLimiter, mw.IPPathRateKey)
	claimRate := mw.WithRateLimit(d.ClaimLimiter, mw.UserRateKey)

	// ───────── Health / Ops ─────────
	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	// ───────── Auth ─────────
	r.Get("/v1/auth/providers", d.Auth.Providers)
	r.Group(func(r chi.Router) {
		r.Use(authRate)
		r.Get("/v1/auth/twitter/start", d.Auth.TwitterStart)
		r.Get("/v1/auth/discord/start", d.Auth.DiscordStart)
		r.Get("/v1/auth/wallet/nonce", d.Auth.WalletNonce)
		r.Post("/v1/auth/{provider}/verify", d.Auth.Verify)
	})
	r.With(requireAuth).Post("/v1/auth/link/start", d.Auth.LinkStart)

	// ───────── Rutas con sesión ─────────
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		// Perfil
		r.Get("/v1/me", d.Auth.Me)
		r.Patch("/v1/me", d.Auth.UpdateProfile)

		// Amistades
		r.Get("/v1/friends", d.Friends.List)
		r.Get("/v1/friends/requests", d.Friends.Pending)
		r.Post("/v1/friends/requests", d.Friends.Request)
		r.Post("/v1/friends/accept", d.Friends.Accept)
		r.Post("/v1/friends/decline", d.Friends.Decline)
		r.Delete("/v1/friends/{userID}", d.Friends.Remove)

		// Mensajería
		r.Post("/v1/messages", d.Messages.Send)
		r.Get("/v1/messages/{userID}", d.Messages.Conversation)
		r.Post("/v1/messages/{userID}/read", d.Messages.MarkRead)

		// Rewards
		r.Post("/v1/daily-login", d.Rewards.DailyLogin)
		r.Get("/v1/rewards/balance", d.Rewards.Balance)
		r.With(claimRate).Post("/v1/rewards/claim", d.Rewards.Claim)
	})

	// 404/405 JSON consistentes
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	return r
}
