package reconcile

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/socialid/internal/cache"
	"github.com/dropDatabas3/socialid/internal/http/services/streak"
	"github.com/dropDatabas3/socialid/internal/jwt"
	"github.com/dropDatabas3/socialid/internal/providers"
	"github.com/dropDatabas3/socialid/internal/security/secretbox"
	"github.com/dropDatabas3/socialid/internal/store/core"
	"github.com/dropDatabas3/socialid/internal/store/memstore"
)

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	issuer, err := jwt.NewIssuer("socialid-test", base64.StdEncoding.EncodeToString(seed))
	require.NoError(t, err)

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 50)
	}
	box, err := secretbox.New(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	repo := memstore.New()
	return &Service{
		Repo:         repo,
		Issuer:       issuer,
		Cache:        cache.NewMemory("", time.Minute),
		Box:          box,
		Streak:       streak.New(repo, 10, 100, 7),
		TransientTTL: 24 * time.Hour,
		WalletTTL:    168 * time.Hour,
		LinkStateTTL: time.Hour,
	}, repo
}

func discordIdentity(id, handle string) *providers.Identity {
	return &providers.Identity{
		Provider:       core.ProviderDiscord,
		ProviderUserID: id,
		Handle:         handle,
		DisplayName:    handle,
	}
}

func TestReconcile_RegistersNewUser(t *testing.T) {
	t.Parallel()
	s, repo := newTestService(t)
	ctx := context.Background()

	res, err := s.Reconcile(ctx, discordIdentity("d-1", "Alice"), "", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeLogin, res.Outcome)
	require.True(t, res.NewUser)
	require.Equal(t, "alice", res.User.Username)
	require.Equal(t, 1, res.Streak)

	sc, err := s.Issuer.VerifySession(res.Token)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, sc.UserID)
	require.Equal(t, core.ProviderDiscord, sc.Provider)

	// primer login del día acredita el daily reward
	u, err := repo.GetUserByID(ctx, res.User.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), u.TokenBalance)

	recs := repo.Verifications()
	require.Len(t, recs, 1)
	require.Equal(t, OutcomeLogin, recs[0].Outcome)
}

func TestReconcile_LoginExistingUser(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t)
	ctx := context.Background()

	first, err := s.Reconcile(ctx, discordIdentity("d-1", "alice"), "", "")
	require.NoError(t, err)

	second, err := s.Reconcile(ctx, discordIdentity("d-1", "alice"), "", "")
	require.NoError(t, err)
	require.False(t, second.NewUser)
	require.Equal(t, first.User.ID, second.User.ID)
}

func TestReconcile_LoginRefreshesLink(t *testing.T) {
	t.Parallel()
	s, repo := newTestService(t)
	ctx := context.Background()

	id := discordIdentity("d-1", "alice")
	id.AccessToken = "tok-1"
	first, err := s.Reconcile(ctx, id, "", "")
	require.NoError(t, err)

	// la misma cuenta vuelve con handle, perfil y token nuevos
	renamed := discordIdentity("d-1", "alice_renamed")
	renamed.DisplayName = "Alice R."
	renamed.AvatarURL = "https://cdn.example/new.png"
	renamed.AccessToken = "tok-2"
	_, err = s.Reconcile(ctx, renamed, "", "")
	require.NoError(t, err)

	links, err := repo.ListLinks(ctx, first.User.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "alice_renamed", links[0].Handle)
	require.Equal(t, "Alice R.", links[0].DisplayName)
	require.Equal(t, "https://cdn.example/new.png", links[0].AvatarURL)

	require.NotNil(t, links[0].AccessToken)
	pt, err := s.Box.Decrypt(*links[0].AccessToken)
	require.NoError(t, err)
	require.Equal(t, "tok-2", pt)
}

func TestReconcile_AssignsReferralCode(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t)
	ctx := context.Background()

	a, err := s.Reconcile(ctx, discordIdentity("d-1", "alice"), "", "")
	require.NoError(t, err)
	require.NotEmpty(t, a.User.ReferralCode)

	b, err := s.Reconcile(ctx, discordIdentity("d-2", "bob"), "", "")
	require.NoError(t, err)
	require.NotEmpty(t, b.User.ReferralCode)
	require.NotEqual(t, a.User.ReferralCode, b.User.ReferralCode)
}

func TestReconcile_ReferralAttribution(t *testing.T) {
	t.Parallel()
	s, repo := newTestService(t)
	ctx := context.Background()

	a, err := s.Reconcile(ctx, discordIdentity("d-1", "alice"), "", "")
	require.NoError(t, err)

	b, err := s.Reconcile(ctx, discordIdentity("d-2", "bob"), "", a.User.ReferralCode)
	require.NoError(t, err)
	require.NotNil(t, b.User.ReferrerID)
	require.Equal(t, a.User.ID, *b.User.ReferrerID)

	u, err := repo.GetUserByID(ctx, b.User.ID)
	require.NoError(t, err)
	require.NotNil(t, u.ReferrerID)
	require.Equal(t, a.User.ID, *u.ReferrerID)

	// código desconocido: el alta sigue, sin referrer
	c, err := s.Reconcile(ctx, discordIdentity("d-3", "carol"), "", "no-such-code")
	require.NoError(t, err)
	require.Nil(t, c.User.ReferrerID)
}

func TestRegister_ProviderKeyRaceFallsBackToLogin(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t)
	ctx := context.Background()

	owner, err := s.Reconcile(ctx, discordIdentity("d-1", "alice"), "", "")
	require.NoError(t, err)

	// otro request perdió la carrera: el provider key ya quedó vinculado
	// entre su FindUserByProviderKey y su CreateUserWithLink
	res, err := s.register(ctx, discordIdentity("d-1", "alice"), "", zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, OutcomeLogin, res.Outcome)
	require.False(t, res.NewUser)
	require.Equal(t, owner.User.ID, res.User.ID)
}

func TestReconcile_WorldIDMarksVerified(t *testing.T) {
	t.Parallel()
	s, repo := newTestService(t)
	ctx := context.Background()

	res, err := s.Reconcile(ctx, &providers.Identity{
		Provider:          core.ProviderWorldID,
		ProviderUserID:    "0xnull",
		DisplayName:       "verified human",
		ProofHash:         "0xnull",
		VerificationLevel: "orb",
	}, "", "")
	require.NoError(t, err)
	require.True(t, res.User.Verified)
	require.Equal(t, "orb", res.User.VerificationLevel)

	recs := repo.Verifications()
	require.Len(t, recs, 1)
	require.True(t, recs[0].Verified)
	require.Equal(t, "0xnull", recs[0].ProofHash)
}

func TestReconcile_UsernameConflictGetsSuffix(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Reconcile(ctx, discordIdentity("d-1", "alice"), "", "")
	require.NoError(t, err)

	// misma handle desde otra cuenta: username con sufijo
	res, err := s.Reconcile(ctx, discordIdentity("d-2", "alice"), "", "")
	require.NoError(t, err)
	require.True(t, res.NewUser)
	require.True(t, strings.HasPrefix(res.User.Username, "alice_"), "got %q", res.User.Username)
}

func TestReconcile_DuplicateWalletRejected(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t)
	ctx := context.Background()

	wallet := func(pid, handle string) *providers.Identity {
		return &providers.Identity{
			Provider:       core.ProviderWallet,
			ProviderUserID: pid,
			Handle:         handle,
			WalletAddress:  "0xAbC0000000000000000000000000000000000001",
		}
	}

	_, err := s.Reconcile(ctx, wallet("w-1", "walleta"), "", "")
	require.NoError(t, err)

	// otra identidad con la misma wallet no puede registrarse
	_, err = s.Reconcile(ctx, wallet("w-2", "walletb"), "", "")
	require.ErrorIs(t, err, ErrDuplicateProfile)
}

func TestReconcile_WalletSessionUsesLongTTL(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t)
	ctx := context.Background()

	res, err := s.Reconcile(ctx, &providers.Identity{
		Provider:       core.ProviderWallet,
		ProviderUserID: "0xabc",
		Handle:         "0xAbC",
		WalletAddress:  "0xAbC0000000000000000000000000000000000001",
	}, "", "")
	require.NoError(t, err)
	require.Greater(t, time.Until(res.ExpiresAt), 100*time.Hour)
}

func TestReconcile_LinkFlow(t *testing.T) {
	t.Parallel()
	s, repo := newTestService(t)
	ctx := context.Background()

	owner, err := s.Reconcile(ctx, discordIdentity("d-1", "alice"), "", "")
	require.NoError(t, err)

	state, err := s.IssueLinkState(ctx, owner.User.ID)
	require.NoError(t, err)

	tg := &providers.Identity{
		Provider:       core.ProviderTelegram,
		ProviderUserID: "t-9",
		Handle:         "alice_tg",
	}
	res, err := s.Reconcile(ctx, tg, state, "")
	require.NoError(t, err)
	require.Equal(t, OutcomeLink, res.Outcome)
	require.Empty(t, res.Token, "link no emite sesión nueva")
	require.Equal(t, owner.User.ID, res.User.ID)

	links, err := repo.ListLinks(ctx, owner.User.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)

	// el mismo state no vincula dos veces
	_, err = s.Reconcile(ctx, &providers.Identity{
		Provider:       core.ProviderTwitter,
		ProviderUserID: "tw-1",
	}, state, "")
	require.ErrorIs(t, err, ErrLinkStateInvalid)
}

func TestReconcile_LinkAlreadyLinkedProvider(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t)
	ctx := context.Background()

	// usuario A ya tiene la cuenta de discord d-1
	_, err := s.Reconcile(ctx, discordIdentity("d-1", "alice"), "", "")
	require.NoError(t, err)

	// usuario B intenta vincular exactamente esa cuenta
	b, err := s.Reconcile(ctx, &providers.Identity{
		Provider:       core.ProviderTelegram,
		ProviderUserID: "t-1",
		Handle:         "bob",
	}, "", "")
	require.NoError(t, err)

	state, err := s.IssueLinkState(ctx, b.User.ID)
	require.NoError(t, err)

	_, err = s.Reconcile(ctx, discordIdentity("d-1", "alice"), state, "")
	require.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestReconcile_LinkTargetMissing(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t)
	ctx := context.Background()

	state, err := s.IssueLinkState(ctx, "no-such-user")
	require.NoError(t, err)

	_, err = s.Reconcile(ctx, discordIdentity("d-1", "alice"), state, "")
	require.ErrorIs(t, err, ErrLinkTargetMissing)
}

func TestReconcile_GarbageLinkTokenRejected(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t)

	_, err := s.Reconcile(context.Background(), discordIdentity("d-1", "alice"), "not-a-jwt", "")
	require.ErrorIs(t, err, ErrLinkStateInvalid)
}

func TestReconcile_AccessTokenStoredEncrypted(t *testing.T) {
	t.Parallel()
	s, repo := newTestService(t)
	ctx := context.Background()

	id := discordIdentity("d-1", "alice")
	id.AccessToken = "oauth-token-plaintext"

	res, err := s.Reconcile(ctx, id, "", "")
	require.NoError(t, err)

	links, err := repo.ListLinks(ctx, res.User.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.NotNil(t, links[0].AccessToken)
	require.NotEqual(t, "oauth-token-plaintext", *links[0].AccessToken)

	pt, err := s.Box.Decrypt(*links[0].AccessToken)
	require.NoError(t, err)
	require.Equal(t, "oauth-token-plaintext", pt)
}

func TestUsernameFrom_Sanitizes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		handle string
		want   string
	}{
		{"Alice", "alice"},
		{"Älice Wond3r!", "licewond3r"},
		{"", "discord_d-9"},
	}
	for _, c := range cases {
		got := usernameFrom(&providers.Identity{
			Provider:       core.ProviderDiscord,
			ProviderUserID: "d-9",
			Handle:         c.handle,
		})
		if c.handle == "" {
			// handle vacío cae a provider_providerID sanitizado
			require.True(t, strings.HasPrefix(got, "discord_"), "got %q", got)
			continue
		}
		require.Equal(t, c.want, got)
	}
}
