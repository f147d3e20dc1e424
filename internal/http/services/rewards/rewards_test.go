package rewards

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dropDatabas3/socialid/internal/reward/voucher"
	"github.com/dropDatabas3/socialid/internal/store/core"
	"github.com/dropDatabas3/socialid/internal/store/memstore"
)

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	signer, err := voucher.New(hex.EncodeToString(crypto.FromECDSA(key)),
		"0x1111111111111111111111111111111111111111", 31337, time.Hour)
	if err != nil {
		t.Fatalf("voucher.New err: %v", err)
	}
	repo := memstore.New()
	return &Service{Repo: repo, Signer: signer}, repo
}

func newUser(t *testing.T, repo *memstore.Store, username, wallet string) string {
	t.Helper()
	u := &core.User{Username: username}
	if wallet != "" {
		u.WalletAddress = &wallet
	}
	err := repo.CreateUserWithLink(context.Background(), u, &core.IdentityLink{
		Provider:       core.ProviderWallet,
		ProviderUserID: "w-" + username,
	})
	if err != nil {
		t.Fatalf("CreateUserWithLink err: %v", err)
	}
	return u.ID
}

func TestClaim_DebitsAndSigns(t *testing.T) {
	t.Parallel()
	svc, repo := newTestService(t)
	ctx := context.Background()

	wallet := "0x2222222222222222222222222222222222222222"
	uid := newUser(t, repo, "alice", wallet)
	if err := repo.CreditTokens(ctx, uid, core.RewardDailyLogin, 120); err != nil {
		t.Fatal(err)
	}

	v, err := svc.Claim(ctx, uid)
	if err != nil {
		t.Fatalf("Claim err: %v", err)
	}
	if v.To != wallet || v.Amount != 120 || v.Signature == "" {
		t.Fatalf("voucher = %+v", v)
	}

	u, err := repo.GetUserByID(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if u.TokenBalance != 0 {
		t.Fatalf("balance after claim = %d, want 0", u.TokenBalance)
	}

	// segundo claim: balance ya en cero
	if _, err := svc.Claim(ctx, uid); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("err = %v, want ErrNothingToClaim", err)
	}
}

func TestClaim_ConcurrentClaimsMintOneVoucher(t *testing.T) {
	t.Parallel()
	svc, repo := newTestService(t)
	ctx := context.Background()

	wallet := "0x3333333333333333333333333333333333333333"
	uid := newUser(t, repo, "alice", wallet)
	if err := repo.CreditTokens(ctx, uid, core.RewardDailyLogin, 500); err != nil {
		t.Fatal(err)
	}

	const n = 16
	results := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Claim(ctx, uid)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, empty int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNothingToClaim):
			empty++
		default:
			t.Fatalf("unexpected err: %v", err)
		}
	}
	if ok != 1 || empty != n-1 {
		t.Fatalf("ok = %d, empty = %d, want 1 and %d", ok, empty, n-1)
	}

	u, err := repo.GetUserByID(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if u.TokenBalance != 0 {
		t.Fatalf("balance = %d, want 0", u.TokenBalance)
	}
}

func TestClaim_RequiresWallet(t *testing.T) {
	t.Parallel()
	svc, repo := newTestService(t)
	ctx := context.Background()

	uid := newUser(t, repo, "alice", "")
	if err := repo.CreditTokens(ctx, uid, core.RewardDailyLogin, 10); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Claim(ctx, uid); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("err = %v, want ErrNoWallet", err)
	}
	// el balance no se toca sin wallet
	u, _ := repo.GetUserByID(ctx, uid)
	if u.TokenBalance != 10 {
		t.Fatalf("balance = %d, want 10", u.TokenBalance)
	}
}

func TestBalance_ReturnsLedger(t *testing.T) {
	t.Parallel()
	svc, repo := newTestService(t)
	ctx := context.Background()

	uid := newUser(t, repo, "alice", "")
	if err := repo.CreditTokens(ctx, uid, core.RewardDailyLogin, 10); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreditTokens(ctx, uid, core.RewardFriendAccept, 50); err != nil {
		t.Fatal(err)
	}

	view, err := svc.Balance(ctx, uid)
	if err != nil {
		t.Fatalf("Balance err: %v", err)
	}
	if view.Balance != 60 {
		t.Fatalf("balance = %d, want 60", view.Balance)
	}
	if len(view.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(view.Entries))
	}
}
