package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dropDatabas3/socialid/internal/cache"
	"github.com/dropDatabas3/socialid/internal/providers"
)

const testDomain = "app.example.com"

func newTestAdapter() (*Adapter, cache.Client) {
	c := cache.NewMemory("", time.Minute)
	return New(testDomain, c, 5*time.Minute), c
}

func siweMessage(domain, address, nonce string, extra ...string) string {
	msg := domain + " wants you to sign in with your Ethereum account:\n" +
		address + "\n" +
		"\n" +
		"Sign in to SocialID\n" +
		"\n" +
		"URI: https://" + domain + "\n" +
		"Version: 1\n" +
		"Chain ID: 1\n" +
		"Nonce: " + nonce + "\n" +
		"Issued At: " + time.Now().UTC().Format(time.RFC3339)
	for _, e := range extra {
		msg += "\n" + e
	}
	return msg
}

// signEIP191 firma como personal_sign: prefijo + keccak, v en {27,28}.
func signEIP191(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	hash := crypto.Keccak256Hash(
		[]byte("\x19Ethereum Signed Message:\n"),
		[]byte(strconv.Itoa(len(message))),
		[]byte(message),
	)
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}

func payload(t *testing.T, message, signature string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(map[string]string{"message": message, "signature": signature})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestVerify_ValidSignature(t *testing.T) {
	t.Parallel()
	a, _ := newTestAdapter()
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	nonce, err := a.IssueNonce(ctx)
	if err != nil {
		t.Fatalf("IssueNonce err: %v", err)
	}

	msg := siweMessage(testDomain, addr, nonce)
	id, err := a.Verify(ctx, payload(t, msg, signEIP191(t, key, msg)))
	if err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if id.WalletAddress != addr {
		t.Fatalf("WalletAddress = %q, want %q", id.WalletAddress, addr)
	}
	if id.ProviderUserID != strings.ToLower(addr) {
		t.Fatalf("ProviderUserID = %q, want lowercased %q", id.ProviderUserID, addr)
	}
}

func TestVerify_NonceIsSingleUse(t *testing.T) {
	t.Parallel()
	a, _ := newTestAdapter()
	ctx := context.Background()

	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	nonce, err := a.IssueNonce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	msg := siweMessage(testDomain, addr, nonce)
	p := payload(t, msg, signEIP191(t, key, msg))

	if _, err := a.Verify(ctx, p); err != nil {
		t.Fatalf("first Verify err: %v", err)
	}
	if _, err := a.Verify(ctx, p); !errors.Is(err, providers.ErrExpiredCredential) {
		t.Fatalf("replay err = %v, want ErrExpiredCredential", err)
	}
}

func TestVerify_GarbageSignatureDoesNotBurnNonce(t *testing.T) {
	t.Parallel()
	a, _ := newTestAdapter()
	ctx := context.Background()

	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	nonce, err := a.IssueNonce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	msg := siweMessage(testDomain, addr, nonce)

	// una firma inválida no debe consumir el nonce
	if _, err := a.Verify(ctx, payload(t, msg, "0xdeadbeef")); !errors.Is(err, providers.ErrInvalidCredential) {
		t.Fatalf("garbage sig err = %v, want ErrInvalidCredential", err)
	}

	// el cliente legítimo todavía puede usarlo
	if _, err := a.Verify(ctx, payload(t, msg, signEIP191(t, key, msg))); err != nil {
		t.Fatalf("Verify after garbage sig err: %v", err)
	}
}

func TestVerify_RejectsWrongSigner(t *testing.T) {
	t.Parallel()
	a, _ := newTestAdapter()
	ctx := context.Background()

	victim, _ := crypto.GenerateKey()
	attacker, _ := crypto.GenerateKey()
	victimAddr := crypto.PubkeyToAddress(victim.PublicKey).Hex()

	nonce, err := a.IssueNonce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// mensaje declara la address de la víctima, firma el atacante
	msg := siweMessage(testDomain, victimAddr, nonce)
	if _, err := a.Verify(ctx, payload(t, msg, signEIP191(t, attacker, msg))); !errors.Is(err, providers.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestVerify_RejectsWrongDomain(t *testing.T) {
	t.Parallel()
	a, _ := newTestAdapter()
	ctx := context.Background()

	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	nonce, err := a.IssueNonce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	msg := siweMessage("evil.example.com", addr, nonce)
	if _, err := a.Verify(ctx, payload(t, msg, signEIP191(t, key, msg))); !errors.Is(err, providers.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestVerify_RejectsUnknownNonce(t *testing.T) {
	t.Parallel()
	a, _ := newTestAdapter()
	ctx := context.Background()

	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	msg := siweMessage(testDomain, addr, "nunca-emitido")
	if _, err := a.Verify(ctx, payload(t, msg, signEIP191(t, key, msg))); !errors.Is(err, providers.ErrExpiredCredential) {
		t.Fatalf("err = %v, want ErrExpiredCredential", err)
	}
}

func TestVerify_ExpirationTime(t *testing.T) {
	t.Parallel()
	a, _ := newTestAdapter()
	ctx := context.Background()

	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	nonce, err := a.IssueNonce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	expired := fmt.Sprintf("Expiration Time: %s", time.Now().UTC().Add(-time.Minute).Format(time.RFC3339))
	msg := siweMessage(testDomain, addr, nonce, expired)
	if _, err := a.Verify(ctx, payload(t, msg, signEIP191(t, key, msg))); !errors.Is(err, providers.ErrExpiredCredential) {
		t.Fatalf("err = %v, want ErrExpiredCredential", err)
	}
}

func TestParseSIWE_BadMessages(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":       "",
		"no header":   "hola\n0x0000000000000000000000000000000000000001",
		"bad address": testDomain + " wants you to sign in with your Ethereum account:\nnot-an-address\nNonce: abc",
		"no nonce": testDomain + " wants you to sign in with your Ethereum account:\n" +
			"0x0000000000000000000000000000000000000001",
	}
	for name, msg := range cases {
		if _, err := parseSIWE(msg); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}
