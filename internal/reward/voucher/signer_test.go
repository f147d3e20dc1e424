package voucher

import (
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const testContract = "0x1111111111111111111111111111111111111111"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(hex.EncodeToString(crypto.FromECDSA(key)), testContract, 31337, time.Hour)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	return s
}

func TestNew_RejectsBadKey(t *testing.T) {
	t.Parallel()
	if _, err := New("zz-not-hex", testContract, 1, time.Hour); err == nil {
		t.Fatalf("expected error for invalid key")
	}
}

func TestSign_RejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)
	if _, err := s.Sign("0x2222222222222222222222222222222222222222", 0); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if _, err := s.Sign("0x2222222222222222222222222222222222222222", -5); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

// ecrecover del voucher debe dar la address del signer.
func TestSign_SignatureRecoversToSignerAddress(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	to := "0x2222222222222222222222222222222222222222"
	v, err := s.Sign(to, 125)
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}

	sig, err := hexutil.Decode(v.Signature)
	if err != nil || len(sig) != 65 {
		t.Fatalf("bad signature encoding: %v (len %d)", err, len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("v = %d, want 27 or 28", sig[64])
	}
	sig[64] -= 27

	digest, _, err := apitypes.TypedDataAndHash(apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Voucher": {
				{Name: "to", Type: "address"},
				{Name: "amount", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Voucher",
		Domain: apitypes.TypedDataDomain{
			Name:              "SocialIDRewards",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(31337),
			VerifyingContract: testContract,
		},
		Message: apitypes.TypedDataMessage{
			"to":       to,
			"amount":   new(big.Int).SetInt64(v.Amount),
			"nonce":    new(big.Int).SetInt64(v.Nonce),
			"deadline": new(big.Int).SetInt64(v.Deadline),
		},
	})
	if err != nil {
		t.Fatalf("TypedDataAndHash err: %v", err)
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("SigToPub err: %v", err)
	}
	if got := crypto.PubkeyToAddress(*pub).Hex(); got != s.Address() {
		t.Fatalf("recovered %s, want %s", got, s.Address())
	}
}

func TestSign_DeadlineUsesTTL(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	v, err := s.Sign("0x2222222222222222222222222222222222222222", 10)
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}
	if v.Deadline != fixed.Add(time.Hour).Unix() {
		t.Fatalf("deadline = %d, want %d", v.Deadline, fixed.Add(time.Hour).Unix())
	}
}

// Nonces estrictamente crecientes aunque el reloj no avance.
func TestSign_NoncesStrictlyIncrease(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	v1, err := s.Sign("0x2222222222222222222222222222222222222222", 1)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := s.Sign("0x2222222222222222222222222222222222222222", 1)
	if err != nil {
		t.Fatal(err)
	}
	if v2.Nonce <= v1.Nonce {
		t.Fatalf("nonce not increasing: %d then %d", v1.Nonce, v2.Nonce)
	}
}
