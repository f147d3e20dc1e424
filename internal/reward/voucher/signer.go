// Package voucher firma comprobantes EIP-712 que el contrato de rewards
// acepta para pagar tokens on-chain.
package voucher

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Signer struct {
	key         *ecdsa.PrivateKey
	chainID     int64
	contract    string
	deadlineTTL time.Duration

	// lastNonce garantiza nonces estrictamente crecientes aunque dos
	// claims caigan en el mismo nanosegundo.
	lastNonce atomic.Int64

	now func() time.Time
}

// New construye el signer desde la clave secp256k1 en hex.
// La clave es obligatoria: sin ella no se pueden emitir vouchers.
func New(keyHex, contract string, chainID int64, deadlineTTL time.Duration) (*Signer, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("voucher: parse signer key: %w", err)
	}
	return &Signer{
		key:         key,
		chainID:     chainID,
		contract:    contract,
		deadlineTTL: deadlineTTL,
		now:         time.Now,
	}, nil
}

// Address retorna la address del firmante (para verificación on-chain).
func (s *Signer) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

// Sign emite un voucher para retirar amount hacia la wallet to.
// El nonce es un timestamp monotónico en nanosegundos; el contrato lo
// usa para descartar replays.
func (s *Signer) Sign(to string, amount int64) (*core.Voucher, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("voucher: amount must be positive, got %d", amount)
	}

	nonce := s.nextNonce()
	deadline := s.now().Add(s.deadlineTTL).Unix()

	typedData := apitypes.TypedData{
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
			ChainId:           math.NewHexOrDecimal256(s.chainID),
			VerifyingContract: s.contract,
		},
		Message: apitypes.TypedDataMessage{
			"to":       to,
			"amount":   new(big.Int).SetInt64(amount),
			"nonce":    new(big.Int).SetInt64(nonce),
			"deadline": new(big.Int).SetInt64(deadline),
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("voucher: hash typed data: %w", err)
	}

	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("voucher: sign: %w", err)
	}
	// Los contratos (ecrecover) esperan v en {27,28}.
	sig[64] += 27

	return &core.Voucher{
		To:        to,
		Amount:    amount,
		Nonce:     nonce,
		Deadline:  deadline,
		Signature: hexutil.Encode(sig),
	}, nil
}

func (s *Signer) nextNonce() int64 {
	for {
		now := s.now().UnixNano()
		last := s.lastNonce.Load()
		if now <= last {
			now = last + 1
		}
		if s.lastNonce.CompareAndSwap(last, now) {
			return now
		}
	}
}
