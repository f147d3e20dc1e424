// Package wallet verifica identidad por firma de wallet (SIWE, EIP-4361).
//
// El cliente pide un nonce, arma el mensaje Sign-In with Ethereum y lo
// firma con personal_sign (EIP-191). La verificación recupera la clave
// pública de la firma y la compara con la address declarada en el
// mensaje. El nonce es de un solo uso: se consume del cache.
package wallet

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dropDatabas3/socialid/internal/cache"
	"github.com/dropDatabas3/socialid/internal/providers"
	tokens "github.com/dropDatabas3/socialid/internal/security/token"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Adapter struct {
	Domain   string
	Cache    cache.Client
	NonceTTL time.Duration
	now      func() time.Time
}

func New(domain string, c cache.Client, nonceTTL time.Duration) *Adapter {
	return &Adapter{
		Domain:   domain,
		Cache:    c,
		NonceTTL: nonceTTL,
		now:      time.Now,
	}
}

func (a *Adapter) Name() string { return core.ProviderWallet }

// IssueNonce genera y registra un nonce para el flujo SIWE.
func (a *Adapter) IssueNonce(ctx context.Context) (string, error) {
	nonce, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return "", err
	}
	if err := a.Cache.Set(ctx, "siwe:nonce:"+nonce, "1", a.NonceTTL); err != nil {
		return "", err
	}
	return nonce, nil
}

type verifyPayload struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// siweFields son los campos del mensaje que nos importan.
type siweFields struct {
	Domain         string
	Address        string
	Nonce          string
	ExpirationTime *time.Time
	NotBefore      *time.Time
}

func (a *Adapter) Verify(ctx context.Context, payload json.RawMessage) (*providers.Identity, error) {
	var p verifyPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Message == "" || p.Signature == "" {
		return nil, providers.ErrBadPayload
	}

	fields, err := parseSIWE(p.Message)
	if err != nil {
		return nil, providers.ErrBadPayload
	}

	if a.Domain != "" && !strings.EqualFold(fields.Domain, a.Domain) {
		return nil, providers.ErrInvalidCredential
	}

	now := a.now().UTC()
	if fields.ExpirationTime != nil && now.After(*fields.ExpirationTime) {
		return nil, providers.ErrExpiredCredential
	}
	if fields.NotBefore != nil && now.Before(*fields.NotBefore) {
		return nil, providers.ErrInvalidCredential
	}

	// La firma se valida antes de tocar el nonce: una firma basura no
	// debe quemar un nonce que el cliente legítimo todavía puede usar.
	recovered, err := recoverAddress(p.Message, p.Signature)
	if err != nil {
		return nil, providers.ErrInvalidCredential
	}
	if !strings.EqualFold(recovered.Hex(), fields.Address) {
		return nil, providers.ErrInvalidCredential
	}

	// Consume garantiza un solo uso aunque lleguen dos verificaciones
	// con el mismo mensaje en paralelo.
	if _, err := a.Cache.Consume(ctx, "siwe:nonce:"+fields.Nonce); err != nil {
		if cache.IsNotFound(err) {
			return nil, providers.ErrExpiredCredential
		}
		return nil, err
	}

	addr := recovered.Hex() // checksummed
	return &providers.Identity{
		Provider:       core.ProviderWallet,
		ProviderUserID: strings.ToLower(addr),
		Handle:         addr,
		DisplayName:    shortAddress(addr),
		WalletAddress:  addr,
	}, nil
}

// recoverAddress aplica el prefijo EIP-191 y recupera la address firmante.
func recoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != 65 {
		return common.Address{}, providers.ErrInvalidCredential
	}
	// Las wallets emiten v en {27,28}; secp256k1 espera {0,1}.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := crypto.Keccak256Hash(
		[]byte("\x19Ethereum Signed Message:\n"),
		[]byte(strconv.Itoa(len(message))),
		[]byte(message),
	)
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// parseSIWE extrae los campos relevantes de un mensaje EIP-4361.
// No valida la gramática completa: campos faltantes => error.
func parseSIWE(message string) (*siweFields, error) {
	lines := strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, providers.ErrBadPayload
	}

	f := &siweFields{}

	// Línea 1: "<domain> wants you to sign in with your Ethereum account:"
	const suffix = " wants you to sign in with your Ethereum account:"
	if !strings.HasSuffix(lines[0], suffix) {
		return nil, providers.ErrBadPayload
	}
	f.Domain = strings.TrimSuffix(lines[0], suffix)

	// Línea 2: address
	f.Address = strings.TrimSpace(lines[1])
	if !common.IsHexAddress(f.Address) {
		return nil, providers.ErrBadPayload
	}

	for _, line := range lines[2:] {
		switch {
		case strings.HasPrefix(line, "Nonce: "):
			f.Nonce = strings.TrimPrefix(line, "Nonce: ")
		case strings.HasPrefix(line, "Expiration Time: "):
			if t, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, "Expiration Time: ")); err == nil {
				t = t.UTC()
				f.ExpirationTime = &t
			}
		case strings.HasPrefix(line, "Not Before: "):
			if t, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, "Not Before: ")); err == nil {
				t = t.UTC()
				f.NotBefore = &t
			}
		}
	}

	if f.Nonce == "" {
		return nil, providers.ErrBadPayload
	}
	return f, nil
}

func shortAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
