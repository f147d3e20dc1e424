// Package worldid verifica pruebas de proof-of-personhood contra la
// Developer API de World ID. La verificación es remota y fail-closed:
// si la API no responde, la credencial NO se acepta.
package worldid

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dropDatabas3/socialid/internal/providers"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Adapter struct {
	AppID     string
	Action    string
	VerifyURL string

	http *http.Client
}

func New(appID, action, verifyURL string) *Adapter {
	return &Adapter{
		AppID:     appID,
		Action:    action,
		VerifyURL: verifyURL,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *Adapter) Name() string { return core.ProviderWorldID }

type verifyPayload struct {
	NullifierHash     string `json:"nullifier_hash"`
	MerkleRoot        string `json:"merkle_root"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
}

type verifyRequest struct {
	NullifierHash     string `json:"nullifier_hash"`
	MerkleRoot        string `json:"merkle_root"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
	Action            string `json:"action"`
}

func (a *Adapter) Verify(ctx context.Context, payload json.RawMessage) (*providers.Identity, error) {
	var p verifyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, providers.ErrBadPayload
	}
	if p.NullifierHash == "" || p.MerkleRoot == "" || p.Proof == "" {
		return nil, providers.ErrBadPayload
	}

	body, err := json.Marshal(verifyRequest{
		NullifierHash:     p.NullifierHash,
		MerkleRoot:        p.MerkleRoot,
		Proof:             p.Proof,
		VerificationLevel: p.VerificationLevel,
		Action:            a.Action,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.VerifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, providers.ErrUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode/100 == 2:
		// proof válida
	case resp.StatusCode == http.StatusBadRequest:
		// la API responde 400 para proofs inválidas o ya usadas
		return nil, providers.ErrInvalidCredential
	default:
		return nil, providers.ErrUnavailable
	}

	// El nullifier hash es estable por (usuario, action): sirve de ID.
	return &providers.Identity{
		Provider:          core.ProviderWorldID,
		ProviderUserID:    p.NullifierHash,
		DisplayName:       "verified human",
		ProofHash:         p.NullifierHash,
		VerificationLevel: p.VerificationLevel,
	}, nil
}
