// Package providers define la abstracción común sobre los mecanismos de
// verificación de identidad externos (twitter, discord, telegram,
// wallet, worldid).
//
// Cada Adapter recibe el payload crudo del cliente, verifica la
// credencial contra el provider (o criptográficamente, en el caso de
// wallet/telegram) y devuelve una Identity normalizada. La decisión de
// login vs. link la toma el reconciler, nunca el adapter.
package providers

import (
	"context"
	"encoding/json"
	"errors"
)

// Identity es el resultado normalizado de una verificación exitosa.
type Identity struct {
	Provider       string
	ProviderUserID string
	Handle         string
	DisplayName    string
	Email          string
	AvatarURL      string
	// WalletAddress sólo lo setea el provider wallet (checksummed).
	WalletAddress string
	// AccessToken/RefreshToken en texto plano; el reconciler los cifra
	// antes de persistir.
	AccessToken  string
	RefreshToken string
	// ProofHash y VerificationLevel sólo los setea worldid.
	ProofHash         string
	VerificationLevel string
}

// Errores sentinela de verificación. Los controllers los mapean a la
// taxonomía HTTP; los adapters nunca tocan códigos de status.
var (
	ErrBadPayload        = errors.New("providers: bad payload")
	ErrInvalidCredential = errors.New("providers: invalid credential")
	ErrExpiredCredential = errors.New("providers: expired credential")
	ErrUnavailable       = errors.New("providers: provider unavailable")
	ErrUnknownProvider   = errors.New("providers: unknown provider")
)

// Adapter verifica credenciales de un provider concreto.
type Adapter interface {
	// Name retorna el identificador del provider (twitter, discord, ...).
	Name() string

	// Verify valida el payload y retorna la identidad normalizada.
	Verify(ctx context.Context, payload json.RawMessage) (*Identity, error)
}

// Registry resuelve adapters por nombre. Sólo providers habilitados por
// config se registran.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get retorna el adapter o ErrUnknownProvider.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return a, nil
}

// Names lista los providers registrados.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		out = append(out, n)
	}
	return out
}
