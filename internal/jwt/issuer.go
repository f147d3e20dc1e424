// Package jwt emite y verifica los tokens de sesión del servicio.
//
// Las sesiones se firman con EdDSA (ed25519). La misma clave firma el
// "linking state", un JWT de corta vida que encadena el flujo de
// vinculación de cuentas.
package jwt

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Audiencias conocidas.
const (
	AudSession   = "session"
	AudLinkState = "link-state"
)

var (
	ErrTokenInvalid = errors.New("jwt: token invalid")
	ErrTokenExpired = errors.New("jwt: token expired")
)

// Issuer firma y verifica tokens con una clave ed25519 fija.
type Issuer struct {
	Iss  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer construye el Issuer desde la seed en base64 (32 bytes).
// La clave es obligatoria: sin ella no hay sesiones.
func NewIssuer(iss, seedB64 string) (*Issuer, error) {
	seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(seedB64))
	if err != nil {
		seed, err = base64.RawStdEncoding.DecodeString(strings.TrimSpace(seedB64))
		if err != nil {
			return nil, fmt.Errorf("jwt: decode signing key: %w", err)
		}
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwt: signing key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Issuer{
		Iss:  iss,
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// SignRaw firma un MapClaims arbitrario y devuelve el JWT firmado.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.priv)
}

// IssueSession emite un token de sesión para el usuario.
// El TTL depende del provider con el que entró (lo decide el caller).
func (i *Issuer) IssueSession(sub, provider string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := jwtv5.MapClaims{
		"iss":      i.Iss,
		"sub":      sub,
		"aud":      AudSession,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      exp.Unix(),
		"provider": provider,
	}
	signed, err := i.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// SessionClaims es el resultado de verificar un token de sesión.
type SessionClaims struct {
	UserID   string
	Provider string
	IssuedAt time.Time
	Expires  time.Time
}

// VerifySession valida firma, exp y audiencia de un token de sesión.
// Tokens legacy traían el id del usuario en "userId" en vez de "sub";
// se normaliza acá para no romper sesiones vivas.
func (i *Issuer) VerifySession(token string) (*SessionClaims, error) {
	claims, err := i.parse(token, AudSession)
	if err != nil {
		return nil, err
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		sub, _ = claims["userId"].(string)
	}
	if sub == "" {
		return nil, ErrTokenInvalid
	}

	sc := &SessionClaims{UserID: sub}
	sc.Provider, _ = claims["provider"].(string)
	if v, ok := claims["iat"].(float64); ok {
		sc.IssuedAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := claims["exp"].(float64); ok {
		sc.Expires = time.Unix(int64(v), 0).UTC()
	}
	return sc, nil
}

// VerifyRaw valida firma y exp para una audiencia dada y retorna los claims.
func (i *Issuer) VerifyRaw(token, aud string) (jwtv5.MapClaims, error) {
	return i.parse(token, aud)
}

func (i *Issuer) parse(token, aud string) (jwtv5.MapClaims, error) {
	claims := jwtv5.MapClaims{}
	tk, err := jwtv5.ParseWithClaims(token, claims, func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodEd25519); !ok {
			return nil, ErrTokenInvalid
		}
		return i.pub, nil
	}, jwtv5.WithAudience(aud), jwtv5.WithIssuer(i.Iss))
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tk.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
