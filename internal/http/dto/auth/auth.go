// Package auth contiene los DTOs de autenticación y perfil.
package auth

import (
	"encoding/json"
	"time"
)

// VerifyRequest envuelve el payload crudo del provider. LinkToken sólo
// viene en el flujo de vinculación; ReferralCode sólo cuenta en el alta.
type VerifyRequest struct {
	Payload      json.RawMessage `json:"payload"`
	LinkToken    string          `json:"link_token,omitempty"`
	ReferralCode string          `json:"referral_code,omitempty"`
}

// UserView es la proyección pública de un usuario.
type UserView struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	DisplayName       string `json:"display_name,omitempty"`
	Email             string `json:"email,omitempty"`
	AvatarURL         string `json:"avatar_url,omitempty"`
	WalletAddress     string `json:"wallet_address,omitempty"`
	Verified          bool   `json:"verified"`
	VerificationLevel string `json:"verification_level,omitempty"`
	ReferralCode      string `json:"referral_code,omitempty"`
	TokenBalance      int64  `json:"token_balance"`
	LoginStreak       int    `json:"login_streak"`
	MaxStreak         int    `json:"max_streak"`
}

// LinkView es la proyección de una cuenta vinculada. Nunca expone tokens.
type LinkView struct {
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	Handle         string    `json:"handle,omitempty"`
	DisplayName    string    `json:"display_name,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	LinkedAt       time.Time `json:"linked_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// VerifyResponse es la respuesta de /auth/{provider}/verify.
type VerifyResponse struct {
	Outcome   string    `json:"outcome"` // login | link
	NewUser   bool      `json:"new_user,omitempty"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Streak    int       `json:"streak,omitempty"`
	User      UserView  `json:"user"`
}

// StartResponse entrega la URL de autorización de un flujo OAuth.
type StartResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

// NonceResponse entrega el nonce para el flujo SIWE.
type NonceResponse struct {
	Nonce     string `json:"nonce"`
	ExpiresIn int    `json:"expires_in"` // segundos
}

// LinkStartResponse entrega el state firmado del flujo de vinculación.
type LinkStartResponse struct {
	LinkToken string `json:"link_token"`
	ExpiresIn int    `json:"expires_in"` // segundos
}

// MeResponse es la respuesta de /v1/me.
type MeResponse struct {
	User  UserView   `json:"user"`
	Links []LinkView `json:"links"`
}

// UpdateProfileRequest permite editar el perfil propio.
type UpdateProfileRequest struct {
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// ProvidersResponse lista los providers habilitados.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}
