// Package discord implementa OAuth2 authorization code contra Discord.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/socialid/internal/providers"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

const (
	authorizeURL = "https://discord.com/oauth2/authorize"
	tokenURL     = "https://discord.com/api/oauth2/token"
	userMeURL    = "https://discord.com/api/users/@me"
)

type Adapter struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	http *http.Client
}

func New(clientID, clientSecret, redirectURL string, scopes []string) *Adapter {
	return &Adapter{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *Adapter) Name() string { return core.ProviderDiscord }

// AuthorizeURL arma la URL de autorización con el state dado.
func (a *Adapter) AuthorizeURL(state string) string {
	q := url.Values{
		"client_id":     {a.ClientID},
		"redirect_uri":  {a.RedirectURL},
		"response_type": {"code"},
		"scope":         {strings.Join(a.Scopes, " ")},
	}
	if state != "" {
		q.Set("state", state)
	}
	return authorizeURL + "?" + q.Encode()
}

type verifyPayload struct {
	Code string `json:"code"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
	Email      string `json:"email"` // presente sólo con scope email
}

func (a *Adapter) Verify(ctx context.Context, payload json.RawMessage) (*providers.Identity, error) {
	var p verifyPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Code == "" {
		return nil, providers.ErrBadPayload
	}

	tok, err := a.exchange(ctx, p.Code)
	if err != nil {
		return nil, err
	}

	u, err := a.fetchUser(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	display := u.GlobalName
	if display == "" {
		display = u.Username
	}
	var avatar string
	if u.Avatar != "" {
		avatar = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", u.ID, u.Avatar)
	}

	return &providers.Identity{
		Provider:       core.ProviderDiscord,
		ProviderUserID: u.ID,
		Handle:         u.Username,
		DisplayName:    display,
		Email:          u.Email,
		AvatarURL:      avatar,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
	}, nil
}

func (a *Adapter) exchange(ctx context.Context, code string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {a.RedirectURL},
		"client_id":     {a.ClientID},
		"client_secret": {a.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, providers.ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		// code inválido, usado o expirado
		return nil, providers.ErrInvalidCredential
	}
	if resp.StatusCode/100 != 2 {
		return nil, providers.ErrUnavailable
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return nil, providers.ErrUnavailable
	}
	return &tok, nil
}

func (a *Adapter) fetchUser(ctx context.Context, accessToken string) (*discordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userMeURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, providers.ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, providers.ErrInvalidCredential
	}
	if resp.StatusCode/100 != 2 {
		return nil, providers.ErrUnavailable
	}

	var u discordUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil || u.ID == "" {
		return nil, providers.ErrUnavailable
	}
	return &u, nil
}
