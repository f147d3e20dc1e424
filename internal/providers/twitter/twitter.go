// Package twitter implementa el flujo OAuth 1.0a de tres patas.
//
// Start pide un request token y devuelve la URL de autorización; el
// token secret se guarda en cache hasta que vuelve el callback. Verify
// canjea (oauth_token, oauth_verifier) por un access token y normaliza
// la identidad con user_id y screen_name de la respuesta.
package twitter

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/socialid/internal/cache"
	"github.com/dropDatabas3/socialid/internal/providers"
	tokens "github.com/dropDatabas3/socialid/internal/security/token"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

const (
	requestTokenURL = "https://api.twitter.com/oauth/request_token"
	authorizeURL    = "https://api.twitter.com/oauth/authenticate"
	accessTokenURL  = "https://api.twitter.com/oauth/access_token"
)

type Adapter struct {
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string

	Cache    cache.Client
	TokenTTL time.Duration

	http *http.Client
}

func New(consumerKey, consumerSecret, callbackURL string, c cache.Client, tokenTTL time.Duration) *Adapter {
	return &Adapter{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		CallbackURL:    callbackURL,
		Cache:          c,
		TokenTTL:       tokenTTL,
		http:           &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *Adapter) Name() string { return core.ProviderTwitter }

// Start obtiene un request token y retorna la URL de autorización.
// El token secret queda en cache, keyed por el token, hasta el callback.
func (a *Adapter) Start(ctx context.Context) (string, error) {
	body, err := a.signedPost(ctx, requestTokenURL, map[string]string{
		"oauth_callback": a.CallbackURL,
	}, "", "")
	if err != nil {
		return "", err
	}

	vals, err := url.ParseQuery(body)
	if err != nil {
		return "", providers.ErrUnavailable
	}
	token := vals.Get("oauth_token")
	secret := vals.Get("oauth_token_secret")
	if token == "" || secret == "" || vals.Get("oauth_callback_confirmed") != "true" {
		return "", providers.ErrUnavailable
	}

	if err := a.Cache.Set(ctx, "twitter:reqtok:"+token, secret, a.TokenTTL); err != nil {
		return "", err
	}

	return authorizeURL + "?oauth_token=" + url.QueryEscape(token), nil
}

type verifyPayload struct {
	OAuthToken    string `json:"oauth_token"`
	OAuthVerifier string `json:"oauth_verifier"`
}

func (a *Adapter) Verify(ctx context.Context, payload json.RawMessage) (*providers.Identity, error) {
	var p verifyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, providers.ErrBadPayload
	}
	if p.OAuthToken == "" || p.OAuthVerifier == "" {
		return nil, providers.ErrBadPayload
	}

	// Consume: el request token es de un solo uso. Si expiró o ya se
	// canjeó, el flujo debe reiniciarse.
	secret, err := a.Cache.Consume(ctx, "twitter:reqtok:"+p.OAuthToken)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, providers.ErrExpiredCredential
		}
		return nil, err
	}

	body, err := a.signedPost(ctx, accessTokenURL, map[string]string{
		"oauth_verifier": p.OAuthVerifier,
	}, p.OAuthToken, secret)
	if err != nil {
		return nil, err
	}

	vals, err := url.ParseQuery(body)
	if err != nil {
		return nil, providers.ErrInvalidCredential
	}
	userID := vals.Get("user_id")
	screenName := vals.Get("screen_name")
	accessToken := vals.Get("oauth_token")
	if userID == "" {
		return nil, providers.ErrInvalidCredential
	}

	return &providers.Identity{
		Provider:       core.ProviderTwitter,
		ProviderUserID: userID,
		Handle:         screenName,
		DisplayName:    screenName,
		AccessToken:    accessToken,
	}, nil
}

// signedPost hace un POST firmado OAuth1 (HMAC-SHA1) y retorna el body.
func (a *Adapter) signedPost(ctx context.Context, endpoint string, extra map[string]string, token, tokenSecret string) (string, error) {
	nonce, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return "", err
	}

	oauth := map[string]string{
		"oauth_consumer_key":     a.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if token != "" {
		oauth["oauth_token"] = token
	}
	for k, v := range extra {
		oauth[k] = v
	}
	oauth["oauth_signature"] = a.sign("POST", endpoint, oauth, tokenSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", authorizationHeader(oauth))

	resp, err := a.http.Do(req)
	if err != nil {
		return "", providers.ErrUnavailable
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode == http.StatusUnauthorized {
		return "", providers.ErrInvalidCredential
	}
	if resp.StatusCode/100 != 2 {
		return "", providers.ErrUnavailable
	}
	return string(b), nil
}

// sign construye la firma OAuth1: base string con params percent-encoded
// y ordenados, HMAC-SHA1 con key consumerSecret&tokenSecret.
func (a *Adapter) sign(method, endpoint string, params map[string]string, tokenSecret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(percentEncode(k))
		sb.WriteByte('=')
		sb.WriteString(percentEncode(params[k]))
	}

	base := method + "&" + percentEncode(endpoint) + "&" + percentEncode(sb.String())
	key := percentEncode(a.ConsumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func authorizationHeader(oauth map[string]string) string {
	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("OAuth ")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, `%s="%s"`, percentEncode(k), percentEncode(oauth[k]))
	}
	return sb.String()
}

// percentEncode según RFC 3986 (OAuth1 es más estricto que url.QueryEscape).
func percentEncode(s string) string {
	var sb strings.Builder
	for _, b := range []byte(s) {
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') ||
			b == '-' || b == '.' || b == '_' || b == '~' {
			sb.WriteByte(b)
		} else {
			fmt.Fprintf(&sb, "%%%02X", b)
		}
	}
	return sb.String()
}
