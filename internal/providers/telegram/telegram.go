// Package telegram verifica payloads del Telegram Login Widget.
//
// El widget firma los campos con HMAC-SHA256 usando como clave
// SHA256(bot_token). La verificación es local: no hay roundtrip a
// Telegram.
package telegram

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/socialid/internal/providers"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Adapter struct {
	secret     [32]byte // SHA256(bot token)
	maxAuthAge time.Duration
	now        func() time.Time
}

func New(botToken string, maxAuthAge time.Duration) *Adapter {
	return &Adapter{
		secret:     sha256.Sum256([]byte(botToken)),
		maxAuthAge: maxAuthAge,
		now:        time.Now,
	}
}

func (a *Adapter) Name() string { return core.ProviderTelegram }

func (a *Adapter) Verify(ctx context.Context, payload json.RawMessage) (*providers.Identity, error) {
	// El payload llega tal cual lo entrega el widget: campos planos más
	// el hash. Se decodifica a map para armar el data-check-string con
	// exactamente los campos presentes. UseNumber preserva ids por
	// encima de 2^53, que float64 truncaría.
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, providers.ErrBadPayload
	}

	hash, _ := raw["hash"].(string)
	if hash == "" {
		return nil, providers.ErrBadPayload
	}
	delete(raw, "hash")

	if _, ok := numField(raw, "id"); !ok {
		return nil, providers.ErrBadPayload
	}
	authDate, ok := numField(raw, "auth_date")
	if !ok {
		return nil, providers.ErrBadPayload
	}

	// data-check-string: "k=v" ordenado alfabéticamente, unido con \n
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(fieldString(raw[k]))
	}

	mac := hmac.New(sha256.New, a.secret[:])
	mac.Write([]byte(sb.String()))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(hash))) {
		return nil, providers.ErrInvalidCredential
	}

	// auth_date viejo => payload reutilizado
	issued := time.Unix(authDate, 0)
	if a.now().Sub(issued) > a.maxAuthAge {
		return nil, providers.ErrExpiredCredential
	}

	username, _ := raw["username"].(string)
	first, _ := raw["first_name"].(string)
	last, _ := raw["last_name"].(string)
	photo, _ := raw["photo_url"].(string)

	display := strings.TrimSpace(first + " " + last)
	if display == "" {
		display = username
	}

	return &providers.Identity{
		Provider:       core.ProviderTelegram,
		ProviderUserID: fieldString(raw["id"]),
		Handle:         username,
		DisplayName:    display,
		AvatarURL:      photo,
	}, nil
}

// numField lee un campo numérico que puede venir como número JSON o string.
func numField(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// fieldString reproduce el valor como aparece en el data-check-string.
func fieldString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
