package telegram

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/socialid/internal/providers"
)

const testBotToken = "123456:TEST-BOT-TOKEN"

// signPayload firma los campos como lo hace el widget: data-check-string
// ordenado, HMAC-SHA256 con clave SHA256(bot_token).
func signPayload(fields map[string]any) map[string]any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		var v string
		switch t := fields[k].(type) {
		case string:
			v = t
		case int64:
			v = fmt.Sprintf("%d", t)
		case float64:
			v = fmt.Sprintf("%d", int64(t))
		}
		parts = append(parts, k+"="+v)
	}

	secret := sha256.Sum256([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(parts, "\n")))

	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["hash"] = hex.EncodeToString(mac.Sum(nil))
	return out
}

func marshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestVerify_ValidLogin(t *testing.T) {
	t.Parallel()
	a := New(testBotToken, 24*time.Hour)

	payload := signPayload(map[string]any{
		"id":         int64(987654321),
		"username":   "durov",
		"first_name": "Pavel",
		"auth_date":  time.Now().Unix(),
		"photo_url":  "https://t.me/i/userpic/320/durov.jpg",
	})

	id, err := a.Verify(context.Background(), marshal(t, payload))
	if err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if id.ProviderUserID != "987654321" {
		t.Fatalf("ProviderUserID = %q", id.ProviderUserID)
	}
	if id.Handle != "durov" || id.DisplayName != "Pavel" {
		t.Fatalf("identity mismatch: %+v", id)
	}
}

func TestVerify_PreservesLargeID(t *testing.T) {
	t.Parallel()
	a := New(testBotToken, 24*time.Hour)

	// ids por encima de 2^53 pierden precisión si pasan por float64
	payload := signPayload(map[string]any{
		"id":        int64(9007199254740993),
		"username":  "bigid",
		"auth_date": time.Now().Unix(),
	})

	id, err := a.Verify(context.Background(), marshal(t, payload))
	if err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if id.ProviderUserID != "9007199254740993" {
		t.Fatalf("ProviderUserID = %q, want 9007199254740993", id.ProviderUserID)
	}
}

func TestVerify_TamperedHash(t *testing.T) {
	t.Parallel()
	a := New(testBotToken, 24*time.Hour)

	payload := signPayload(map[string]any{
		"id":        int64(1),
		"username":  "alice",
		"auth_date": time.Now().Unix(),
	})
	// cambiar un campo después de firmar invalida el hash
	payload["username"] = "mallory"

	if _, err := a.Verify(context.Background(), marshal(t, payload)); !errors.Is(err, providers.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestVerify_WrongBotToken(t *testing.T) {
	t.Parallel()
	a := New("999:OTHER-TOKEN", 24*time.Hour)

	payload := signPayload(map[string]any{
		"id":        int64(1),
		"auth_date": time.Now().Unix(),
	})
	if _, err := a.Verify(context.Background(), marshal(t, payload)); !errors.Is(err, providers.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestVerify_StaleAuthDate(t *testing.T) {
	t.Parallel()
	a := New(testBotToken, time.Hour)

	payload := signPayload(map[string]any{
		"id":        int64(1),
		"auth_date": time.Now().Add(-2 * time.Hour).Unix(),
	})
	if _, err := a.Verify(context.Background(), marshal(t, payload)); !errors.Is(err, providers.ErrExpiredCredential) {
		t.Fatalf("err = %v, want ErrExpiredCredential", err)
	}
}

func TestVerify_BadPayloads(t *testing.T) {
	t.Parallel()
	a := New(testBotToken, 24*time.Hour)
	ctx := context.Background()

	cases := map[string]json.RawMessage{
		"not json":     json.RawMessage(`{{`),
		"missing hash": marshal(t, map[string]any{"id": 1, "auth_date": time.Now().Unix()}),
		"missing id": marshal(t, signPayload(map[string]any{
			"auth_date": time.Now().Unix(),
		})),
		"missing auth_date": marshal(t, signPayload(map[string]any{
			"id": int64(1),
		})),
	}
	for name, payload := range cases {
		if _, err := a.Verify(ctx, payload); !errors.Is(err, providers.ErrBadPayload) {
			t.Fatalf("%s: err = %v, want ErrBadPayload", name, err)
		}
	}
}
