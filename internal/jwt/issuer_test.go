package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		t.Fatal(err)
	}
	iss, err := NewIssuer("socialid-test", base64.StdEncoding.EncodeToString(seed))
	if err != nil {
		t.Fatalf("NewIssuer err: %v", err)
	}
	return iss
}

func TestNewIssuer_RejectsBadSeeds(t *testing.T) {
	t.Parallel()

	if _, err := NewIssuer("x", "not-base64!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString(make([]byte, 16))
	if _, err := NewIssuer("x", short); err == nil {
		t.Fatalf("expected error for short seed")
	}
}

func TestIssueVerifySession_RoundTrip(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t)

	token, exp, err := iss.IssueSession("user-1", "discord", time.Hour)
	if err != nil {
		t.Fatalf("IssueSession err: %v", err)
	}
	if time.Until(exp) < 55*time.Minute {
		t.Fatalf("exp too soon: %v", exp)
	}

	sc, err := iss.VerifySession(token)
	if err != nil {
		t.Fatalf("VerifySession err: %v", err)
	}
	if sc.UserID != "user-1" || sc.Provider != "discord" {
		t.Fatalf("claims mismatch: %+v", sc)
	}
}

// Sesiones viejas traían el id en "userId" en lugar de "sub".
func TestVerifySession_LegacyUserIDClaim(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t)

	now := time.Now().UTC()
	token, err := iss.SignRaw(jwtv5.MapClaims{
		"iss":    iss.Iss,
		"userId": "legacy-7",
		"aud":    AudSession,
		"iat":    now.Unix(),
		"exp":    now.Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("SignRaw err: %v", err)
	}

	sc, err := iss.VerifySession(token)
	if err != nil {
		t.Fatalf("VerifySession err: %v", err)
	}
	if sc.UserID != "legacy-7" {
		t.Fatalf("UserID = %q, want legacy-7", sc.UserID)
	}
}

func TestVerifySession_RejectsWrongAudience(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t)

	now := time.Now().UTC()
	token, err := iss.SignRaw(jwtv5.MapClaims{
		"iss": iss.Iss,
		"sub": "u1",
		"aud": AudLinkState,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("SignRaw err: %v", err)
	}

	if _, err := iss.VerifySession(token); err == nil {
		t.Fatalf("expected error for link-state token used as session")
	}
}

func TestVerifySession_Expired(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t)

	token, _, err := iss.IssueSession("u1", "twitter", -time.Minute)
	if err != nil {
		t.Fatalf("IssueSession err: %v", err)
	}
	if _, err := iss.VerifySession(token); err != ErrTokenExpired {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestVerifySession_RejectsForeignKey(t *testing.T) {
	t.Parallel()
	a := newTestIssuer(t)
	b := newTestIssuer(t)
	// b comparte issuer name con a para aislar el chequeo de firma
	b.Iss = a.Iss

	token, _, err := a.IssueSession("u1", "wallet", time.Hour)
	if err != nil {
		t.Fatalf("IssueSession err: %v", err)
	}
	if _, err := b.VerifySession(token); err == nil {
		t.Fatalf("expected signature verification failure")
	}
}
