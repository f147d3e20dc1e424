package secretbox

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T, fill byte) string {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = fill + byte(i)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	box, err := New(testKey(t, 1))
	if err != nil {
		t.Fatalf("New err: %v", err)
	}

	msg := "hola mundo ✓ — secreto"
	ct, err := box.Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	pt, err := box.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt err: %v", err)
	}
	if pt != msg {
		t.Fatalf("plaintext mismatch: got %q want %q", pt, msg)
	}
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	t.Parallel()

	box, err := New(testKey(t, 100))
	if err != nil {
		t.Fatalf("New err: %v", err)
	}

	ct, err := box.Encrypt("top secret")
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	parts := strings.Split(ct, "|")
	if len(parts) != 2 {
		t.Fatalf("unexpected ct format")
	}
	// corromper un byte del ciphertext (base64 -> bytes -> flip -> base64)
	bs, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatal(err)
	}
	bs[0] ^= 0x01
	corrupted := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)

	if _, err := box.Decrypt(corrupted); err == nil {
		t.Fatalf("expected auth error, got nil")
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	t.Parallel()

	a, _ := New(testKey(t, 1))
	b, _ := New(testKey(t, 2))

	ct, err := a.Encrypt("x")
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	if _, err := b.Decrypt(ct); err == nil {
		t.Fatalf("expected error decrypting with wrong key")
	}
}

func TestNew_RejectsBadKeys(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := New("no-es-base64!!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString(make([]byte, 16))
	if _, err := New(short); err == nil {
		t.Fatalf("expected error for short key")
	}
}
