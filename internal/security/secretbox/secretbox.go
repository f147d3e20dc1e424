// Package secretbox cifra secretos en reposo con AES-256-GCM.
//
// Se usa para guardar tokens de acceso de providers (OAuth1/OAuth2) en
// la base sin exponerlos en texto plano. Formato de salida:
// base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSizeGCM      = 12  // AES-GCM nonce recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

// Box encapsula la clave maestra. Se construye una vez en el arranque
// y se comparte entre los componentes que persisten secretos.
type Box struct {
	key []byte
}

// New crea un Box desde una clave en base64 (std o raw).
// La clave debe decodificar a 32 bytes exactos.
func New(keyB64 string) (*Box, error) {
	keyB64 = strings.TrimSpace(keyB64)
	if keyB64 == "" {
		return nil, errors.New("secretbox: clave vacía; genere una con: openssl rand -base64 32")
	}

	k, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		k, err = base64.RawStdEncoding.DecodeString(keyB64)
		if err != nil {
			return nil, fmt.Errorf("secretbox: decode clave: %w", err)
		}
	}
	if len(k) != requiredKeyLength {
		return nil, fmt.Errorf("secretbox: la clave debe decodificar a %d bytes, obtuvo %d", requiredKeyLength, len(k))
	}

	key := make([]byte, len(k))
	copy(key, k)
	return &Box{key: key}, nil
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func (b *Box) Encrypt(plainText string) (string, error) {
	aesgcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}

	ct := aesgcm.Seal(nil, nonce, []byte(plainText), nil)

	nonceB64 := base64.StdEncoding.EncodeToString(nonce)
	ctB64 := base64.StdEncoding.EncodeToString(ct)
	return nonceB64 + sep + ctB64, nil
}

// Decrypt recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
func (b *Box) Decrypt(cipherText string) (string, error) {
	parts := strings.Split(cipherText, sep)
	if len(parts) != 2 {
		return "", errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}

	aesgcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

func (b *Box) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	return cipher.NewGCM(block)
}
