// Package security holds credential custody for the registry: AES-GCM
// encryption of graph-database secrets stored on DomainGraph rows.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// nonceSize is the AES-GCM nonce length in bytes (96 bits).
const nonceSize = 12

// ErrInvalidKeyLength is returned by NewVault for keys that are not
// 16, 24, or 32 bytes.
var ErrInvalidKeyLength = errors.New("security: key must be 16, 24, or 32 bytes")

// ErrDecrypt is returned by Decrypt on tampering, truncation, or a wrong
// key. No partial plaintext is ever returned alongside it.
var ErrDecrypt = errors.New("security: decrypt failed")

// Vault encrypts and decrypts short secret strings with a process-wide
// symmetric key loaded once at startup. It performs no I/O.
type Vault struct {
	aead cipher.AEAD
}

// KeyFromConfig decodes the configured registry encryption key. The value
// is base64, with an optional "base64:" prefix.
func KeyFromConfig(value string) ([]byte, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(value), "base64:")
	if raw == "" {
		return nil, errors.New("security: REGISTRY_ENC_KEY is not set")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("security: REGISTRY_ENC_KEY is not valid base64: %w", err)
	}
	return key, nil
}

// NewVault returns a Vault for the given AES key. Key length is validated
// here so a misconfigured deployment fails at startup, not on first use.
func NewVault(key []byte) (*Vault, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random 96-bit nonce and returns
// base64(nonce || ciphertext || tag). Two calls on the same plaintext
// yield different blobs.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Returns ErrDecrypt for any
// malformed, truncated, or tampered input.
func (v *Vault) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < nonceSize+v.aead.Overhead() {
		return "", ErrDecrypt
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
