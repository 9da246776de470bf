// Package crypto seals database passwords so they can be kept in config files.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// sealedPrefix versions the sealed format.
const sealedPrefix = "v1:"

var (
	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid credentials key: must not be empty")
	// ErrOpenFailed is returned for malformed values, a wrong key, or a value
	// sealed for a different database.
	ErrOpenFailed = errors.New("failed to open sealed secret")
)

// SecretBox seals secrets with AES-256-GCM. Each secret is bound to a
// database id through the GCM additional data, so a sealed password copied
// to another database entry does not open.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox creates a box from a key. A base64 value that decodes to
// 32 bytes is used as the AES key directly (openssl rand -base64 32);
// anything else is treated as a passphrase and hashed with SHA-256.
func NewSecretBox(key string) (*SecretBox, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != 32 {
		sum := sha256.Sum256([]byte(key))
		raw = sum[:]
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &SecretBox{aead: aead}, nil
}

// Seal encrypts secret for databaseID and returns "v1:" + base64(nonce || ciphertext).
func (b *SecretBox) Seal(databaseID, secret string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(secret), []byte(databaseID))
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal for the same databaseID.
func (b *SecretBox) Open(databaseID, sealed string) (string, error) {
	encoded, ok := strings.CutPrefix(strings.TrimSpace(sealed), sealedPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing %q prefix", ErrOpenFailed, sealedPrefix)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64", ErrOpenFailed)
	}

	nonceSize := b.aead.NonceSize()
	if len(data) < nonceSize+b.aead.Overhead() {
		return "", fmt.Errorf("%w: value too short", ErrOpenFailed)
	}
	plaintext, err := b.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(databaseID))
	if err != nil {
		return "", fmt.Errorf("%w: wrong key or database", ErrOpenFailed)
	}
	return string(plaintext), nil
}
