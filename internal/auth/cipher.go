package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/palompy/gatekeeper/internal/models"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// SecretCipher encrypts short secrets at rest with AES-256-GCM.
// The key is SHA-256 of the configured passphrase.
// Blob layout: base64(nonce[12] || tag[16] || ciphertext).
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher derives the AES key from passphrase
func NewSecretCipher(passphrase string) (*SecretCipher, error) {
	key := sha256.Sum256([]byte(passphrase))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &SecretCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal returns ciphertext || tag
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ctLen := len(sealed) - gcmTagSize

	blob := make([]byte, 0, gcmNonceSize+len(sealed))
	blob = append(blob, nonce...)
	blob = append(blob, sealed[ctLen:]...)
	blob = append(blob, sealed[:ctLen]...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. Any malformed blob or authentication failure
// returns models.ErrDecryptionFailed.
func (c *SecretCipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", models.ErrDecryptionFailed)
	}
	if len(raw) < gcmNonceSize+gcmTagSize {
		return "", fmt.Errorf("%w: blob too short", models.ErrDecryptionFailed)
	}

	nonce := raw[:gcmNonceSize]
	tag := raw[gcmNonceSize : gcmNonceSize+gcmTagSize]
	ct := raw[gcmNonceSize+gcmTagSize:]

	sealed := make([]byte, 0, len(ct)+gcmTagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", models.ErrDecryptionFailed
	}
	return string(plaintext), nil
}
