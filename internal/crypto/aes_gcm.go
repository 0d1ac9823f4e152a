// Package crypto seals linked-account tokens before they reach the
// user_tokens table. Tokens are encrypted with AES-GCM under a single
// server key; the random nonce is stored as a prefix of the ciphertext.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidKeySize       = errors.New("invalid AES key size (must be 16, 24, or 32 bytes)")
	ErrInvalidCiphertext    = errors.New("ciphertext too short to contain nonce")
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")
)

// NewAESGCM builds the AEAD used for token storage from the server key.
func NewAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aead, nil
}

// Encrypt seals a token for storage. The returned bytes are
// nonce || ciphertext || tag, ready to write to user_tokens as-is.
func Encrypt(aead cipher.AEAD, token []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return append(nonce, aead.Seal(nil, nonce, token, nil)...), nil
}

// Decrypt opens a stored token. The nonce is read from the ciphertext
// prefix; tampered or truncated values fail authentication.
func Decrypt(aead cipher.AEAD, stored []byte) ([]byte, error) {
	nonceSize := aead.NonceSize()
	if len(stored) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	token, err := aead.Open(nil, stored[:nonceSize], stored[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	return token, nil
}
