package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealAndOpenToken(t *testing.T) {
	aead, err := NewAESGCM(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	token := []byte("ya29.access-token")
	stored, err := Encrypt(aead, token)
	require.NoError(t, err)
	assert.NotEqual(t, token, stored)

	got, err := Decrypt(aead, stored)
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestDecryptRejectsTamperedToken(t *testing.T) {
	aead, err := NewAESGCM(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	stored, err := Encrypt(aead, []byte("secret"))
	require.NoError(t, err)
	stored[len(stored)-1] ^= 0x01

	_, err = Decrypt(aead, stored)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDecryptRejectsTruncatedValue(t *testing.T) {
	aead, err := NewAESGCM(bytes.Repeat([]byte("k"), 16))
	require.NoError(t, err)

	_, err = Decrypt(aead, []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewAESGCMRejectsBadKey(t *testing.T) {
	_, err := NewAESGCM([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
