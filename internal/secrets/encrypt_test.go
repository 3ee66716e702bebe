package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 32)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(buf)
}

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := New(randomKey(t))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("my-telegram-bot-token")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(ciphertext))

	plaintext := enc.Decrypt(ciphertext)
	assert.Equal(t, "my-telegram-bot-token", plaintext)
}

func TestEncryptor_WrongKey_ReturnsEmptyNoError(t *testing.T) {
	enc1, err := New(randomKey(t))
	require.NoError(t, err)
	enc2, err := New(randomKey(t))
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt("secret")
	require.NoError(t, err)

	plaintext := enc2.Decrypt(ciphertext)
	assert.Equal(t, "", plaintext)
}

func TestEncryptor_MalformedInput_ReturnsEmpty(t *testing.T) {
	enc, err := New(randomKey(t))
	require.NoError(t, err)
	assert.Equal(t, "", enc.Decrypt("not-encrypted-at-all"))
	assert.Equal(t, "", enc.Decrypt("$sentinel_enc$v1$not-base64!!"))
}

func TestNew_RejectsBadKeyLength(t *testing.T) {
	_, err := New(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
}
