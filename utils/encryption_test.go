package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certimail/config"
)

func withEncryptionKey(t *testing.T) {
	t.Helper()

	previous := config.AppConfig.EncryptionKey
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"
	t.Cleanup(func() { config.AppConfig.EncryptionKey = previous })
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	withEncryptionKey(t)

	ciphertext, err := Encrypt("smtp-app-password")
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)
	assert.NotEqual(t, "smtp-app-password", ciphertext)

	plaintext, err := Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "smtp-app-password", plaintext)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	withEncryptionKey(t)

	a, err := Encrypt("same input")
	require.NoError(t, err)
	b, err := Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEncryptEmptyStaysEmpty(t *testing.T) {
	withEncryptionKey(t)

	ciphertext, err := Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, ciphertext)

	plaintext, err := Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	withEncryptionKey(t)

	ciphertext, err := Encrypt("secret")
	require.NoError(t, err)

	_, err = Decrypt(ciphertext[:len(ciphertext)-4] + "AAAA")
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	withEncryptionKey(t)

	_, err := Decrypt("not base64 at all!!")
	assert.Error(t, err)

	_, err = Decrypt("YWJj") // valid base64, too short for a nonce
	assert.Error(t, err)
}
