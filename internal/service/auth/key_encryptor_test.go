package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

func TestNewAEADKeyEncryptor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "32 byte key", key: testEncryptionKey, wantErr: false},
		{name: "short key", key: "too-short", wantErr: true},
		{name: "long key", key: strings.Repeat("x", 33), wantErr: true},
		{name: "empty key", key: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			enc, err := NewAEADKeyEncryptor(tc.key)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "exactly 32 bytes")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, enc)
		})
	}
}

func TestAEADKeyEncryptorRoundTrip(t *testing.T) {
	t.Parallel()

	enc, err := NewAEADKeyEncryptor(testEncryptionKey)
	require.NoError(t, err)

	plaintext := "sk-live-abcdef123456"

	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), plaintext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAEADKeyEncryptorNonceUniqueness(t *testing.T) {
	t.Parallel()

	enc, err := NewAEADKeyEncryptor(testEncryptionKey)
	require.NoError(t, err)

	first, err := enc.Encrypt("same-plaintext")
	require.NoError(t, err)
	second, err := enc.Encrypt("same-plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestAEADKeyEncryptorDecryptFailures(t *testing.T) {
	t.Parallel()

	enc, err := NewAEADKeyEncryptor(testEncryptionKey)
	require.NoError(t, err)

	t.Run("tampered ciphertext", func(t *testing.T) {
		t.Parallel()
		ciphertext, err := enc.Encrypt("secret-value")
		require.NoError(t, err)

		ciphertext[len(ciphertext)-1] ^= 0xff
		_, err = enc.Decrypt(ciphertext)
		require.ErrorIs(t, err, ErrDecryptFailed)
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		t.Parallel()
		_, err := enc.Decrypt([]byte("short"))
		require.ErrorIs(t, err, ErrDecryptFailed)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()
		ciphertext, err := enc.Encrypt("secret-value")
		require.NoError(t, err)

		other, err := NewAEADKeyEncryptor("fedcba9876543210fedcba9876543210")
		require.NoError(t, err)

		_, err = other.Decrypt(ciphertext)
		require.ErrorIs(t, err, ErrDecryptFailed)
	})
}

func TestBcryptVerifier(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	require.NoError(t, err)

	verifier := NewBcryptVerifier()

	t.Run("matching password", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, verifier.Compare(string(hash), "correct horse battery"))
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, verifier.Compare(string(hash), "wrong password"))
	})
}
