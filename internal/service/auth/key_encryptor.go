package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryptFailed indicates a stored ciphertext could not be opened, either
// because it was tampered with or because the encryption key changed.
var ErrDecryptFailed = errors.New("failed to decrypt stored credential")

// KeyEncryptor seals provider API keys before they are written to storage and
// opens them again when a session needs the plaintext credential.
type KeyEncryptor interface {
	Encrypt(plaintext string) ([]byte, error)
	Decrypt(ciphertext []byte) (string, error)
}

// AEADKeyEncryptor implements KeyEncryptor with XChaCha20-Poly1305. Each
// ciphertext carries its own random nonce, so the same plaintext encrypts to a
// different value every time.
type AEADKeyEncryptor struct {
	aead cipher.AEAD
}

var _ KeyEncryptor = (*AEADKeyEncryptor)(nil)

// NewAEADKeyEncryptor creates an encryptor from a 32-byte secret.
func NewAEADKeyEncryptor(key string) (*AEADKeyEncryptor, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf(
			"encryption key must be exactly %d bytes, got %d",
			chacha20poly1305.KeySize,
			len(key),
		)
	}

	aead, err := chacha20poly1305.NewX([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	return &AEADKeyEncryptor{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce. The nonce is
// prepended to the returned ciphertext.
func (e *AEADKeyEncryptor) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (e *AEADKeyEncryptor) Decrypt(ciphertext []byte) (string, error) {
	nonceSize := e.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext shorter than nonce", ErrDecryptFailed)
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return string(plaintext), nil
}
