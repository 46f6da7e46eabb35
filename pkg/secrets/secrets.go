package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// Box seals channel credentials at rest with AES-256-GCM under a key derived
// per scope from a single master key.
type Box struct {
	master []byte
}

// NewBox copies master, which must be KeySize bytes.
func NewBox(master []byte) (*Box, error) {
	if len(master) != KeySize {
		return nil, ErrInvalidKey
	}
	return &Box{master: append([]byte(nil), master...)}, nil
}

// Seal encrypts plaintext for scope and returns base64(nonce|ciphertext|tag).
func (b *Box) Seal(scope string, plaintext []byte) (string, error) {
	aead, err := b.aead(scope)
	if err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, []byte(scope))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Both the scope and the master key must match.
func (b *Box) Open(scope, ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, errors.Join(ErrInvalidCiphertext, err)
	}

	aead, err := b.aead(scope)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}

	n := aead.NonceSize()
	if len(raw) < n+aead.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	plaintext, err := aead.Open(nil, raw[:n], raw[n:], []byte(scope))
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func (b *Box) aead(scope string) (cipher.AEAD, error) {
	if scope == "" {
		return nil, ErrEmptyScope
	}
	key, err := deriveKey(b.master, scope)
	if err != nil {
		return nil, err
	}
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
