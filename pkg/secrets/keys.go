package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the master key length (AES-256).
	KeySize = 32

	hkdfInfo = "notifykit-channel-credentials-v1"
)

// ParseKey decodes a master key given as 64 hex characters or standard base64.
func ParseKey(s string) ([]byte, error) {
	if b, err := hex.DecodeString(s); err == nil && len(b) == KeySize {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == KeySize {
		return b, nil
	}
	return nil, ErrInvalidKey
}

// GenerateKey creates a new random master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// deriveKey binds the master key to a scope, so ciphertext sealed for one
// channel cannot be opened as another. Callers must clear the result.
func deriveKey(master []byte, scope string) ([]byte, error) {
	r := hkdf.New(sha256.New, master, []byte(scope), []byte(hkdfInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return key, nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
