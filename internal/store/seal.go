package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Sealed cookie values are stored as sealedPrefix + base64(salt | nonce |
// ciphertext). The AES-256-GCM key is derived from the passphrase with
// Argon2id and the per-value salt.
const sealedPrefix = "sealed:v1:"

const (
	saltSize  = 32
	nonceSize = 12
)

// ErrSealed is returned when a sealed value is read without a passphrase.
var ErrSealed = errors.New("store: value is sealed, a passphrase is required")

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 3, 64*1024, 4, 32)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("store: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("store: gcm: %w", err)
	}
	return gcm, nil
}

// seal encrypts value with passphrase.
func seal(value, passphrase string) (string, error) {
	buf := make([]byte, saltSize+nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("store: generate salt: %w", err)
	}
	salt, nonce := buf[:saltSize], buf[saltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	out := gcm.Seal(buf, nonce, []byte(value), nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// unseal reverses seal. Values that were never sealed pass through.
func unseal(stored, passphrase string) (string, error) {
	if !isSealed(stored) {
		return stored, nil
	}
	if passphrase == "" {
		return "", ErrSealed
	}

	data, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("store: decode sealed value: %w", err)
	}
	if len(data) < saltSize+nonceSize {
		return "", fmt.Errorf("store: sealed value too short")
	}
	salt, nonce, ciphertext := data[:saltSize], data[saltSize:saltSize+nonceSize], data[saltSize+nonceSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("store: decryption failed (wrong passphrase?): %w", err)
	}
	return string(plaintext), nil
}

func isSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}
