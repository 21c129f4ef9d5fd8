// Package vault implements the SecretVault port with AES-256-GCM.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/hkdf"

	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SecretVault = (*Vault)(nil)

// ErrMissingKey is returned by New when no master secret is configured.
var ErrMissingKey = errors.New("vault: master secret is empty")

// tokenAlphabet is URL-safe so generated ids can appear in paths unescaped.
const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

const (
	keySize = 32
	tagSize = 16

	// hkdfInfo binds derived keys to this use.
	hkdfInfo = "leadinbox credential vault v1"
)

// Vault encrypts secrets with AES-256-GCM. The AEAD is built once and is
// safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault from a master secret. A 64-character hex secret is used
// as the raw 32-byte key; any other value is stretched with HKDF-SHA256.
func New(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, ErrMissingKey
	}

	key, err := deriveKey(masterSecret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

func deriveKey(masterSecret string) ([]byte, error) {
	if len(masterSecret) == hex.EncodedLen(keySize) {
		if key, err := hex.DecodeString(masterSecret); err == nil {
			return key, nil
		}
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns
// hex(nonce):hex(authTag):hex(ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal returns ciphertext || tag.
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens a value produced by Encrypt.
func (v *Vault) Decrypt(secret string) (string, error) {
	parts := strings.Split(secret, ":")
	if len(parts) != 3 {
		return "", &driven.DecryptionError{Reason: fmt.Sprintf("expected 3 segments, got %d", len(parts))}
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", &driven.DecryptionError{Reason: "invalid nonce encoding", Err: err}
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", &driven.DecryptionError{Reason: "invalid auth tag encoding", Err: err}
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", &driven.DecryptionError{Reason: "invalid ciphertext encoding", Err: err}
	}

	if len(nonce) != v.aead.NonceSize() {
		return "", &driven.DecryptionError{Reason: "invalid nonce length"}
	}
	if len(tag) != tagSize {
		return "", &driven.DecryptionError{Reason: "invalid auth tag length"}
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &driven.DecryptionError{Reason: "authentication failed", Err: err}
	}
	return string(plaintext), nil
}

// GenerateWebhookID returns a random URL-safe public routing token.
func (v *Vault) GenerateWebhookID(length int) (string, error) {
	return generateToken(length)
}

// GenerateWebhookSecret returns a random URL-safe validation secret.
func (v *Vault) GenerateWebhookSecret(length int) (string, error) {
	return generateToken(length)
}

func generateToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", length)
	}
	token, err := nanoid.Generate(tokenAlphabet, length)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateWebhookSignature reports whether signature is the hex HMAC-SHA256
// of payload under secret.
func (v *Vault) ValidateWebhookSignature(payload []byte, signature, secret string) bool {
	return ValidSignature(payload, signature, secret)
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares signature against Sign(payload, secret) in constant time.
func ValidSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(strings.ToLower(strings.TrimPrefix(signature, "sha256="))), []byte(expected))
}
