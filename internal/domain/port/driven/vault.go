package driven

// SecretVault encrypts third-party secrets at rest and issues webhook tokens.
type SecretVault interface {
	// Encrypt returns an opaque "nonce:authTag:ciphertext" string. Two calls
	// with the same plaintext never return the same value.
	Encrypt(plaintext string) (string, error)

	// Decrypt reverses Encrypt. Returns a *DecryptionError when the secret is
	// malformed, tampered with, or was produced under another key.
	Decrypt(secret string) (string, error)

	GenerateWebhookID(length int) (string, error)
	GenerateWebhookSecret(length int) (string, error)

	// ValidateWebhookSignature checks a hex HMAC-SHA256 of payload under
	// secret in constant time.
	ValidateWebhookSignature(payload []byte, signature, secret string) bool
}
