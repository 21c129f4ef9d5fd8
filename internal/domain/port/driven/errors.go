// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound indicates the entity does not exist or is not owned by the
	// requesting company. Callers cannot tell the two apart.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint rejected the write.
	ErrAlreadyExists = errors.New("already exists")
)

// ErrDecryption is matched by every DecryptionError via errors.Is.
var ErrDecryption = errors.New("decryption failed")

// DecryptionError is returned by SecretVault.Decrypt when a secret is
// malformed or fails authentication.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt secret: %s: %v", e.Reason, e.Err)
	}
	return "decrypt secret: " + e.Reason
}

// Unwrap exposes both the ErrDecryption sentinel and the underlying cause.
func (e *DecryptionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecryption, e.Err}
	}
	return []error{ErrDecryption}
}

// GatewayError is returned by MessagingGateway calls that receive a non-success
// status from the upstream API. Body is kept for server-side diagnostics.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: upstream status %d", e.Op, e.StatusCode)
}
