// Package application contains use-case orchestration services.
package application

import (
	"errors"
	"fmt"
)

// Access errors returned by the guards.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// ValidationError rejects malformed input before any persistence happens.
// Field names the offending input field using the client's spelling.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
