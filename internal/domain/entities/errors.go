package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured signals that no remote store is set up. It routes callers
	// to local-only paths and is never shown to the user as an error.
	ErrNotConfigured = errors.New("remote store not configured")

	// ErrStoreFailure wraps failures of the local store adapter.
	ErrStoreFailure = errors.New("local store failure")

	// ErrRemoteFailure wraps failures of the remote store client.
	ErrRemoteFailure = errors.New("remote store failure")
)

// ValidationError describes a malformed payload, such as an import file that
// is not a JSON object.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return "invalid payload: " + e.Message
}

// StoreFailure wraps err so that errors.Is(err, ErrStoreFailure) holds.
func StoreFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

// RemoteFailure wraps err so that errors.Is(err, ErrRemoteFailure) holds.
func RemoteFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemoteFailure, op, err)
}
