package nodestore

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("node not found")
	ErrDataCorrupt        = errors.New("data corruption detected")
	ErrBackendClosed      = errors.New("backend is closed")
	ErrInvalidNode        = errors.New("invalid node")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrUnsupportedBackend = errors.New("unsupported backend")
)

// StoreError wraps a backend failure with operation context.
type StoreError struct {
	Operation string
	Backend   string
	Hash      Hash256
	Cause     error
}

func (e *StoreError) Error() string {
	if e.Hash.IsZero() {
		return fmt.Sprintf("nodestore %s on %s: %v", e.Operation, e.Backend, e.Cause)
	}
	return fmt.Sprintf("nodestore %s on %s for %s: %v", e.Operation, e.Backend, e.Hash, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

func wrapStatus(operation, backend string, hash Hash256, status Status) error {
	var cause error
	switch status {
	case OK:
		return nil
	case NotFound:
		cause = ErrNotFound
	case DataCorrupt:
		cause = ErrDataCorrupt
	default:
		cause = ErrBackendClosed
	}
	return &StoreError{Operation: operation, Backend: backend, Hash: hash, Cause: cause}
}
