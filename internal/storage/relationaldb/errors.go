package relationaldb

import (
	"errors"
	"fmt"
)

var (
	ErrDatabaseClosed      = errors.New("database is closed")
	ErrLedgerNotFound      = errors.New("ledger not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Error wraps a database failure with operation context.
type Error struct {
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("relationaldb %s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("relationaldb %s: %s", e.Operation, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a wrapped database error.
func NewError(operation, message string, cause error) *Error {
	return &Error{Operation: operation, Message: message, Cause: cause}
}
