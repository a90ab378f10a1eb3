package engine

import (
	"errors"
	"fmt"
)

// Mutation error codes (E400-E499)
const (
	ErrUnknownEntity   = "E400" // entity or relation is not in the model
	ErrUnknownField    = "E401" // payload key is not a field of the node
	ErrInvalidValue    = "E402" // value shape does not fit the field
	ErrNonScalarID     = "E403" // id given as an object or list where a scalar is required
	ErrUnexpectedID    = "E404" // create payload carries an id
	ErrMissingEndpoint = "E405" // relation row without source or target
	ErrHookFailed      = "E406" // a composite field type hook failed
	ErrQuotaExceeded   = "E407" // one call issued more statements than allowed
	ErrImmutableField  = "E408" // update touches id or a relation endpoint
)

// MutationError is an integrity failure detected while building statements.
// Statements issued before the failure are not undone.
type MutationError struct {
	Code    string
	Entity  string
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Entity)
	if e.Field != "" {
		msg += "." + e.Field
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// IsMutationError returns true if err is or wraps a MutationError.
func IsMutationError(err error) bool {
	var me *MutationError
	return errors.As(err, &me)
}

// IsQuotaError returns true if err reports an exceeded statement quota.
func IsQuotaError(err error) bool {
	var me *MutationError
	if errors.As(err, &me) {
		return me.Code == ErrQuotaExceeded
	}
	return false
}

func invalidValue(entity, field, format string, args ...any) *MutationError {
	return &MutationError{Code: ErrInvalidValue, Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}
