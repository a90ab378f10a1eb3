package querysql

import (
	"errors"
	"fmt"
)

// Query compilation error codes (E300-E399)
const (
	ErrUnknownEntity     = "E300" // query root is not in the model
	ErrUnknownField      = "E301" // attribute or match path does not resolve
	ErrCompositeValue    = "E302" // composite matched with a non-object value
	ErrUnresolvableAlias = "E303" // path cannot be addressed from this position
	ErrInvalidOperand    = "E304" // operand does not fit the operator or column
	ErrPrepareFailed     = "E305" // a field type's prepare hook failed
)

// CompileError is a per-call query compilation failure. No SQL is run when
// one is returned.
type CompileError struct {
	Code    string
	Entity  string
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Entity)
	if e.Path != "" {
		msg += "." + e.Path
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsQueryError returns true if err is or wraps a CompileError.
func IsQueryError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// IsUnknownField returns true if err reports an unresolvable path.
func IsUnknownField(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ErrUnknownField
	}
	return false
}
