package plan

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes query failures. Every code aborts the whole query;
// there is no partial result and no retry.
type ErrorCode string

const (
	// ErrCodeUnsupportedConstruct: the plan uses an operator the target
	// backend cannot run. Raised before any statement text exists.
	ErrCodeUnsupportedConstruct ErrorCode = "UNSUPPORTED_CONSTRUCT"

	// ErrCodeUnsupportedFunction: a function call has no canonical mapping
	// for the target dialect. Raised during emission.
	ErrCodeUnsupportedFunction ErrorCode = "UNSUPPORTED_FUNCTION"

	// ErrCodeBackendExecution: the backend rejected a statement that passed
	// every static check. Carries the statement and arguments.
	ErrCodeBackendExecution ErrorCode = "BACKEND_EXECUTION"

	// ErrCodeTranslation: the expression itself is malformed (unknown
	// entity, member or variable, incompatible set operands).
	ErrCodeTranslation ErrorCode = "TRANSLATION"
)

// Error is the typed failure of translation, emission and execution.
type Error struct {
	Code ErrorCode

	// Construct names the operator or function involved ("Intersect",
	// "Atc"), when there is one.
	Construct string

	Message string

	// Statement and Args are set for backend failures.
	Statement string
	Args      []any

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code) + ": "
	if e.Construct != "" {
		msg += e.Construct + ": "
	}
	msg += e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the backend error, if any.
func (e *Error) Unwrap() error { return e.Err }

// UnsupportedConstruct creates an ErrCodeUnsupportedConstruct error.
func UnsupportedConstruct(construct, format string, args ...any) *Error {
	return &Error{
		Code:      ErrCodeUnsupportedConstruct,
		Construct: construct,
		Message:   fmt.Sprintf(format, args...),
	}
}

// UnsupportedFunction creates an ErrCodeUnsupportedFunction error.
func UnsupportedFunction(name, dialect string) *Error {
	return &Error{
		Code:      ErrCodeUnsupportedFunction,
		Construct: name,
		Message:   fmt.Sprintf("no canonical mapping for dialect %s", dialect),
	}
}

// BackendExecution wraps err with the statement that caused it.
func BackendExecution(statement string, args []any, err error) *Error {
	return &Error{
		Code:      ErrCodeBackendExecution,
		Message:   "backend rejected statement",
		Statement: statement,
		Args:      args,
		Err:       err,
	}
}

// Translation creates an ErrCodeTranslation error.
func Translation(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeTranslation,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsUnsupportedConstruct reports whether err is an unsupported construct
// failure. Uses errors.As to handle wrapped errors.
func IsUnsupportedConstruct(err error) bool {
	return CodeOf(err) == ErrCodeUnsupportedConstruct
}

// IsUnsupportedFunction reports whether err is an unsupported function
// failure.
func IsUnsupportedFunction(err error) bool {
	return CodeOf(err) == ErrCodeUnsupportedFunction
}

// IsBackendExecution reports whether err came from the backend.
func IsBackendExecution(err error) bool {
	return CodeOf(err) == ErrCodeBackendExecution
}

// IsTranslation reports whether err is a malformed query failure.
func IsTranslation(err error) bool {
	return CodeOf(err) == ErrCodeTranslation
}
