package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by filterctl for each error class.
const (
	ExitOK          = 0
	ExitInternal    = 1
	ExitValidation  = 2
	ExitNotFound    = 3
	ExitConflict    = 4
	ExitUnavailable = 5
	ExitTimeout     = 6
)

var (
	ErrNotFound         = NewError("NOT_FOUND", "resource not found", ExitNotFound)
	ErrValidation       = NewError("VALIDATION_ERROR", "validation failed", ExitValidation)
	ErrOutOfRange       = NewError("OUT_OF_RANGE", "index out of range", ExitValidation)
	ErrInternal         = NewError("INTERNAL_ERROR", "internal error", ExitInternal)
	ErrConflict         = NewError("CONFLICT", "resource conflict", ExitConflict)
	ErrTimeout          = NewError("TIMEOUT", "operation timed out", ExitTimeout)
	ErrStoreUnavailable = NewError("STORE_UNAVAILABLE", "store unavailable", ExitUnavailable)
)

// Caller mistakes. Repeating the call cannot make them succeed.
var clientCodes = map[string]bool{
	ErrValidation.Code: true,
	ErrNotFound.Code:   true,
	ErrOutOfRange.Code: true,
	ErrConflict.Code:   true,
}

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type retryMode int

const (
	retryByCode retryMode = iota
	retryAlways
	retryNever
)

// Error is a coded error. Copies made by the With* methods keep the code,
// so errors.Is against the package-level values still matches them.
type Error struct {
	Code     string
	Message  string
	ExitCode int
	Details  map[string]interface{}
	Cause    error
	mode     retryMode
}

func NewError(code, message string, exitCode int) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		ExitCode: exitCode,
		Details:  make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// IsRetryable reports whether repeating the call could succeed. An
// explicit AsRetryable/AsFatal wins, then the cause's own opinion, then
// the code.
func (e *Error) IsRetryable() bool {
	switch e.mode {
	case retryAlways:
		return true
	case retryNever:
		return false
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return !clientCodes[e.Code]
}

func (e *Error) IsFatal() bool {
	return !e.IsRetryable()
}

func (e *Error) WithCause(cause error) *Error {
	err := e.clone()
	err.Cause = cause
	return err
}

func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	err := e.clone()
	err.Message = fmt.Sprintf(format, args...)
	return err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := e.clone()
	err.Details[key] = value
	return err
}

func (e *Error) AsRetryable() *Error {
	err := e.clone()
	err.mode = retryAlways
	return err
}

func (e *Error) AsFatal() *Error {
	err := e.clone()
	err.mode = retryNever
	return err
}

// LogFields returns the code, exit code and details as sorted key/value
// pairs for a structured logger.
func (e *Error) LogFields() []interface{} {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]interface{}, 0, 4+2*len(keys))
	fields = append(fields, "code", e.Code, "exit_code", e.ExitCode)
	for _, k := range keys {
		fields = append(fields, k, e.Details[k])
	}
	return fields
}

func (e *Error) clone() *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound.Code
}

func IsValidation(err error) bool {
	code := CodeOf(err)
	return code == ErrValidation.Code || code == ErrOutOfRange.Code
}

func IsConflict(err error) bool {
	return CodeOf(err) == ErrConflict.Code
}

func IsStoreUnavailable(err error) bool {
	return CodeOf(err) == ErrStoreUnavailable.Code
}

// ToExitCode maps err to the process exit status used by the CLI.
func ToExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}
	return ExitInternal
}
