package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a command error with a stable code.
//
// Code identifies the error kind and drives errors.Is comparisons. Prefix
// is the leading word of the protocol error text ("ERR", "WRONGTYPE",
// "EXECABORT"), and Message the rest of it.
type DomainError struct {
	Code    string // Error code (e.g., "KV-TYPE-4001")
	Prefix  string // Protocol error prefix
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Reply returns the error as protocol text, e.g. "ERR syntax error".
func (e *DomainError) Reply() string {
	prefix := e.Prefix
	if prefix == "" {
		prefix = "ERR"
	}
	return prefix + " " + e.Message
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the "ERR" prefix.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Prefix:  "ERR",
		Message: message,
	}
}

func newPrefixedError(code, prefix, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Prefix:  prefix,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithMessage returns a copy of the error with a different message but the
// same code, so errors.Is still matches the original sentinel.
func (e *DomainError) WithMessage(format string, args ...any) *DomainError {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Value errors (TYPE, RANGE, NUM, KEY)
// ============================================================================

var (
	// ErrWrongType indicates an operation against a key holding another type.
	ErrWrongType = newPrefixedError("KV-TYPE-4001", "WRONGTYPE", "Operation against a key holding the wrong kind of value")

	// ErrOutOfRange indicates an invalid list index or range.
	ErrOutOfRange = NewDomainError("KV-RANGE-4001", "index out of range")

	// ErrNotNumeric indicates arithmetic on a value that is not an integer.
	ErrNotNumeric = NewDomainError("KV-NUM-4001", "value is not an integer or out of range")

	// ErrNotFloat is the float flavour of ErrNotNumeric (same code).
	ErrNotFloat = ErrNotNumeric.WithMessage("value is not a valid float")

	// ErrHashNotInteger is the hash-field flavour of ErrNotNumeric.
	ErrHashNotInteger = ErrNotNumeric.WithMessage("hash value is not an integer")

	// ErrHashNotFloat is the hash-field float flavour of ErrNotNumeric.
	ErrHashNotFloat = ErrNotNumeric.WithMessage("hash value is not a float")

	// ErrOverflow indicates integer arithmetic would overflow int64.
	ErrOverflow = NewDomainError("KV-NUM-4002", "increment or decrement would overflow")

	// ErrNaN indicates float arithmetic would produce NaN or Infinity.
	ErrNaN = NewDomainError("KV-NUM-4003", "increment would produce NaN or Infinity")

	// ErrKeyAbsent indicates an operation that requires an existing key.
	ErrKeyAbsent = NewDomainError("KV-KEY-4040", "no such key")
)

// ============================================================================
// Transaction errors (TX)
// ============================================================================

var (
	// ErrPreconditionFailed indicates a watch condition did not hold at commit.
	ErrPreconditionFailed = NewDomainError("KV-TX-4091", "transaction precondition failed")

	// ErrExecAbort indicates a transaction poisoned by a queue-time error.
	ErrExecAbort = newPrefixedError("KV-TX-4092", "EXECABORT", "Transaction discarded because of previous errors.")

	// ErrTxNotStarted indicates commit or discard outside of a transaction.
	ErrTxNotStarted = NewDomainError("KV-TX-4001", "EXEC without MULTI")

	// ErrTxNested indicates MULTI inside MULTI.
	ErrTxNested = NewDomainError("KV-TX-4002", "MULTI calls can not be nested")

	// ErrWatchInsideTx indicates WATCH issued while queuing.
	ErrWatchInsideTx = NewDomainError("KV-TX-4003", "WATCH inside MULTI is not allowed")
)

// ============================================================================
// Argument errors (ARG)
// ============================================================================

var (
	// ErrSyntax indicates malformed command options.
	ErrSyntax = NewDomainError("KV-ARG-4001", "syntax error")

	// ErrWrongArity indicates a wrong number of arguments.
	ErrWrongArity = NewDomainError("KV-ARG-4002", "wrong number of arguments")

	// ErrUnknownCommand indicates a command name with no handler.
	ErrUnknownCommand = NewDomainError("KV-ARG-4003", "unknown command")

	// ErrInvalidArgument indicates an argument with an invalid value.
	ErrInvalidArgument = NewDomainError("KV-ARG-4004", "invalid argument")

	// ErrInvalidExpire indicates a non-positive or overflowing TTL.
	ErrInvalidExpire = NewDomainError("KV-ARG-4005", "invalid expire time")

	// ErrNotAllowed indicates a command not permitted in the connection state.
	ErrNotAllowed = NewDomainError("KV-ARG-4006", "command not allowed in this context")
)

// ============================================================================
// System errors (SYS)
// ============================================================================

var (
	// ErrInternal indicates an unexpected server-side failure.
	ErrInternal = NewDomainError("KV-SYS-5000", "internal server error")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("KV-SYS-4290", "rate limit exceeded")
)

// WrongArity returns ErrWrongArity phrased for the named command.
func WrongArity(command string) *DomainError {
	return ErrWrongArity.WithMessage("wrong number of arguments for '%s' command", command)
}

// UnknownCommand returns ErrUnknownCommand phrased for the named command.
func UnknownCommand(command string) *DomainError {
	return ErrUnknownCommand.WithMessage("unknown command '%s'", command)
}
