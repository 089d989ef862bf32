package tenantstore

import (
	"errors"
	"fmt"
)

var (
	// Kind sentinels. Match with errors.Is against any error returned by
	// the pool or the provider.
	ErrConnection = errors.New("tenantstore: connection error")
	ErrValidation = errors.New("tenantstore: validation error")
	ErrExecution  = errors.New("tenantstore: execution error")

	// Pool errors. Always wrapped in a ConnectionError.
	ErrPoolExhausted = errors.New("tenantstore: pool acquire wait limit exceeded")
	ErrPoolClosed    = errors.New("tenantstore: pool closed")

	// Configuration errors.
	ErrInvalidConfig = errors.New("tenantstore: invalid config")
)

// Kind classifies an Error.
type Kind uint8

const (
	// KindConnection means the pool could not produce a usable connection.
	KindConnection Kind = iota + 1
	// KindValidation means the caller's input violates an operation contract.
	KindValidation
	// KindExecution means the store rejected or failed a well-formed operation.
	KindExecution
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindValidation:
		return "validation"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindValidation:
		return ErrValidation
	case KindExecution:
		return ErrExecution
	default:
		return nil
	}
}

// Error is the error type surfaced by every operation. Err carries the
// underlying cause verbatim (for execution errors, the driver's error).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tenantstore: %s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("tenantstore: %s: %s error: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// ConnectionError wraps err as a KindConnection error.
func ConnectionError(op string, err error) error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

// ValidationError builds a KindValidation error from a formatted message.
func ValidationError(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// ExecutionError wraps a store error as a KindExecution error.
func ExecutionError(op string, err error) error {
	return &Error{Kind: KindExecution, Op: op, Err: err}
}

// KindOf returns the Kind of err, or zero if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
