// Package signererror defines the error taxonomy shared by every component
// of the remote signer: key management, commitment decoding, policy
// validation, and persistence all report failures through a single *Error
// type tagged with a Kind, so that callers (and the RPC layer that sits in
// front of this module) can decide whether to retry, surface the failure to
// an operator, or restart the process.
package signererror

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies why an operation failed.
type Kind uint8

const (
	// InvalidArgument means the caller passed malformed input: a
	// derivation path of the wrong length, an address for the wrong
	// network, an unparseable script. Retrying with the same arguments
	// will never succeed.
	InvalidArgument Kind = iota

	// TransactionFormat means the submitted transaction does not meet
	// the structural requirements the decoder or validator expects:
	// wrong version, an output that matches no known template, the
	// wrong number of outputs.
	TransactionFormat

	// PolicyFailure means the input was well-formed but violates a
	// safety rule enforced by the policy validator: a fee outside the
	// configured window, a contest delay outside bounds, an attempt to
	// re-sign a revoked commitment.
	PolicyFailure

	// Internal means persistence failed, an amount computation
	// overflowed, or some other condition was reached that should be
	// impossible given correct callers. The process should restart and
	// the operator should check storage.
	Internal
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case TransactionFormat:
		return "transaction_format"
	case PolicyFailure:
		return "policy_failure"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every exported operation in
// this module. It always carries a Kind so callers can branch on it with
// KindOf, and an optional wrapped cause for Internal errors where a stack
// trace helps post-mortem debugging.
type Error struct {
	Kind Kind
	Msg  string

	// cause is populated for Internal errors wrapping a lower-level
	// failure (persistence I/O, cryptographic library panic recovery).
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Invalid is a convenience constructor for InvalidArgument errors.
func Invalid(format string, args ...interface{}) *Error {
	return New(InvalidArgument, format, args...)
}

// BadFormat is a convenience constructor for TransactionFormat errors.
func BadFormat(format string, args ...interface{}) *Error {
	return New(TransactionFormat, format, args...)
}

// Policy is a convenience constructor for PolicyFailure errors. Every
// PolicyFailure is expected to name the field, the observed value, and the
// permitted bound in its message.
func Policy(format string, args ...interface{}) *Error {
	return New(PolicyFailure, format, args...)
}

// Wrap captures cause with a stack trace (via go-errors/errors, so a crash
// dump retains the call site that first observed the failure) and returns
// it as an Internal error. The validator and key manager never surface a
// cryptographic library's raw error to a caller; they route it through
// Wrap instead.
func Wrap(cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:  Internal,
		Msg:   fmt.Sprintf(format, args...),
		cause: goerrors.Wrap(cause, 1),
	}
}

// KindOf extracts the Kind from err, defaulting to Internal for errors that
// did not originate in this module (an invariant violation, not an expected
// code path).
func KindOf(err error) Kind {
	var se *Error
	if As(err, &se) {
		return se.Kind
	}
	return Internal
}

// As is a tiny local wrapper so this package doesn't need to import the
// standard errors package twice in every call site that needs KindOf.
func As(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
