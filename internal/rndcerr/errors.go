// Package rndcerr defines the tagged-variant error kinds shared by the
// codec, authenticator and session layers of the RNDC client.
//
// Each layer classifies its own failures at the point they occur rather
// than letting the session layer re-derive a kind from an opaque error;
// the session's retry engine only inspects the Kind to decide whether to
// retry (Retryable) or fail fast (Fatal).
package rndcerr

import "fmt"

// Kind identifies the category of an RNDC client failure.
type Kind int

const (
	// Configuration indicates invalid construction parameters (port,
	// timeout, algorithm, secret). Never retried.
	Configuration Kind = iota

	// Connection indicates a TCP-level failure (refused, reset, timeout,
	// unexpected EOF, partial frame read). Retryable.
	Connection

	// Protocol indicates a malformed frame, unknown type byte, duplicate
	// map key, missing nonce, or wrong frame version. Fatal.
	Protocol

	// Authentication indicates HMAC verification failure or a wrong
	// algorithm code in an hsha auth entry. Fatal.
	Authentication

	// Server indicates the server returned a non-empty _data.err. Fatal.
	// A non-zero _data.result is not an error here; it is returned in
	// the session's Result like any other field.
	Server
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case Configuration:
		return "ConfigurationError"
	case Connection:
		return "ConnectionError"
	case Protocol:
		return "ProtocolError"
	case Authentication:
		return "AuthenticationError"
	case Server:
		return "ServerError"
	default:
		return "UnknownError"
	}
}

// Error is a tagged-variant error: a Kind plus the operation that failed
// and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}

	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a tagged error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configurationf builds a Configuration-kind error.
func Configurationf(op string, err error) *Error {
	return New(Configuration, op, err)
}

// Connectionf builds a Connection-kind error.
func Connectionf(op string, err error) *Error {
	return New(Connection, op, err)
}

// Protocolf builds a Protocol-kind error.
func Protocolf(op string, err error) *Error {
	return New(Protocol, op, err)
}

// Authenticationf builds an Authentication-kind error.
func Authenticationf(op string, err error) *Error {
	return New(Authentication, op, err)
}

// Serverf builds a Server-kind error.
func Serverf(op string, err error) *Error {
	return New(Server, op, err)
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and
// reports whether a Kind was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}

	return 0, false
}

// Retryable reports whether err is classified as retryable, i.e. its
// Kind is Connection. Unrecognized errors are treated as non-retryable.
func Retryable(err error) bool {
	kind, ok := KindOf(err)

	return ok && kind == Connection
}

// asError walks err's chain through single-error Unwrap methods and
// stores the first *Error it finds in target. It does not use errors.As
// and does not descend into multi-error (Unwrap() []error) values.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok { //nolint:errorlint // intentional single-level match before Unwrap walk
			*target = e

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
