package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the classified gateway failure modes. Every
// transport failure path produces exactly one kind; raw network errors never
// cross the transport boundary.
type ErrorKind int

const (
	// ErrorGeneric covers unexpected failures that fit no other kind.
	ErrorGeneric ErrorKind = iota
	// ErrorConnectionTimeout is a read or connect timeout.
	ErrorConnectionTimeout
	// ErrorConnection is any other transport-level failure (DNS, reset, TLS).
	ErrorConnection
	// ErrorUpstream is a completed HTTP exchange with a non-200 status.
	ErrorUpstream
	// ErrorMalformedResponse is a 200 response whose body could not be parsed.
	ErrorMalformedResponse
	// ErrorUnsupportedOperation is an operation the gateway cannot perform.
	ErrorUnsupportedOperation
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorConnectionTimeout:
		return "connection_timeout"
	case ErrorConnection:
		return "connection_error"
	case ErrorUpstream:
		return "upstream_error"
	case ErrorMalformedResponse:
		return "malformed_response"
	case ErrorUnsupportedOperation:
		return "unsupported_operation"
	default:
		return "generic"
	}
}

// Error is the classified failure returned by the transport and provider
// adapters. It carries enough detail to log and to make a retry decision.
type Error struct {
	Kind         ErrorKind
	Message      string
	HTTPStatus   int    // 0 when no HTTP status is derivable
	StatusFamily int    // first digit of HTTPStatus, 0 when unknown
	Body         string // raw upstream body, only set for upstream errors
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether a caller may usefully retry the operation.
// Timeouts, transport failures and 5xx upstream responses are retryable;
// 4xx responses indicate a request the gateway will never accept as-is.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrorConnectionTimeout, ErrorConnection:
		return true
	case ErrorUpstream:
		return e.StatusFamily == 5
	default:
		return false
	}
}

func NewGenericError(msg string) *Error {
	return &Error{Kind: ErrorGeneric, Message: msg}
}

func NewTimeoutError(msg string) *Error {
	return &Error{Kind: ErrorConnectionTimeout, Message: msg}
}

func NewConnectionError(msg string, httpStatus int) *Error {
	return &Error{Kind: ErrorConnection, Message: msg, HTTPStatus: httpStatus, StatusFamily: httpStatus / 100}
}

func NewUpstreamError(msg string, httpStatus int, body string) *Error {
	return &Error{Kind: ErrorUpstream, Message: msg, HTTPStatus: httpStatus, StatusFamily: httpStatus / 100, Body: body}
}

func NewMalformedResponseError(msg string) *Error {
	return &Error{Kind: ErrorMalformedResponse, Message: msg}
}

func NewUnsupportedOperationError(gatewayName string, op Operation) *Error {
	return &Error{Kind: ErrorUnsupportedOperation, Message: fmt.Sprintf("%s does not support %s", gatewayName, op)}
}

// AsError extracts a classified *Error from an error chain, wrapping foreign
// errors as generic so callers always see the taxonomy.
func AsError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return NewGenericError(err.Error())
}
