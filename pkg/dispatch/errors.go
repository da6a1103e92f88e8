package dispatch

import (
	"context"
	"errors"
	"net/http"
)

// ErrorKind classifies every failure a dispatch can end with.
type ErrorKind string

const (
	InvalidAddress       ErrorKind = "InvalidAddress"
	MissingContent       ErrorKind = "MissingContent"
	UnsupportedMediaType ErrorKind = "UnsupportedMediaType"
	SessionNotReady      ErrorKind = "SessionNotReady"
	RecipientNotFound    ErrorKind = "RecipientNotFound"
	DeliveryFailed       ErrorKind = "DeliveryFailed"
	Timeout              ErrorKind = "Timeout"
	Internal             ErrorKind = "Internal"
)

// HTTPStatus maps the kind to the request-failure class used at the HTTP boundary.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case InvalidAddress, MissingContent, UnsupportedMediaType:
		return http.StatusBadRequest
	case RecipientNotFound:
		return http.StatusNotFound
	case SessionNotReady:
		return http.StatusServiceUnavailable
	case DeliveryFailed:
		return http.StatusBadGateway
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is the only error type returned by the core operations.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind carried by err. Context deadline and cancellation
// errors are reported as Timeout, anything unknown as Internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if isContextError(err) {
		return Timeout
	}
	return Internal
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// classifyGatewayError wraps a gateway failure, promoting context errors to
// Timeout. Recovered gateway panics keep their Internal kind.
func classifyGatewayError(ctx context.Context, kind ErrorKind, message string, err error) *Error {
	var de *Error
	if errors.As(err, &de) && de.Kind == Internal {
		return de
	}
	if isContextError(err) || ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		}
		return newError(Timeout, message, err)
	}
	return newError(kind, message, err)
}
