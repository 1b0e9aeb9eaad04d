// Package errs defines the coded errors returned across the SDK's public
// boundary. Every failure surfaces as an *Error with a stable Code so hosts
// can branch on the failure kind; payment failures additionally carry the
// best-known PaymentIntent snapshot (which may be absent when the true
// outcome is unknown). The SDK never masks an unknown outcome as either
// success or failure.
package errs

import (
	"errors"
	"fmt"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// Code classifies a terminal SDK failure.
type Code string

const (
	// ProviderError: the host's connection token provider failed. Not retried.
	ProviderError Code = "provider_error"
	// DiscoveryFailed: the reader scan failed unrecoverably.
	DiscoveryFailed Code = "discovery_failed"
	// DiscoveryTimeout: the discovery timeout elapsed with no connection.
	DiscoveryTimeout Code = "discovery_timeout"
	// AlreadyConnected: connect was called while a reader is connected.
	AlreadyConnected Code = "already_connected"
	// AlreadyConnecting: connect was called while a connect is in flight.
	AlreadyConnecting Code = "already_connecting"
	// InvalidToken: the reader rejected the connection token. The cached
	// token is cleared so the next connect fetches a fresh one.
	InvalidToken Code = "invalid_token"
	// SessionFailed: establishing or using the reader session failed.
	SessionFailed Code = "session_failed"
	// NotConnected: the operation requires a connected reader.
	NotConnected Code = "not_connected"
	// AlreadyBusy: another reader operation is already in flight.
	AlreadyBusy Code = "already_busy"
	// IntentInvalidState: the payment intent's status does not permit the
	// requested transition.
	IntentInvalidState Code = "intent_invalid_state"
	// CardDeclined: the card was declined; collect another payment method.
	CardDeclined Code = "card_declined"
	// NetworkTimeout: a backend request timed out; the intent's true status
	// is unknown and the carried snapshot is absent.
	NetworkTimeout Code = "network_timeout"
	// Canceled: the operation stopped at a safe checkpoint before completion.
	Canceled Code = "canceled"
	// NoAvailableUpdate: no reader software update is available.
	NoAvailableUpdate Code = "no_available_update"
	// InvalidArgument: the call was malformed and nothing was started.
	InvalidArgument Code = "invalid_argument"
	// Internal: an unclassified failure.
	Internal Code = "internal"
)

// Error is a coded SDK error. Intent, when non-nil, is the best-known
// snapshot of the payment intent the failed operation was driving; hosts
// should inspect its status to decide whether to retry, substitute, or
// abandon.
type Error struct {
	Code    Code
	Message string
	Intent  *model.PaymentIntent
	cause   error
}

// New returns a coded error with the given message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf returns a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a coded error wrapping cause. If cause is already an *Error
// with the same code it is returned unchanged.
func Wrap(code Code, message string, cause error) *Error {
	var e *Error
	if errors.As(cause, &e) && e.Code == code {
		return e
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// WithIntent attaches the best-known intent snapshot and returns the error.
func (e *Error) WithIntent(intent *model.PaymentIntent) *Error {
	e.Intent = intent
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the code carried by err, or Internal when err is not a
// coded error. A nil err returns the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IntentOf returns the intent snapshot carried by err, or nil.
func IntentOf(err error) *model.PaymentIntent {
	var e *Error
	if errors.As(err, &e) {
		return e.Intent
	}
	return nil
}
