package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	// PermissionDenied means the environment refused microphone access.
	PermissionDenied ErrorKind = "permission_denied"
	// DeviceNotFound means no capture device exists.
	DeviceNotFound ErrorKind = "device_not_found"
	// CaptureUnavailable covers any other device acquisition failure.
	CaptureUnavailable ErrorKind = "capture_unavailable"
	// EmptyRecording means the capture produced zero audio data.
	EmptyRecording ErrorKind = "empty_recording"
	// ConversionFailure means the captured audio could not be decoded or
	// re-encoded into the canonical container.
	ConversionFailure ErrorKind = "conversion_failure"
	// NetworkFailure means the upload produced no HTTP response at all.
	NetworkFailure ErrorKind = "network_failure"
	// ServerError means the server responded with a non-2xx status.
	ServerError ErrorKind = "server_error"
	// MalformedResponse means a 2xx response body could not be parsed.
	MalformedResponse ErrorKind = "malformed_response"
	// UnknownError is the fallback for failures no stage could classify.
	UnknownError ErrorKind = "unknown_error"
)

// Error is a classified pipeline failure. Exactly one Error terminates every
// failed session; it is never silently dropped.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int   // HTTP status for ServerError, zero otherwise
	Err     error // underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified pipeline error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError tags an underlying error with a kind, keeping its message.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewServerError creates a ServerError carrying the HTTP status.
func NewServerError(status int, message string) *Error {
	return &Error{Kind: ServerError, Message: message, Status: status}
}

// Classify returns err as a pipeline error, tagging unclassified failures
// as UnknownError so no failure path loses its message.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return &Error{Kind: UnknownError, Message: err.Error(), Err: err}
}

// KindOf reports the kind of err, or UnknownError for untagged errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}
