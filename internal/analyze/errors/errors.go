// Package errors defines codescope's error taxonomy: every failure a
// session, transport or cache operation can produce collapses into one
// of a fixed set of kinds, so callers can branch on errors.Is instead of
// string matching.
package errors

import (
	"errors"
	"fmt"
)

// Kind is one of the eight failure categories the engine distinguishes.
type Kind int

const (
	SpawnFailed Kind = iota
	ChannelClosed
	MalformedFrame
	ProtocolViolation
	LspError
	TimedOut
	InvalidPath
	CacheCorrupt
)

func (k Kind) String() string {
	switch k {
	case SpawnFailed:
		return "SpawnFailed"
	case ChannelClosed:
		return "ChannelClosed"
	case MalformedFrame:
		return "MalformedFrame"
	case ProtocolViolation:
		return "ProtocolViolation"
	case LspError:
		return "LspError"
	case TimedOut:
		return "TimedOut"
	case InvalidPath:
		return "InvalidPath"
	case CacheCorrupt:
		return "CacheCorrupt"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type every package in internal/analyze
// returns for engine-level failures. LspError carries the server's own
// code/message; the rest carry only a human-readable message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Code    int64 // populated only for LspError
	Cause   error
}

func (e *Error) Error() string {
	if e.Kind == LspError {
		return fmt.Sprintf("%s: %s (code %d)", e.Kind, e.Message, e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind, so any
// *Error of that kind (for example &Error{Kind: SpawnFailed}, or a value
// from the Kind-specific constructors below) serves as an errors.Is
// target; use errors.As for the full struct.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Spawn(cause error, format string, args ...any) *Error {
	return newf(SpawnFailed, cause, format, args...)
}

func Closed(format string, args ...any) *Error {
	return newf(ChannelClosed, nil, format, args...)
}

func Malformed(cause error, format string, args ...any) *Error {
	return newf(MalformedFrame, cause, format, args...)
}

func Protocol(format string, args ...any) *Error {
	return newf(ProtocolViolation, nil, format, args...)
}

// Lsp wraps a JSON-RPC error response from the server.
func Lsp(code int64, message string) *Error {
	return &Error{Kind: LspError, Message: message, Code: code}
}

func Timeout(format string, args ...any) *Error {
	return newf(TimedOut, nil, format, args...)
}

func Path(cause error, format string, args ...any) *Error {
	return newf(InvalidPath, cause, format, args...)
}

func Corrupt(cause error, format string, args ...any) *Error {
	return newf(CacheCorrupt, cause, format, args...)
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
