// Package errs defines the typed error taxonomy the commit-log core
// surfaces to its callers. It follows the base-error-plus-fluent-context
// pattern, trimmed to the kinds the storage core actually produces:
// Closed, EmptyPayload, PayloadTooLarge, InvalidTopicName, OutOfOrder,
// Corrupt, IoError and Conflict. NotFound is never one of these - it is
// represented by a nil *record.Record return, not an error.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure so callers can branch on it without parsing
// messages.
type Kind string

const (
	Closed           Kind = "CLOSED"
	EmptyPayload     Kind = "EMPTY_PAYLOAD"
	PayloadTooLarge  Kind = "PAYLOAD_TOO_LARGE"
	InvalidTopicName Kind = "INVALID_TOPIC_NAME"
	OutOfOrder       Kind = "OUT_OF_ORDER"
	Corrupt          Kind = "CORRUPT"
	IoError          Kind = "IO_ERROR"
	Conflict         Kind = "CONFLICT"
)

// Error is the concrete type returned by the core. It carries a Kind plus
// optional offset/path context for diagnosis.
type Error struct {
	kind    Kind
	message string
	cause   error

	offset  uint64
	hasOff  bool
	path    string
	topic   string
}

// New creates an Error of the given kind with the given message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, message: msg}
}

// Wrap creates an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{kind: kind, message: msg, cause: cause}
}

// WithOffset records which offset was involved.
func (e *Error) WithOffset(offset uint64) *Error {
	e.offset = offset
	e.hasOff = true
	return e
}

// WithPath records which file path was involved.
func (e *Error) WithPath(path string) *Error {
	e.path = path
	return e
}

// WithTopic records which topic was involved.
func (e *Error) WithTopic(topic string) *Error {
	e.topic = topic
	return e
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.kind, e.message)
	if e.topic != "" {
		msg += fmt.Sprintf(" (topic=%s)", e.topic)
	}
	if e.hasOff {
		msg += fmt.Sprintf(" (offset=%d)", e.offset)
	}
	if e.path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.path)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

// Offset returns the offset context, if any was recorded.
func (e *Error) Offset() (uint64, bool) { return e.offset, e.hasOff }

// Path returns the path context, if any was recorded.
func (e *Error) Path() string { return e.path }

// Topic returns the topic context, if any was recorded.
func (e *Error) Topic() string { return e.topic }

// Is reports whether err carries the given kind, looking through wrapped
// errors the way errors.Is does.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}
	return false
}

// As extracts an *Error from err's chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
