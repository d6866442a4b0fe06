// Package failure defines the error taxonomy of the generation pipeline.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindInsufficientCandidates Kind = "insufficient_candidates"
	KindDeadlineExceeded       Kind = "deadline_exceeded"
	KindProviderError          Kind = "provider_error"
	KindTruncatedOutput        Kind = "truncated_output"
	KindMalformedOutput        Kind = "malformed_output"
	KindValidationError        Kind = "validation_error"
	KindInternal               Kind = "internal"
)

// Error is a classified pipeline failure. Message is safe to show to a polling client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may retry the failed step with a larger budget
func (e *Error) Retryable() bool {
	return e.Kind == KindTruncatedOutput
}

// New creates a classified error
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind with a message
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// InsufficientCandidates reports a pool too small to build a program
func InsufficientCandidates(have, need int) *Error {
	return New(KindInsufficientCandidates,
		"only %d exercises remain after filtering, at least %d are required", have, need)
}

// ProviderError preserves the provider's message verbatim for operators
func ProviderError(err error) *Error {
	return &Error{Kind: KindProviderError, Message: err.Error(), Err: err}
}

// TruncatedOutput reports output cut short by the token limit
func TruncatedOutput(chunk int, err error) *Error {
	return Wrap(KindTruncatedOutput, err, "chunk %d output was cut off at the token limit", chunk)
}

// MalformedOutput reports output that could not be parsed
func MalformedOutput(chunk int, err error) *Error {
	return Wrap(KindMalformedOutput, err, "chunk %d returned output that is not a valid program", chunk)
}

// Validation reports an assembled artifact rejected by validation
func Validation(format string, args ...any) *Error {
	return New(KindValidationError, format, args...)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
// A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message for err
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
