package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	// Unparseable means no amount was recognized and the user must retry.
	Unparseable Kind = "unparseable"
	// AmbiguousCategory means several categories matched equally well.
	AmbiguousCategory Kind = "ambiguous_category"
	// ValidationFailure means the input broke a business rule. Nothing was mutated.
	ValidationFailure Kind = "validation_failure"
	// StorageFailure means a ledger read or write failed.
	StorageFailure Kind = "storage_failure"
	// ExternalServiceUnavailable means the AI backend was unreachable or timed out.
	ExternalServiceUnavailable Kind = "external_service_unavailable"
)

// Error is a classified error. Op names the failing operation.
type Error struct {
	Kind    Kind
	Op      string
	Msg     string
	Choices []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies an underlying error. It returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ambiguous creates an AmbiguousCategory error carrying the tied choices.
func Ambiguous(op string, choices []string) *Error {
	return &Error{
		Kind:    AmbiguousCategory,
		Op:      op,
		Msg:     fmt.Sprintf("%d categories match", len(choices)),
		Choices: choices,
	}
}

// KindOf returns the kind of the first classified error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain holds a classified error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ChoicesOf returns the choices carried by an AmbiguousCategory error.
func ChoicesOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Choices
	}
	return nil
}
