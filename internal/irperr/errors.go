// Package irperr defines the failure kinds shared by every IRP integration
// component. Use errors.Is with the Err* sentinels to classify an error.
package irperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAPI
	KindWorkflowTimeout
	KindJobTimeout
	KindFile
	KindReferenceData
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAPI:
		return "api"
	case KindWorkflowTimeout:
		return "workflow timeout"
	case KindJobTimeout:
		return "job timeout"
	case KindFile:
		return "file"
	case KindReferenceData:
		return "reference data"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrAPI             = &Error{Kind: KindAPI}
	ErrWorkflowTimeout = &Error{Kind: KindWorkflowTimeout}
	ErrJobTimeout      = &Error{Kind: KindJobTimeout}
	ErrFile            = &Error{Kind: KindFile}
	ErrReferenceData   = &Error{Kind: KindReferenceData}
)

// Error is a classified failure with a human readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels compare by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind with context. If err already carries the
// same kind it is still wrapped so the context is not lost.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports bad caller input.
func Validation(format string, args ...any) error {
	return New(KindValidation, format, args...)
}

// API reports a transport, HTTP or malformed-response failure.
func API(format string, args ...any) error {
	return New(KindAPI, format, args...)
}

// File reports a local file problem or an upload failure.
func File(format string, args ...any) error {
	return New(KindFile, format, args...)
}

// ReferenceData reports a named lookup with zero or ambiguous matches.
func ReferenceData(format string, args ...any) error {
	return New(KindReferenceData, format, args...)
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or 0 if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// EnsureKind returns err unchanged when it is already classified, otherwise
// wraps it as kind with context.
func EnsureKind(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != 0 {
		return err
	}
	return Wrap(kind, err, format, args...)
}
