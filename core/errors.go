package core

import "github.com/pkg/errors"

// ErrorKind classifies an application error into one of the stable
// categories the UI layer branches on.
type ErrorKind string

const (
	KindAuth             ErrorKind = "auth"
	KindProfile          ErrorKind = "profile"
	KindNotAuthenticated ErrorKind = "not_authenticated"
	KindTransport        ErrorKind = "transport"
)

// Error codes produced by backend adapters. Adapters translate whatever
// the upstream service returns (HTTP statuses, free-text messages) into
// one of these at the boundary; upstream wording never leaks past it.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailExists        = "email_exists"
	CodeWeakPassword       = "weak_password"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeProfileNotFound    = "profile_not_found"
	CodeUnknown            = "unknown"
)

type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func NewAuthError(code, msg string, cause ...error) *Error {
	return newError(KindAuth, code, msg, cause...)
}

func NewProfileError(code, msg string, cause ...error) *Error {
	return newError(KindProfile, code, msg, cause...)
}

func NewTransportError(msg string, cause ...error) *Error {
	return newError(KindTransport, CodeUnknown, msg, cause...)
}

func NewNotAuthenticatedError() *Error {
	return newError(KindNotAuthenticated, CodeUnknown, "not authenticated")
}

func newError(kind ErrorKind, code, msg string, cause ...error) *Error {
	err := &Error{Kind: kind, Code: code, Message: msg}
	if len(cause) > 0 {
		err.Err = cause[0]
	}
	return err
}

// IsKind reports whether err (or anything it wraps) is an *Error of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// ErrorCode extracts the adapter error code from err, or CodeUnknown.
func ErrorCode(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}
