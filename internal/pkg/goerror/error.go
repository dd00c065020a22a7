// Package goerror carries the error classification shared by usecases and
// the HTTP layer. Usecases return *Error values; the router maps them onto
// status codes and the JSON error envelope.
package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned by stores on a uniqueness or compare-and-swap failure.
	ErrConflict = errors.New("resource conflict")
)

// Type is the broad origin of an error.
type Type int

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

var typeNames = map[Type]string{
	TypeServer:     "ERROR_TYPE_SERVER",
	TypeBusiness:   "ERROR_TYPE_BUSINESS",
	TypeValidation: "ERROR_TYPE_VALIDATION",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "ERROR_TYPE_UNKNOWN"
}

// Code is the stable identifier that decides the HTTP status.
type Code int

const (
	CodeInternal Code = iota
	// CodeInvalidFormat means the request could not be parsed at all.
	CodeInvalidFormat
	// CodeInvalidInput means the request parsed but a value is out of range.
	CodeInvalidInput
	CodeNotFound
	CodeConflict
	// CodeUnavailable means a backing service is down and the call may be retried.
	CodeUnavailable
)

var codes = map[Code]struct {
	name   string
	status int
}{
	CodeInternal:      {"ERROR_CODE_INTERNAL", http.StatusInternalServerError},
	CodeInvalidFormat: {"ERROR_CODE_INVALID_FORMAT", http.StatusBadRequest},
	CodeInvalidInput:  {"ERROR_CODE_INVALID_INPUT", http.StatusUnprocessableEntity},
	CodeNotFound:      {"ERROR_CODE_NOT_FOUND", http.StatusNotFound},
	CodeConflict:      {"ERROR_CODE_CONFLICT", http.StatusConflict},
	CodeUnavailable:   {"ERROR_CODE_UNAVAILABLE", http.StatusServiceUnavailable},
}

func (c Code) String() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return codes[CodeInternal].name
}

// Error pairs an optional cause with the message shown to API callers.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

// Error prefers the cause so logs keep the technical detail; callers use Msg
// for the public text.
func (e *Error) Error() string {
	switch {
	case e.err != nil:
		return e.err.Error()
	case e.msg != "":
		return e.msg
	default:
		return e.errType.String()
	}
}

// String is the verbose form used in test failures and debug logs.
func (e *Error) String() string {
	return fmt.Sprintf("%s/%s: %q (cause: %v)", e.errType, e.code, e.msg, e.err)
}

func (e *Error) Msg() string { return e.msg }
func (e *Error) Type() Type { return e.errType }
func (e *Error) Code() Code { return e.code }
func (e *Error) Fields() map[string]string { return e.fields }
func (e *Error) Unwrap() error { return e.err }

// StatusCode is the HTTP status for the error code.
func (e *Error) StatusCode() int {
	if info, ok := codes[e.code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// NewServer hides err behind a generic message. The cause stays reachable
// for logging and errors.Is.
func NewServer(err error) error {
	return &Error{err: err, msg: "Internal server error", errType: TypeServer, code: CodeInternal}
}

// NewUnavailable reports a dependency outage the caller may retry.
func NewUnavailable(cause error, msg string) error {
	return &Error{err: cause, msg: msg, errType: TypeServer, code: CodeUnavailable}
}

func NewBusiness(msg string, code Code) error {
	return &Error{msg: msg, errType: TypeBusiness, code: code}
}

// NewBusinessCause is NewBusiness with cause kept reachable through errors.Is.
func NewBusinessCause(cause error, msg string, code Code) error {
	return &Error{err: cause, msg: msg, errType: TypeBusiness, code: code}
}

// NewInvalidInput wraps a validator error, or builds field messages from
// key/value pairs when err is nil. An odd number of pairs is a programming
// error and degrades to an invalid format error.
func NewInvalidInput(err error, kv ...string) error {
	const msg = "Validation error"

	if err != nil {
		return &Error{err: err, msg: msg, errType: TypeValidation, code: CodeInvalidInput}
	}
	if len(kv)%2 != 0 {
		return NewInvalidFormat()
	}

	fields := make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return &Error{msg: msg, errType: TypeValidation, code: CodeInvalidInput, fields: fields}
}

// NewInvalidFormat rejects a request that could not be decoded. The first
// message, if any, replaces the default text.
func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return &Error{msg: msg, errType: TypeValidation, code: CodeInvalidFormat}
}

// NewInvalidFormatCause is NewInvalidFormat with cause kept reachable.
func NewInvalidFormatCause(cause error, msg string) error {
	return &Error{err: cause, msg: msg, errType: TypeValidation, code: CodeInvalidFormat}
}
