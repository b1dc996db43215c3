// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error kinds and structured error type shared by the codec,
// the connection state machine and the server.

package api

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by a connection wraps exactly one of these,
// so callers decide between "continue" and "close" with errors.Is.
var (
	ErrDecode     = errors.New("frame decode failed")
	ErrHandshake  = errors.New("handshake failed")
	ErrValidation = errors.New("payload rejected")
	ErrStorage    = errors.New("record storage failed")
	ErrTransport  = errors.New("transport failure")
)

// Common errors used across the library.
var (
	ErrTransportClosed   = fmt.Errorf("transport is closed")
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrResourceExhausted = fmt.Errorf("resource exhausted")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeDecode
	ErrCodeHandshake
	ErrCodeValidation
	ErrCodeStorage
	ErrCodeTransport
	ErrCodeInternal
)

var codeKinds = map[ErrorCode]error{
	ErrCodeDecode:     ErrDecode,
	ErrCodeHandshake:  ErrHandshake,
	ErrCodeValidation: ErrValidation,
	ErrCodeStorage:    ErrStorage,
	ErrCodeTransport:  ErrTransport,
}

// String returns the lower-case name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeDecode:
		return "decode"
	case ErrCodeHandshake:
		return "handshake"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeStorage:
		return "storage"
	case ErrCodeTransport:
		return "transport"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports the error kind matching e.Code, so errors.Is(err, ErrStorage)
// holds for any *Error created with ErrCodeStorage.
func (e *Error) Is(target error) bool {
	kind, ok := codeKinds[e.Code]
	return ok && kind == target
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error of the given code around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode carried by err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for code, kind := range codeKinds {
		if errors.Is(err, kind) {
			return code
		}
	}
	return ErrCodeInternal
}
