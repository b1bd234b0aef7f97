// Package apperr defines the error taxonomy shared by the service and HTTP layers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuth
	KindConflict
	KindGateway
	KindTamper
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	case KindGateway:
		return "gateway"
	case KindTamper:
		return "tamper"
	default:
		return "internal"
	}
}

// Error carries a Kind, a client-safe message and an optional machine code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: fmt.Sprintf(format, args...)}
}

func Auth(message string) error {
	return &Error{Kind: KindAuth, Code: "UNAUTHORIZED", Message: message}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Code: "CONFLICT", Message: fmt.Sprintf(format, args...)}
}

// Gateway wraps a transport or protocol failure talking to the bank.
func Gateway(code, message string, err error) error {
	if code == "" {
		code = "GATEWAY_ERROR"
	}
	return &Error{Kind: KindGateway, Code: code, Message: message, Err: err}
}

// Tamper marks a callback whose token or amount does not match. Details stay server-side.
func Tamper(message string) error {
	return &Error{Kind: KindTamper, Code: "TAMPER_DETECTED", Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
