// Package apperr defines the request-facing error vocabulary shared by the
// services, the repositories and the HTTP layer.
//
// Services return *Error values for every failure a client can act on.
// Anything else is treated as an internal error by Normalize.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidID
	KindDuplicate
	KindValidation
	KindConflict
	KindUnauthenticated
	KindInvalidCredential
	KindExpired
	KindForbidden
	KindNotFound
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindInternal:          "internal",
	KindInvalidID:         "invalid_id",
	KindDuplicate:         "duplicate",
	KindValidation:        "validation",
	KindConflict:          "conflict",
	KindUnauthenticated:   "unauthenticated",
	KindInvalidCredential: "invalid_credential",
	KindExpired:           "expired",
	KindForbidden:         "forbidden",
	KindNotFound:          "not_found",
	KindRateLimited:       "rate_limited",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindInvalidID, KindDuplicate, KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindUnauthenticated, KindInvalidCredential, KindExpired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an application error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending input for InvalidID and Duplicate errors.
	Field string
	Err   error

	stack []uintptr
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stack renders the call stack captured when the error was built.
func (e *Error) Stack() string {
	if len(e.stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(kind Kind, message string, err error) *Error {
	pcs := make([]uintptr, 32)
	// skip runtime.Callers, newError and the exported constructor
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Message: message, Err: err, stack: pcs[:n]}
}

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return newError(kind, message, nil)
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return newError(kind, message, err)
}

// InvalidID reports a malformed identifier supplied for field.
func InvalidID(field string) *Error {
	e := newError(KindInvalidID, "Invalid "+field, nil)
	e.Field = field
	return e
}

// Duplicate reports a uniqueness violation on field.
func Duplicate(field string, err error) *Error {
	e := newError(KindDuplicate, "Duplicate field value: "+field, err)
	e.Field = field
	return e
}

func Validation(message string) *Error {
	return newError(KindValidation, message, nil)
}

func Conflict(message string) *Error {
	return newError(KindConflict, message, nil)
}

func Unauthenticated(message string) *Error {
	return newError(KindUnauthenticated, message, nil)
}

func InvalidCredential(message string) *Error {
	return newError(KindInvalidCredential, message, nil)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, message, nil)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil)
}

func RateLimited(message string) *Error {
	return newError(KindRateLimited, message, nil)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Messages used when a token failure reaches Normalize without being
// classified by the session middleware.
const (
	MessageInvalidToken  = "Invalid token. Please login again."
	MessageTokenExpired  = "Token expired. Please login again."
	MessageInternalError = "Internal server error"
)

// Response is the normalised, client-facing view of an error.
type Response struct {
	Status  int
	Kind    Kind
	Message string
	// Stack is empty for errors that did not carry one.
	Stack string
}

// Normalize maps err onto a status and message. The first matching rule wins:
// malformed identifier, uniqueness violation, invalid token, expired token,
// any other application error, and finally a generic internal error.
func Normalize(err error) Response {
	var ae *Error
	isApp := errors.As(err, &ae)

	switch {
	case isApp && ae.Kind == KindInvalidID:
		return fromApp(ae)
	case isApp && ae.Kind == KindDuplicate:
		return fromApp(ae)
	case isApp && ae.Kind == KindInvalidCredential:
		return fromApp(ae)
	case !isApp && isInvalidToken(err):
		return Response{Status: http.StatusUnauthorized, Kind: KindInvalidCredential, Message: MessageInvalidToken}
	case isApp && ae.Kind == KindExpired:
		return fromApp(ae)
	case !isApp && errors.Is(err, jwt.ErrTokenExpired):
		return Response{Status: http.StatusUnauthorized, Kind: KindExpired, Message: MessageTokenExpired}
	case isApp && ae.Kind != KindInternal:
		return fromApp(ae)
	case isApp:
		return Response{Status: http.StatusInternalServerError, Kind: KindInternal, Message: MessageInternalError, Stack: ae.Stack()}
	default:
		return Response{Status: http.StatusInternalServerError, Kind: KindInternal, Message: MessageInternalError}
	}
}

func fromApp(ae *Error) Response {
	return Response{
		Status:  ae.Kind.Status(),
		Kind:    ae.Kind,
		Message: ae.Message,
		Stack:   ae.Stack(),
	}
}

func isInvalidToken(err error) bool {
	return errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenUnverifiable) ||
		errors.Is(err, jwt.ErrSignatureInvalid)
}
