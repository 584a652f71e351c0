package access

import (
	"errors"
	"net/http"

	"github.com/apigate-dev/restgateway/internal/quota"
)

// ErrorKind classifies an authentication or request failure.
type ErrorKind string

// Error kinds.
const (
	MissingCredential ErrorKind = "MissingCredential"
	InvalidCredential ErrorKind = "InvalidCredential"
	InactiveAccount   ErrorKind = "InactiveAccount"
	InactiveKey       ErrorKind = "InactiveKey"
	ExpiredKey        ErrorKind = "ExpiredKey"
	QuotaExceeded     ErrorKind = "QuotaExceeded"
	StoreUnavailable  ErrorKind = "StoreUnavailable"
	ValidationError   ErrorKind = "ValidationError"
)

// HTTPStatus maps the kind to its response status.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case MissingCredential, InvalidCredential:
		return http.StatusUnauthorized
	case InactiveAccount, InactiveKey, ExpiredKey:
		return http.StatusForbidden
	case QuotaExceeded:
		return http.StatusTooManyRequests
	case ValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message is the client-facing message for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case MissingCredential:
		return "authentication required: provide an API key or bearer token"
	case InvalidCredential:
		return "invalid or expired credential"
	case InactiveAccount:
		return "account is deactivated"
	case InactiveKey:
		return "API key is inactive"
	case ExpiredKey:
		return "API key has expired"
	case QuotaExceeded:
		return "daily request limit exceeded"
	case ValidationError:
		return "invalid request"
	default:
		return "internal server error"
	}
}

// Error is returned by the gate. QuotaExceeded errors carry the decision so
// the response can report limit and remaining.
type Error struct {
	Kind     ErrorKind
	Decision *quota.Decision
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "access: " + string(e.Kind) + ": " + e.Err.Error()
	}
	return "access: " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of err, or StoreUnavailable for foreign errors.
func KindOf(err error) ErrorKind {
	var accessErr *Error
	if errors.As(err, &accessErr) {
		return accessErr.Kind
	}
	return StoreUnavailable
}
