package entities

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for transport mapping. Handlers translate
// kinds into HTTP statuses in exactly one place.
type ErrorKind string

const (
	KindValidation      ErrorKind = "ValidationError"
	KindAuthentication  ErrorKind = "AuthenticationError"
	KindAuthorization   ErrorKind = "AuthorizationError"
	KindNotFound        ErrorKind = "NotFoundError"
	KindConflict        ErrorKind = "ConflictError"
	KindPayloadTooLarge ErrorKind = "PayloadTooLarge"
	KindUpstream        ErrorKind = "UpstreamFailure"
	KindInternal        ErrorKind = "InternalError"
)

// DomainError carries a kind alongside the wrapped cause.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewError builds a DomainError with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to Internal.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
