// Package apperror carries the error taxonomy shared by the order and payment features.
//
// Every failure that crosses a service boundary is wrapped in an *Error with one
// of the kinds below. Handlers translate the kind into a status code, while the
// wrapped sentinel stays reachable through errors.Is.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by who can act on it.
type Kind int

const (
	// KindInternal is an unexpected failure (persistence, programming error).
	KindInternal Kind = iota
	// KindValidation is bad client input the caller can correct.
	KindValidation
	// KindNotFound is an unknown product or order.
	KindNotFound
	// KindExternalService is a gateway or email provider failure.
	KindExternalService
	// KindConsistency is a total mismatch, stock shortfall or duplicate reference.
	KindConsistency
	// KindSignature is a webhook authenticity failure.
	KindSignature
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindExternalService:
		return "external_service"
	case KindConsistency:
		return "consistency"
	case KindSignature:
		return "signature"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with its kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op string, err error) error      { return New(KindValidation, op, err) }
func NotFound(op string, err error) error        { return New(KindNotFound, op, err) }
func ExternalService(op string, err error) error { return New(KindExternalService, op, err) }
func Consistency(op string, err error) error     { return New(KindConsistency, op, err) }
func Signature(op string, err error) error       { return New(KindSignature, op, err) }
func Internal(op string, err error) error        { return New(KindInternal, op, err) }

// KindOf returns the kind of the outermost *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to the status code returned to HTTP callers.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindSignature:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConsistency:
		return http.StatusConflict
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
