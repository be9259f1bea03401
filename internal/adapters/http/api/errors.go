package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("event logging unavailable")
	ErrInternal    = errors.New("internal error")
	ErrNotFound    = errors.New("not found")
)

// Error carries the failing operation and a sentinel kind so handlers can
// map it to a status code with errors.Is.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of the given kind without a cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind attaches kind and op to err. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap attaches op to err, keeping an existing kind when err already is an *Error.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return &Error{Op: op, Kind: apiErr.Kind, Err: err}
	}
	return &Error{Op: op, Kind: ErrInternal, Err: err}
}
