package k8serrors

import (
	"errors"
	"fmt"
)

func as[E error](err error) bool {
	if err == nil {
		return false
	}
	p := new(E)
	return errors.As(err, p)
}

func format(message string, causedBy error) string {
	switch {
	case causedBy == nil:
		return message
	case message == "":
		return fmt.Sprintf("caused by: %+v", causedBy)
	default:
		return fmt.Sprintf("%s / caused by: %+v", message, causedBy)
	}
}

// ErrMissing: the requested cluster resource does not exist.
//
// During teardown this is not an error at all: a resource already gone
// means teardown succeeded.
type ErrMissing struct {
	message  string
	causedBy error
}

var AsMissingError = as[*ErrMissing]

func NewMissing(message string) error {
	return &ErrMissing{message: message}
}

func NewMissingCausedBy(message string, err error) error {
	return &ErrMissing{message: message, causedBy: err}
}

func (e *ErrMissing) Error() string {
	return format(e.message, e.causedBy)
}

func (e *ErrMissing) Unwrap() error {
	return e.causedBy
}

// ErrConflict: provisioning failed because the resource already exists.
//
// Given deterministic resource names, this usually means a retried start
// raced with an earlier one; callers treat the existing resource as theirs.
type ErrConflict struct {
	message  string
	causedBy error
}

var AsConflict = as[*ErrConflict]

func NewConflict(message string) error {
	return &ErrConflict{message: message}
}

func NewConflictCausedBy(message string, err error) error {
	return &ErrConflict{message: message, causedBy: err}
}

func (e *ErrConflict) Error() string {
	return format(e.message, e.causedBy)
}

func (e *ErrConflict) Unwrap() error {
	return e.causedBy
}

// provisioning took too long.
var ErrDeadlineExceeded = errors.New("deadline exceeded")
