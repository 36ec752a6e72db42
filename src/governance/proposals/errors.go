package proposals

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected operation.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error is a rejected operation with a reason suitable for the caller.
// No state was changed when an Error is returned.
type Error struct {
	Kind   Kind
	Reason string
	// Details carries validation messages when effects were rejected.
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func badRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Reason: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

// denied wraps a collaborator refusal (membership, standing) as forbidden.
func denied(err error) *Error {
	return &Error{Kind: KindForbidden, Reason: err.Error(), Err: err}
}
