// Package apperr defines the error taxonomy shared by services and the
// transport layer. Services return errors of these kinds; handlers map
// each kind to exactly one HTTP status.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Unauthenticated: no or invalid principal; fatal to the request.
	Unauthenticated Kind = iota + 1
	// NotFound: the resource is absent or outside the caller's visibility
	// predicate. The two cases are deliberately indistinguishable.
	NotFound
	// PermissionDenied: the resource is visible but the action is not allowed.
	PermissionDenied
	// Conflict: duplicate state, e.g. adding an existing member.
	Conflict
	// InvariantViolation: the mutation would break a structural invariant
	// such as removing a project's owner.
	InvariantViolation
	// InvalidAssignment: assignee is not a member of the task's project.
	InvalidAssignment
	// InvalidTransition: non-adjacent task status change.
	InvalidTransition
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind carried by err, or 0 for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
