// Package errs defines the error taxonomy shared by the engine components.
//
// Capacity denial is not an error: it is reported as a Decision with
// Approved=false. Errors are reserved for requests that could not be decided.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindInvalidRequest Kind = "invalid_request"
	KindPolicyConflict Kind = "policy_conflict"
	// KindConflict reports a stale entity version at commit time.
	KindConflict Kind = "conflict"
	KindInternal Kind = "internal"
)

// Sentinels for errors.Is checks against an *Error of the same kind.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
	ErrPolicyConflict = &Error{Kind: KindPolicyConflict}
	ErrConflict       = &Error{Kind: KindConflict}
)

// Error carries the kind of failure plus the entity it concerns.
type Error struct {
	Kind   Kind
	Op     string
	Entity string
	ID     string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Entity != "" {
		msg = fmt.Sprintf("%s %q: %s", e.Entity, e.ID, msg)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Msg: "not found"}
}

func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Msg: fmt.Sprintf(format, args...)}
}

func PolicyConflict(hubID, activeID string) *Error {
	return &Error{
		Kind:   KindPolicyConflict,
		Entity: "hub",
		ID:     hubID,
		Msg:    fmt.Sprintf("policy %s is already active; use override to replace it", activeID),
	}
}

func Conflict(entity, id string) *Error {
	return &Error{Kind: KindConflict, Entity: entity, ID: id, Msg: "version mismatch"}
}

// WithOp returns err annotated with the operation name when it is an *Error,
// or wrapped as an internal error otherwise.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		if cp.Op == "" {
			cp.Op = op
		}
		return &cp
	}
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
