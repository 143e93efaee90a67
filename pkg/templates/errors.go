package templates

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected operation. Every kind is a terminal decision;
// the engine never retries any of them.
type Kind string

const (
	KindForbidden               Kind = "forbidden"
	KindNotFound                Kind = "not_found"
	KindTemplateImmutable       Kind = "template_immutable"
	KindCategoryLocked          Kind = "category_locked"
	KindDuplicateActiveTemplate Kind = "duplicate_active_template"
	KindInvalidSourceState      Kind = "invalid_source_state"
	KindValidation              Kind = "validation_error"
	KindSuccessorConflict       Kind = "successor_conflict"
)

// Error is the typed error returned by every engine operation. Message is
// written for an operator and names the violated rule.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can compare against the
// sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrForbidden               = &Error{Kind: KindForbidden}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrTemplateImmutable       = &Error{Kind: KindTemplateImmutable}
	ErrCategoryLocked          = &Error{Kind: KindCategoryLocked}
	ErrDuplicateActiveTemplate = &Error{Kind: KindDuplicateActiveTemplate}
	ErrInvalidSourceState      = &Error{Kind: KindInvalidSourceState}
	ErrValidation              = &Error{Kind: KindValidation}
	ErrSuccessorConflict       = &Error{Kind: KindSuccessorConflict}
)

// KindOf returns the kind of a typed error, or "" for anything else
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// forbidden never carries detail about the resource
func forbidden(op string) error {
	return &Error{Kind: KindForbidden, Op: op, Message: "you do not have permission to perform this action"}
}

func notFound(op, what, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %s does not exist", what, id)}
}

func invalid(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func withOp(err error, op string) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		cp := *e
		cp.Op = op
		return &cp
	}
	return err
}
