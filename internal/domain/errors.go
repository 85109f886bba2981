// Package domain contains the core business entities for Inkwell.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error leaving the repository layer wraps exactly one of these,
// so callers can classify with errors.Is regardless of the store in use.
var (
	// ErrNotFound indicates a by-id lookup or targeted update found no live row.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique constraint was violated.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates a metadata-declared constraint failed.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable indicates the underlying store reported a transport or timeout failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInternal indicates an unrecognized store or programming error.
	ErrInternal = errors.New("internal error")
)

// Business rule errors built on top of the kinds above.
var (
	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrForbidden indicates the principal lacks the required role or ownership.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyLiked indicates the user already likes the post.
	ErrAlreadyLiked = fmt.Errorf("%w: post already liked", ErrConflict)

	// ErrNotLiked indicates the user does not like the post.
	ErrNotLiked = fmt.Errorf("%w: post not liked", ErrNotFound)
)

// Violation describes one failed field constraint.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error wraps an error kind with the context needed by the HTTP layer.
type Error struct {
	// Err is the underlying kind (ErrNotFound, ErrConflict, ...), possibly wrapping a cause.
	Err error

	// Entity is the logical entity name (e.g. "Post").
	Entity string

	// Field names the offending field for conflicts and single-field validation errors.
	Field string

	// Message provides additional context.
	Message string

	// Violations carries per-field detail for validation errors.
	Violations []Violation
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Entity != "" {
		b.WriteString(e.Entity)
		b.WriteString(" ")
	}
	b.WriteString(e.Err.Error())
	if e.Field != "" {
		b.WriteString(" on field '")
		b.WriteString(e.Field)
		b.WriteString("'")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Violations) > 0 {
		parts := make([]string, 0, len(e.Violations))
		for _, v := range e.Violations {
			parts = append(parts, v.Field+" "+v.Message)
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds a not-found error for an entity.
func NotFound(entity, message string) *Error {
	return &Error{Err: ErrNotFound, Entity: entity, Message: message}
}

// Conflict builds a conflict error naming the offending field.
func Conflict(entity, field string) *Error {
	return &Error{Err: ErrConflict, Entity: entity, Field: field, Message: "value already exists"}
}

// Invalid builds a validation error from field violations.
func Invalid(entity string, violations ...Violation) *Error {
	e := &Error{Err: ErrValidation, Entity: entity, Violations: violations}
	if len(violations) == 1 {
		e.Field = violations[0].Field
	}
	return e
}

// Unavailable wraps a transport failure.
func Unavailable(cause error) *Error {
	return &Error{Err: fmt.Errorf("%w: %w", ErrStoreUnavailable, cause)}
}

// Internal wraps an unrecognized failure.
func Internal(cause error) *Error {
	return &Error{Err: fmt.Errorf("%w: %w", ErrInternal, cause)}
}

// FieldOf returns the field recorded on err, if any.
func FieldOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}

// ViolationsOf returns the per-field detail recorded on err, if any.
func ViolationsOf(err error) []Violation {
	var de *Error
	if errors.As(err, &de) {
		return de.Violations
	}
	return nil
}

// WithEntity stamps the entity name on a domain error that has none yet.
func WithEntity(err error, entity string) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de.Entity == "" {
		de.Entity = entity
	}
	return err
}
