package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Handlers branch on these with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Custom Errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrUserNotFound     = kindError(ErrNotFound, "user not found")
	ErrMenuItemNotFound = kindError(ErrNotFound, "menu item not found")
	ErrOrderNotFound    = kindError(ErrNotFound, "order not found")

	ErrEmailExists             = kindError(ErrConflict, "the email has already been taken")
	ErrInsufficientStock       = kindError(ErrConflict, "insufficient stock")
	ErrItemUnavailable         = kindError(ErrConflict, "menu item is not available")
	ErrInvalidStatusTransition = kindError(ErrConflict, "invalid order status transition")
)

type kindErr struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error { return &kindErr{kind: kind, msg: msg} }

func (e *kindErr) Error() string { return e.msg }
func (e *kindErr) Unwrap() error { return e.kind }

// ValidationError reports one message per offending input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add records msg for field, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Err returns nil when no field failed.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewFieldError is a ValidationError for a single field.
func NewFieldError(field, msg string) error {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}
