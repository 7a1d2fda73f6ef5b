// Package apperr holds the error values shared by services and handlers and
// the echo error handler that turns them into responses.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound = errors.New("no encontrado")
	ErrConflict = errors.New("conflicto")
)

// NotFound wraps ErrNotFound with the entity name, e.g. "paciente no encontrado".
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// Conflict wraps ErrConflict with a user-facing message.
func Conflict(msg string) error {
	return &conflictError{msg: msg}
}

type conflictError struct{ msg string }

func (e *conflictError) Error() string { return e.msg }
func (e *conflictError) Unwrap() error { return ErrConflict }

// ValidationError collects every user-correctable problem of one submission.
// Messages are form-level, Fields are keyed by the field name of the payload.
type ValidationError struct {
	Messages []string            `json:"errors,omitempty"`
	Fields   map[string][]string `json:"field_errors,omitempty"`
}

func (v *ValidationError) Add(msg string) {
	v.Messages = append(v.Messages, msg)
}

func (v *ValidationError) AddField(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], msg)
}

func (v *ValidationError) Empty() bool {
	return v == nil || (len(v.Messages) == 0 && len(v.Fields) == 0)
}

// Merge appends other's messages and field errors.
func (v *ValidationError) Merge(other *ValidationError) {
	if other.Empty() {
		return
	}
	v.Messages = append(v.Messages, other.Messages...)
	for f, msgs := range other.Fields {
		for _, m := range msgs {
			v.AddField(f, m)
		}
	}
}

// Err returns v as an error, or nil when nothing was collected.
func (v *ValidationError) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := append([]string(nil), v.Messages...)
	fields := make([]string, 0, len(v.Fields))
	for f := range v.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v.Fields[f], "; "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}
