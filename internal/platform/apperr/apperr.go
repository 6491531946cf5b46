// Package apperr defines the error taxonomy shared by the note and
// admission layers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMimic marks an inconsistency in the backing data, such as two
// admission rows sharing one hadm_id.
var ErrMimic = errors.New("mimic data error")

// RecordNotFoundError is returned when a keyed record does not exist.
type RecordNotFoundError struct {
	Actor   string
	KeyType string
	Key     string
}

func NotFound(actor, keyType string, key any) *RecordNotFoundError {
	return &RecordNotFoundError{Actor: actor, KeyType: keyType, Key: fmt.Sprint(key)}
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("%s could not find %s ID %s", e.Actor, e.KeyType, e.Key)
}

// IsNotFound reports whether err or any error it wraps is a RecordNotFoundError.
func IsNotFound(err error) bool {
	var nf *RecordNotFoundError
	return errors.As(err, &nf)
}

const parseTextLimit = 50

// ParseError wraps a failure of the document parser.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	text := e.Text
	if len(text) > parseTextLimit {
		text = text[:parseTextLimit] + "..."
	}
	if e.Err == nil {
		return fmt.Sprintf("could not parse: <%s>", text)
	}
	return fmt.Sprintf("could not parse: <%s>: %v", text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConstructionError is returned when an entity is built without a required
// identifier. Err optionally carries the underlying cause.
type ConstructionError struct {
	Entity string
	Field  string
	Err    error
}

func (e *ConstructionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Entity, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s is required", e.Entity, e.Field)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

func IsConstruction(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}

// StatusCode maps an error to the HTTP status an API handler should return.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err) && !IsConstruction(err):
		return http.StatusNotFound
	case IsConstruction(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
