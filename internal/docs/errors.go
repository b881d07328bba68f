package docs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the documentation API answers 404.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPath is returned for paths that cannot address a payload.
	ErrInvalidPath = errors.New("invalid documentation path")

	errRequired = errors.New("required field missing")
)

// DecodeError reports a payload that could not be decoded: invalid JSON or a
// required field that is missing or mistyped. Op names the entry point.
type DecodeError struct {
	Op    string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decoding %s: %s: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("decoding %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
