package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a create or update rejected before any mutation.
type ValidationError struct {
	Field      string
	Reason     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// NotFoundError is returned when no record carries the requested id number.
type NotFoundError struct {
	IDNumber string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("patient %q not found", e.IDNumber)
}

// DecodeError reports a stored table that could not be read under any supported
// text encoding. Loads that hit it still return a usable, empty collection.
type DecodeError struct {
	Source   string
	Attempts []error
}

func (e *DecodeError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("decode %s: %s", e.Source, strings.Join(parts, "; "))
}

func (e *DecodeError) Unwrap() error {
	return errors.Join(e.Attempts...)
}

// ParseError reports a row whose typed value could not be parsed. It aborts the
// whole load.
type ParseError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: parse %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsDegraded reports whether err is the recoverable decode failure that leaves
// callers with an empty collection.
func IsDegraded(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}
