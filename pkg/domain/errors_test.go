package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDecodeErrorIsDegraded(t *testing.T) {
	utf8Err := errors.New("invalid utf-8")
	latinErr := errors.New("bad quote")
	err := fmt.Errorf("load patients: %w", &DecodeError{Source: "patients.csv", Attempts: []error{utf8Err, latinErr}})

	if !IsDegraded(err) {
		t.Fatalf("expected wrapped decode error to be degraded")
	}
	if !errors.Is(err, latinErr) {
		t.Fatalf("expected attempts to be reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "invalid utf-8; bad quote") {
		t.Fatalf("unexpected message %q", err)
	}
}

func TestParseErrorIsFatal(t *testing.T) {
	cause := errors.New("not a number")
	err := &ParseError{Row: 3, Field: ColumnAge, Value: "x", Err: cause}
	if IsDegraded(err) {
		t.Fatalf("parse errors must not be treated as degraded")
	}
	if !errors.Is(err, cause) || err.Error() != `row 3: parse age "x": not a number` {
		t.Fatalf("unexpected error %q", err)
	}
}

func TestValidationAndNotFoundMessages(t *testing.T) {
	if got := (&ValidationError{Field: "age", Reason: "out of range"}).Error(); got != "validation failed: age out of range" {
		t.Fatalf("unexpected %q", got)
	}
	if got := (&ValidationError{Reason: "empty"}).Error(); got != "validation failed: empty" {
		t.Fatalf("unexpected %q", got)
	}
	if got := (&NotFoundError{IDNumber: "7"}).Error(); got != `patient "7" not found` {
		t.Fatalf("unexpected %q", got)
	}
}
