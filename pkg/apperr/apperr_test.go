package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindNotFound, "missing")
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected NOT_FOUND got %s", KindOf(err))
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("expected NOT_FOUND through wrapping got %s", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatalf("unknown errors must classify as internal")
	}
}

func TestMessageOfHidesInternals(t *testing.T) {
	internal := errors.New("sql: table companies has no column named x")
	if got := MessageOf(internal); got != "an unexpected error occurred" {
		t.Fatalf("internal message leaked: %q", got)
	}

	domain := Wrap(internal, KindConflict, "company already exists")
	if got := MessageOf(domain); got != "company already exists" {
		t.Fatalf("expected caller-safe message got %q", got)
	}
	if !errors.Is(domain, internal) {
		t.Fatalf("wrapped error must remain reachable via errors.Is")
	}
}

func TestValidationFields(t *testing.T) {
	err := Validation("invalid invitation", map[string]string{"email": "required"})
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation kind")
	}
	fields := FieldsOf(err)
	if fields["email"] != "required" {
		t.Fatalf("expected field detail, got %v", fields)
	}
	if FieldsOf(errors.New("plain")) != nil {
		t.Fatalf("plain errors carry no fields")
	}
}
