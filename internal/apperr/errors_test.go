package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("signup: %w", Validation("email", "must be a valid email address"))

	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected wrapped validation error to match ErrValidation")
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected errors.As to find *ValidationError")
	}
	if ve.Field != "email" {
		t.Fatalf("Field = %q, want email", ve.Field)
	}
	if ve.Error() != "email: must be a valid email address" {
		t.Fatalf("unexpected message %q", ve.Error())
	}
}

func TestValidationErrorDoesNotMatchOtherSentinels(t *testing.T) {
	err := Validation("title", "is required")

	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInternal) {
		t.Fatalf("validation error must only match ErrValidation")
	}
}
