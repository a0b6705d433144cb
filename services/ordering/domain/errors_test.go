package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrors_MatchErrValidation(t *testing.T) {
	for _, err := range []error{
		ErrInvalidBuyer,
		ErrInvalidAddress,
		ErrInvalidPaymentMethod,
		ErrInvalidOrderItem,
		ErrEmptyOrder,
	} {
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%v must match ErrValidation", err)
		}
		wrapped := fmt.Errorf("%w: units must be positive", err)
		if !errors.Is(wrapped, ErrValidation) || !errors.Is(wrapped, err) {
			t.Errorf("wrapped %v must match both sentinels", err)
		}
	}
}

func TestPersistenceErrors_AreNotValidation(t *testing.T) {
	for _, err := range []error{ErrPersistence, ErrOrderAlreadyExists} {
		if errors.Is(err, ErrValidation) {
			t.Errorf("%v must not match ErrValidation", err)
		}
	}
}

func TestSentinelErrors_Messages(t *testing.T) {
	if ErrValidation.Error() != "order validation failed" {
		t.Fatalf("unexpected message: %q", ErrValidation.Error())
	}
	if ErrInvalidAddress.Error() != "order validation failed: invalid address" {
		t.Fatalf("unexpected message: %q", ErrInvalidAddress.Error())
	}
	if ErrPersistence.Error() != "order persistence failed" {
		t.Fatalf("unexpected message: %q", ErrPersistence.Error())
	}
}
